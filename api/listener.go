package api

// Key identifies a single record. Digest computation and partition
// routing are cluster/partition-map concerns and out of scope here
// (§1 Non-goals); Key is carried opaquely by the command engine.
type Key struct {
	Namespace string
	Set       string
	Digest    [20]byte
}

// Record is the parsed server response for a single row.
type Record struct {
	Bins       map[string]any
	Generation uint32
	Expiration uint32
}

// BatchRecord attaches per-record batch outcome metadata (§6).
type BatchRecord struct {
	Key        Key
	Record     *Record
	ResultCode ResultCode
	InDoubt    bool
}

// WriteListener is the callback surface for a write command with no
// return payload.
type WriteListener interface {
	OnSuccess()
	OnFailure(err *CommandError)
}

// RecordListener is the callback surface for a single-record read.
type RecordListener interface {
	OnSuccess(key Key, record *Record)
	OnFailure(err *CommandError)
}

// ExistsListener is the callback surface for a single-key existence
// check.
type ExistsListener interface {
	OnSuccess(key Key, exists bool)
	OnFailure(err *CommandError)
}

// RecordArrayListener delivers all records at once, in positional order
// (§6 GLOSSARY "array listener").
type RecordArrayListener interface {
	OnSuccess(keys []Key, records []*Record)
	OnFailure(err *CommandError)
}

// RecordSequenceListener delivers records as they arrive, followed by a
// terminal signal (§6 GLOSSARY "sequence listener").
type RecordSequenceListener interface {
	OnRecord(key Key, record *Record) error
	OnSuccess()
	OnFailure(err *CommandError)
}

// BatchListener is the top-level batch completion callback; per-record
// outcome travels inside each BatchRecord (§6).
type BatchListener interface {
	OnSuccess(records []*BatchRecord, allKeysOK bool)
	OnFailure(err *CommandError)
}
