package command

import (
	"bytes"

	"github.com/kvasync/asyncore/api"
)

// CheckKeyDigest implements §4.6's key-matching guard: when a row echoes
// a key digest, the parser compares it against the expected key at
// batchIndex and raises ErrKeyMismatch on divergence, catching
// corrupted or out-of-order responses. expected is indexed by
// batchIndex (the batch package passes the original key-array offset
// it mapped the row to); echoed is the digest bytes read from the row
// body.
func CheckKeyDigest(expected []api.Key, batchIndex int32, echoed []byte) error {
	if batchIndex < 0 || int(batchIndex) >= len(expected) {
		return api.ErrKeyMismatch
	}
	want := expected[batchIndex].Digest
	if len(echoed) != len(want) || !bytes.Equal(echoed, want[:]) {
		return api.ErrKeyMismatch
	}
	return nil
}
