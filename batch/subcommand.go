package batch

import (
	"encoding/binary"

	"github.com/kvasync/asyncore/api"
	"github.com/kvasync/asyncore/command"
	"github.com/kvasync/asyncore/protocol"
)

// batchSubCommand is the per-node (or per-node-per-namespace) MultiCommand
// delegate (§4.7 items 2, 6). It owns the mapping between its local row
// order and the original key-array offsets, writes the sub-request body,
// and fills in the shared records slice as rows arrive. Grounded on
// command.ScanCommand's MultiCommand-wrapping shape (§4.6), generalized
// from a fixed namespace/set to an explicit per-offset key list.
type batchSubCommand struct {
	keys    []api.Key           // the full original batch key list, shared across every sub-command
	records []*api.BatchRecord  // the full original results slice, shared across every sub-command
	offsets []int               // this group's positions into keys/records, in request row order

	mc *command.MultiCommand

	onDone     func(err *api.CommandError) // fan-in callback; called exactly once unless retried via RetryBatch
	retrySplit func()                      // regenerates this group's plan against the fresh partition map
}

func newBatchSubCommand(keys []api.Key, offsets []int, records []*api.BatchRecord, onDone func(*api.CommandError)) *batchSubCommand {
	s := &batchSubCommand{keys: keys, offsets: offsets, records: records, onDone: onDone}
	s.mc = command.NewMultiCommand(false, s.writeRequest, s.parseRow)
	return s
}

func (s *batchSubCommand) IsWrite() bool                               { return false }
func (s *batchSubCommand) WriteBuffer(buf []byte) (int, error)          { return s.mc.WriteBuffer(buf) }
func (s *batchSubCommand) ParseResponse(body []byte) error              { return s.mc.ParseResponse(body) }
func (s *batchSubCommand) ParseStream(r command.ResponseReader) error   { return s.mc.ParseStream(r) }
func (s *batchSubCommand) OnInDoubt()                                   {}

// PrepareRetry implements §4.7 item 6: a ResultClusterKeyMismatch is the
// server's partition-migration hint. Declining the normal clone-and-
// resend here routes AsyncCommand.retry into RetryBatch instead.
func (s *batchSubCommand) PrepareRetry(isTimeout bool, code api.ResultCode) bool {
	return code != api.ResultClusterKeyMismatch
}

// RetryBatch implements command.BatchRetryable (§4.7 item 6).
func (s *batchSubCommand) RetryBatch() { s.retrySplit() }

// Stop cooperatively tears this sub-command down (§4.7 item 5
// FirstFailure cancellation).
func (s *batchSubCommand) Stop() { s.mc.Stop() }

func (s *batchSubCommand) OnSuccess()                      { s.onDone(nil) }
func (s *batchSubCommand) OnFailure(err *api.CommandError) { s.onDone(err) }

// writeRequest encodes: row count, then per row the original-array
// offset followed by the key itself. Response rows are matched by their
// BatchIndex, which is the row's position in this request, not the
// original-array offset (see parseRow) (§1 Non-goals keeps bin/op
// encoding opaque; this core only needs enough shape to exercise
// grouping, dispatch and the streaming parser end to end).
func (s *batchSubCommand) writeRequest(buf []byte) (int, error) {
	need := 4
	for _, off := range s.offsets {
		need += 4 + command.KeyEncodedSize(s.keys[off])
	}
	if len(buf) < need {
		return need, nil
	}
	off := 0
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(s.offsets)))
	off += 4
	for _, origIdx := range s.offsets {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(origIdx))
		off += 4
		off += command.EncodeKey(buf[off:], s.keys[origIdx])
	}
	return off, nil
}

// parseRow decodes one batch row: a 20-byte echoed digest (checked
// against the expected key at this row's batch index via
// command.CheckKeyDigest, §4.6 "key-matching guard"), followed by bins
// when the row's result code is OK.
func (s *batchSubCommand) parseRow(hdr protocol.RowHeader, body []byte) error {
	if hdr.BatchIndex < 0 || int(hdr.BatchIndex) >= len(s.offsets) {
		return api.ErrKeyMismatch
	}
	origIdx := s.offsets[hdr.BatchIndex]
	if len(body) < 20 {
		return api.ErrKeyMismatch
	}
	if err := command.CheckKeyDigest(s.keys, int32(origIdx), body[:20]); err != nil {
		return err
	}

	rec := &api.BatchRecord{Key: s.keys[origIdx], ResultCode: hdr.ResultCode}
	if hdr.ResultCode == api.ResultOK {
		bins, err := command.DecodeBins(body[20:])
		if err != nil {
			return err
		}
		rec.Record = &api.Record{Bins: bins, Generation: hdr.Generation, Expiration: hdr.Expiration}
	}
	s.records[origIdx] = rec
	return nil
}
