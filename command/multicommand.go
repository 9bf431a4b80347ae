package command

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/kvasync/asyncore/api"
	"github.com/kvasync/asyncore/protocol"
)

// RowParser decodes one row's body (the bytes between its length prefix
// and the next row header) into whatever shape the concrete multi-record
// command needs (a scan record, a batch record, ...). Returning an error
// aborts the whole multi-command.
type RowParser func(hdr protocol.RowHeader, body []byte) error

// MultiCommand implements the unified streaming parser (§4.6): it reuses
// single-command framing but iterates record groups between two framing
// events, selecting its next step from the wire header instead of two
// separate parser trees per command kind (§8 REDESIGN FLAGS, replacing
// the "legacy dual parsing paths").
type MultiCommand struct {
	BaseDelegate
	write    bool
	writeReq func([]byte) (int, error)
	parseRow RowParser

	valid int32 // atomic; Stop() clears it, ParseStream observes it (§4.6)
}

// NewMultiCommand builds a streaming delegate. writeReq encodes the
// request body (identical role to a single command's WriteBuffer);
// parseRow decodes one row per the per-command row shape (§4.6 "scan
// row, batch-get row, batch-exists row, ... implement ParseRow
// differently but share the framing machinery").
func NewMultiCommand(write bool, writeReq func([]byte) (int, error), parseRow RowParser) *MultiCommand {
	return &MultiCommand{write: write, writeReq: writeReq, parseRow: parseRow, valid: 1}
}

func (m *MultiCommand) IsWrite() bool { return m.write }

func (m *MultiCommand) WriteBuffer(buf []byte) (int, error) { return m.writeReq(buf) }

// ParseResponse is never used directly by MultiCommand (it implements
// StreamingDelegate instead); it exists only to satisfy Delegate.
func (m *MultiCommand) ParseResponse(body []byte) error { return nil }

// Stop cooperatively terminates this sub-command (§4.7 "FirstFailure
// cancellation ... setting their valid=false"); it takes effect at the
// next row boundary ParseStream observes.
func (m *MultiCommand) Stop() { atomic.StoreInt32(&m.valid, 0) }

func (m *MultiCommand) isValid() bool { return atomic.LoadInt32(&m.valid) == 1 }

// ParseStream implements §4.6's loop: read a group, walk its rows until
// INFO3_LAST, and if the buffer is exhausted first, receive another
// group (the server sends groups of records).
func (m *MultiCommand) ParseStream(r ResponseReader) error {
	for {
		body, err := r.NextGroup()
		if err != nil {
			return err
		}
		last, err := m.parseGroup(body)
		if err != nil {
			return err
		}
		if last {
			return nil
		}
	}
}

// parseGroup walks every complete row in body. A group that ends with
// trailing bytes too short to hold another header is not an error: the
// server is expected to continue the logical result in the next group
// (§4.6 "when the current buffer is exhausted without seeing
// INFO3_LAST, issue another 8-byte header receive").
func (m *MultiCommand) parseGroup(body []byte) (last bool, err error) {
	off := 0
	for off < len(body) {
		if !m.isValid() {
			return false, api.ErrQueryTerminated
		}
		if len(body)-off < protocol.RowHeaderSize+protocol.RowLenPrefixSize {
			return false, nil
		}
		hdr, perr := protocol.ParseRowHeader(body[off:])
		if perr != nil {
			return false, perr
		}
		off += protocol.RowHeaderSize

		rowLen := int(binary.BigEndian.Uint32(body[off : off+protocol.RowLenPrefixSize]))
		off += protocol.RowLenPrefixSize
		if rowLen < 0 || off+rowLen > len(body) {
			return false, protocol.ErrTruncatedRow
		}
		rowBody := body[off : off+rowLen]
		off += rowLen

		if hdr.IsLast() {
			if hdr.ResultCode != api.ResultOK {
				return true, &api.ServerResult{Code: hdr.ResultCode}
			}
			return true, nil
		}
		if err := m.parseRow(hdr, rowBody); err != nil {
			return false, err
		}
	}
	return false, nil
}
