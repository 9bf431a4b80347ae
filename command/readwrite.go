package command

import (
	"encoding/binary"
	"fmt"

	"github.com/kvasync/asyncore/api"
)

// responseHeaderSize is the fixed prefix every non-streaming response
// body in this core carries: result code, generation, expiration (§1
// Non-goals keeps bin/op encoding itself opaque, but a command still
// needs these three fields to build an api.Record).
const responseHeaderSize = 1 + 4 + 4

func parseResponseHeader(body []byte) (code api.ResultCode, generation, expiration uint32, rest []byte, err error) {
	if len(body) < responseHeaderSize {
		err = fmt.Errorf("command: response shorter than fixed header")
		return
	}
	code = api.ResultCode(int8(body[0]))
	generation = binary.BigEndian.Uint32(body[1:5])
	expiration = binary.BigEndian.Uint32(body[5:9])
	rest = body[responseHeaderSize:]
	return
}

// ReadCommand is a single-record read built directly on AsyncCommand
// (§6 supplemented feature; concrete delegate exercising the state
// machine end to end).
type ReadCommand struct {
	BaseDelegate
	Key      api.Key
	Listener api.RecordListener

	record *api.Record
}

func (r *ReadCommand) IsWrite() bool { return false }

func (r *ReadCommand) WriteBuffer(buf []byte) (int, error) {
	need := KeyEncodedSize(r.Key)
	if len(buf) < need {
		return need, nil
	}
	return EncodeKey(buf, r.Key), nil
}

func (r *ReadCommand) ParseResponse(body []byte) error {
	code, gen, exp, rest, err := parseResponseHeader(body)
	if err != nil {
		return err
	}
	if code != api.ResultOK {
		return &api.ServerResult{Code: code}
	}
	bins, err := DecodeBins(rest)
	if err != nil {
		return err
	}
	r.record = &api.Record{Bins: bins, Generation: gen, Expiration: exp}
	return nil
}

func (r *ReadCommand) OnSuccess() { r.Listener.OnSuccess(r.Key, r.record) }
func (r *ReadCommand) OnFailure(err *api.CommandError) { r.Listener.OnFailure(err) }

// WriteCommand is a single-record write built directly on AsyncCommand
// (§6 supplemented feature; the concrete command that exercises the
// write-only in-doubt path of §4.5).
type WriteCommand struct {
	BaseDelegate
	Key      api.Key
	Bins     map[string]any
	Listener api.WriteListener
}

func (w *WriteCommand) IsWrite() bool { return true }

func (w *WriteCommand) WriteBuffer(buf []byte) (int, error) {
	need := KeyEncodedSize(w.Key) + BinsEncodedSize(w.Bins)
	if len(buf) < need {
		return need, nil
	}
	off := EncodeKey(buf, w.Key)
	off += EncodeBins(buf[off:], w.Bins)
	return off, nil
}

func (w *WriteCommand) ParseResponse(body []byte) error {
	code, _, _, _, err := parseResponseHeader(body)
	if err != nil {
		return err
	}
	if code != api.ResultOK {
		return &api.ServerResult{Code: code}
	}
	return nil
}

func (w *WriteCommand) OnSuccess()                     { w.Listener.OnSuccess() }
func (w *WriteCommand) OnFailure(err *api.CommandError) { w.Listener.OnFailure(err) }

func (w *WriteCommand) OnInDoubt() {
	// Default is a no-op; callers that need transaction write-set
	// bookkeeping embed WriteCommand and override OnInDoubt themselves
	// (§4.5 "OnInDoubt() before OnFailure() so side effects ... fire
	// before the user callback").
}
