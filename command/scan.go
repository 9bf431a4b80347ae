package command

import (
	"github.com/kvasync/asyncore/api"
	"github.com/kvasync/asyncore/protocol"
)

// ScanCommand is a per-node, sequence-delivered scan built on
// MultiCommand (§6 supplemented feature; exercises the streaming parser
// of §4.6 against a RecordSequenceListener, §6 GLOSSARY "sequence
// listener").
type ScanCommand struct {
	Namespace string
	Set       string
	Listener  api.RecordSequenceListener

	mc *MultiCommand
}

// NewScanCommand builds a scan delegate targeting namespace/set.
func NewScanCommand(namespace, set string, listener api.RecordSequenceListener) *ScanCommand {
	s := &ScanCommand{Namespace: namespace, Set: set, Listener: listener}
	s.mc = NewMultiCommand(false, s.writeRequest, s.parseRow)
	return s
}

func (s *ScanCommand) IsWrite() bool                       { return s.mc.IsWrite() }
func (s *ScanCommand) WriteBuffer(buf []byte) (int, error) { return s.mc.WriteBuffer(buf) }
func (s *ScanCommand) ParseResponse(body []byte) error     { return s.mc.ParseResponse(body) }
func (s *ScanCommand) ParseStream(r ResponseReader) error  { return s.mc.ParseStream(r) }
func (s *ScanCommand) PrepareRetry(isTimeout bool, code api.ResultCode) bool {
	return s.mc.PrepareRetry(isTimeout, code)
}
func (s *ScanCommand) OnInDoubt() {}

// Stop cooperatively terminates the scan at the next row boundary; a
// caller may use it to abandon a long-running scan early.
func (s *ScanCommand) Stop() { s.mc.Stop() }

func (s *ScanCommand) OnSuccess()                      { s.Listener.OnSuccess() }
func (s *ScanCommand) OnFailure(err *api.CommandError) { s.Listener.OnFailure(err) }

func (s *ScanCommand) writeRequest(buf []byte) (int, error) {
	need := 2 + len(s.Namespace) + 2 + len(s.Set)
	if len(buf) < need {
		return need, nil
	}
	off := putString(buf, s.Namespace)
	off += putString(buf[off:], s.Set)
	return off, nil
}

func (s *ScanCommand) parseRow(hdr protocol.RowHeader, body []byte) error {
	if hdr.ResultCode != api.ResultOK {
		return &api.ServerResult{Code: hdr.ResultCode}
	}
	key, n, err := DecodeKey(body)
	if err != nil {
		return err
	}
	bins, err := DecodeBins(body[n:])
	if err != nil {
		return err
	}
	record := &api.Record{Bins: bins, Generation: hdr.Generation, Expiration: hdr.Expiration}
	return s.Listener.OnRecord(key, record)
}
