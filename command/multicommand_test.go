package command

import (
	"errors"
	"io"
	"testing"

	"github.com/kvasync/asyncore/api"
	"github.com/kvasync/asyncore/protocol"
)

type fakeReader struct {
	groups [][]byte
	idx    int
}

func (f *fakeReader) NextGroup() ([]byte, error) {
	if f.idx >= len(f.groups) {
		return nil, io.EOF
	}
	g := f.groups[f.idx]
	f.idx++
	return g, nil
}

func noopWrite(buf []byte) (int, error) { return 0, nil }

func TestMultiCommandParsesRowsUntilLastBit(t *testing.T) {
	var seen []int32
	parseRow := func(hdr protocol.RowHeader, body []byte) error {
		seen = append(seen, hdr.BatchIndex)
		return nil
	}
	mc := NewMultiCommand(false, noopWrite, parseRow)

	buf := make([]byte, 256)
	off := protocol.AppendRow(buf, 0, protocol.RowHeader{ResultCode: api.ResultOK, BatchIndex: 0}, []byte("a"))
	off = protocol.AppendRow(buf, off, protocol.RowHeader{Info3: protocol.INFO3Last, ResultCode: api.ResultOK, BatchIndex: 1}, []byte("b"))

	reader := &fakeReader{groups: [][]byte{buf[:off]}}
	if err := mc.ParseStream(reader); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(seen) != 1 || seen[0] != 0 {
		t.Fatalf("expected only the non-last row delivered to parseRow, got %v", seen)
	}
}

func TestMultiCommandLastRowErrorPropagates(t *testing.T) {
	mc := NewMultiCommand(false, noopWrite, func(protocol.RowHeader, []byte) error { return nil })

	buf := make([]byte, 128)
	off := protocol.AppendRow(buf, 0, protocol.RowHeader{Info3: protocol.INFO3Last, ResultCode: api.ResultServerError}, nil)

	reader := &fakeReader{groups: [][]byte{buf[:off]}}
	err := mc.ParseStream(reader)

	var sr *api.ServerResult
	if !errors.As(err, &sr) || sr.Code != api.ResultServerError {
		t.Fatalf("expected ServerResult(ResultServerError), got %v", err)
	}
}

func TestMultiCommandStopRaisesQueryTerminated(t *testing.T) {
	mc := NewMultiCommand(false, noopWrite, func(protocol.RowHeader, []byte) error { return nil })
	mc.Stop()

	buf := make([]byte, 128)
	off := protocol.AppendRow(buf, 0, protocol.RowHeader{ResultCode: api.ResultOK}, []byte("x"))

	reader := &fakeReader{groups: [][]byte{buf[:off]}}
	err := mc.ParseStream(reader)
	if !errors.Is(err, api.ErrQueryTerminated) {
		t.Fatalf("expected ErrQueryTerminated, got %v", err)
	}
}

func TestMultiCommandContinuesAcrossGroups(t *testing.T) {
	var seen []int32
	parseRow := func(hdr protocol.RowHeader, body []byte) error {
		seen = append(seen, hdr.BatchIndex)
		return nil
	}
	mc := NewMultiCommand(false, noopWrite, parseRow)

	g1 := make([]byte, 128)
	off1 := protocol.AppendRow(g1, 0, protocol.RowHeader{BatchIndex: 0, ResultCode: api.ResultOK}, []byte("a"))
	g2 := make([]byte, 128)
	off2 := protocol.AppendRow(g2, 0, protocol.RowHeader{Info3: protocol.INFO3Last, BatchIndex: 1, ResultCode: api.ResultOK}, []byte("b"))

	reader := &fakeReader{groups: [][]byte{g1[:off1], g2[:off2]}}
	if err := mc.ParseStream(reader); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(seen) != 1 || seen[0] != 0 {
		t.Fatalf("expected the row from the first group delivered, got %v", seen)
	}
}
