package protocol

import (
	"testing"

	"github.com/kvasync/asyncore/api"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Version: DefaultVersion, Type: MsgTypeCommand, Length: 12345}
	buf := make([]byte, HeaderSize)
	WriteHeader(buf, h)

	got, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != h {
		t.Fatalf("expected %+v, got %+v", h, got)
	}
}

func TestHeaderCompressedFlag(t *testing.T) {
	h := Header{Version: DefaultVersion, Type: MsgTypeCompressed, Length: 99}
	if !h.Compressed() {
		t.Fatal("expected compressed flag to be set")
	}
	plain := Header{Version: DefaultVersion, Type: MsgTypeCommand, Length: 99}
	if plain.Compressed() {
		t.Fatal("expected compressed flag to be clear")
	}
}

func TestRowHeaderRoundTripAndLastBit(t *testing.T) {
	h := RowHeader{
		Info3:      INFO3Last,
		ResultCode: api.ResultOK,
		Generation: 7,
		Expiration: 1000,
		BatchIndex: 3,
		FieldCount: 2,
		OpCount:    4,
	}
	buf := make([]byte, RowHeaderSize)
	WriteRowHeader(buf, h)

	got, err := ParseRowHeader(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != h {
		t.Fatalf("expected %+v, got %+v", h, got)
	}
	if !got.IsLast() {
		t.Fatal("expected IsLast to be true")
	}
}

func TestParseHeaderTooShort(t *testing.T) {
	if _, err := ParseHeader(make([]byte, 4)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}
