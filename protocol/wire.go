// Package protocol implements the wire framing this core treats as
// external interface only (§6): the 8-byte message preamble and the
// per-row header a MultiCommand parses between two framing events
// (§4.6). Bin encoding, compression codec internals and opcode
// semantics stay opaque — callers supply WriteBuffer/ParseResponse
// hooks (command.Delegate) and this package never looks inside a
// record's bin payload.
package protocol

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/kvasync/asyncore/api"
)

// ErrTruncatedRow is returned when a row's declared length prefix runs
// past the end of the current group (§4.6 framing).
var ErrTruncatedRow = errors.New("protocol: truncated row")

// Message types recognized on the 8-byte preamble (§6).
const (
	MsgTypeCommand    byte = 3
	MsgTypeCompressed byte = 4
	MsgTypeInfo       byte = 1
)

// DefaultVersion is the protocol version this client negotiates.
const DefaultVersion byte = 2

// HeaderSize is the fixed preamble length (§6): 8 bytes, big-endian,
// [63:56]=version [55:48]=type [47:0]=body length.
const HeaderSize = 8

// lengthMask isolates bits [47:0].
const lengthMask = 0x0000FFFFFFFFFFFF

// Header is the parsed 8-byte preamble.
type Header struct {
	Version byte
	Type    byte
	Length  int64
}

// Compressed reports whether the message type marks a compressed body
// (§6 "Compressed responses carry an uncompressed-size prefix...").
func (h Header) Compressed() bool { return h.Type == MsgTypeCompressed }

// ParseHeader decodes an 8-byte big-endian preamble.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, io.ErrUnexpectedEOF
	}
	word := binary.BigEndian.Uint64(b[:HeaderSize])
	return Header{
		Version: byte(word >> 56),
		Type:    byte((word >> 48) & 0xff),
		Length:  int64(word & lengthMask),
	}, nil
}

// WriteHeader encodes h into dst[:8].
func WriteHeader(dst []byte, h Header) {
	word := uint64(h.Version)<<56 | uint64(h.Type)<<48 | (uint64(h.Length) & lengthMask)
	binary.BigEndian.PutUint64(dst[:HeaderSize], word)
}

// INFO3Last marks the row header that ends a logical multi-record
// result (§4.6).
const INFO3Last byte = 0x01

// RowHeaderSize is the fixed per-row header length this core parses
// between record bodies (§4.6): info3, result code, generation,
// expiration, batch index, field count, op count.
const RowHeaderSize = 1 + 1 + 4 + 4 + 4 + 2 + 2

// RowHeader is one multi-record framing header (§4.6).
type RowHeader struct {
	Info3      byte
	ResultCode api.ResultCode
	Generation uint32
	Expiration uint32
	BatchIndex int32
	FieldCount uint16
	OpCount    uint16
}

// IsLast reports whether this row carries the INFO3_LAST bit.
func (h RowHeader) IsLast() bool { return h.Info3&INFO3Last != 0 }

// ParseRowHeader decodes one RowHeader from b[:RowHeaderSize].
func ParseRowHeader(b []byte) (RowHeader, error) {
	if len(b) < RowHeaderSize {
		return RowHeader{}, io.ErrUnexpectedEOF
	}
	return RowHeader{
		Info3:      b[0],
		ResultCode: api.ResultCode(int8(b[1])),
		Generation: binary.BigEndian.Uint32(b[2:6]),
		Expiration: binary.BigEndian.Uint32(b[6:10]),
		BatchIndex: int32(binary.BigEndian.Uint32(b[10:14])),
		FieldCount: binary.BigEndian.Uint16(b[14:16]),
		OpCount:    binary.BigEndian.Uint16(b[16:18]),
	}, nil
}

// WriteRowHeader encodes h into dst[:RowHeaderSize].
func WriteRowHeader(dst []byte, h RowHeader) {
	dst[0] = h.Info3
	dst[1] = byte(int8(h.ResultCode))
	binary.BigEndian.PutUint32(dst[2:6], h.Generation)
	binary.BigEndian.PutUint32(dst[6:10], h.Expiration)
	binary.BigEndian.PutUint32(dst[10:14], uint32(h.BatchIndex))
	binary.BigEndian.PutUint16(dst[14:16], h.FieldCount)
	binary.BigEndian.PutUint16(dst[16:18], h.OpCount)
}

// RowLenPrefixSize is the 4-byte big-endian row-body length this core
// writes immediately after every RowHeader so a streaming parser can
// skip to the next row without understanding bin/op encoding (§4.6).
const RowLenPrefixSize = 4

// AppendRow writes one framed row (header, length prefix, body) to
// dst[off:] and returns the offset just past it. Used by tests and the
// cmd/kvaecho demo to build multi-row response groups.
func AppendRow(dst []byte, off int, h RowHeader, body []byte) int {
	WriteRowHeader(dst[off:], h)
	off += RowHeaderSize
	binary.BigEndian.PutUint32(dst[off:off+4], uint32(len(body)))
	off += 4
	copy(dst[off:], body)
	return off + len(body)
}
