package command

import (
	"encoding/binary"
	"fmt"

	"github.com/kvasync/asyncore/api"
)

// KeyEncodedSize upper-bounds EncodeKey's output so callers can size a
// buffer before writing into it.
func KeyEncodedSize(k api.Key) int {
	return 2 + len(k.Namespace) + 2 + len(k.Set) + len(k.Digest)
}

// EncodeKey and DecodeKey give this core's commands a concrete, if
// minimal, wire shape for the key portion of a request (namespace, set,
// 20-byte digest). Full field-level framing (bin names, UDF args, index
// filters, ...) is explicitly out of scope (§1 Non-goals); this core
// only needs enough shape to exercise the command engine end to end.
func EncodeKey(buf []byte, k api.Key) int {
	off := 0
	off += putString(buf[off:], k.Namespace)
	off += putString(buf[off:], k.Set)
	copy(buf[off:], k.Digest[:])
	off += len(k.Digest)
	return off
}

func DecodeKey(buf []byte) (api.Key, int, error) {
	ns, n, err := getString(buf)
	if err != nil {
		return api.Key{}, 0, err
	}
	off := n
	set, n2, err := getString(buf[off:])
	if err != nil {
		return api.Key{}, 0, err
	}
	off += n2
	if len(buf)-off < 20 {
		return api.Key{}, 0, fmt.Errorf("command: truncated key digest")
	}
	var k api.Key
	k.Namespace = ns
	k.Set = set
	copy(k.Digest[:], buf[off:off+20])
	off += 20
	return k, off, nil
}

func putString(buf []byte, s string) int {
	binary.BigEndian.PutUint16(buf[:2], uint16(len(s)))
	copy(buf[2:], s)
	return 2 + len(s)
}

func getString(buf []byte) (string, int, error) {
	if len(buf) < 2 {
		return "", 0, fmt.Errorf("command: truncated string length")
	}
	n := int(binary.BigEndian.Uint16(buf[:2]))
	if len(buf)-2 < n {
		return "", 0, fmt.Errorf("command: truncated string body")
	}
	return string(buf[2 : 2+n]), 2 + n, nil
}

// EncodeBins/DecodeBins give Record.Bins a minimal round-trippable wire
// shape: count, then name/value pairs with string-typed values. The
// real bin type system (integers, blobs, lists, maps, geo) is out of
// scope (§1 Non-goals).
func EncodeBins(buf []byte, bins map[string]any) int {
	off := 0
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(bins)))
	off += 2
	for name, v := range bins {
		off += putString(buf[off:], name)
		s := fmt.Sprintf("%v", v)
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(s)))
		off += 4
		copy(buf[off:], s)
		off += len(s)
	}
	return off
}

func DecodeBins(buf []byte) (map[string]any, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("command: truncated bin count")
	}
	count := int(binary.BigEndian.Uint16(buf[:2]))
	off := 2
	bins := make(map[string]any, count)
	for i := 0; i < count; i++ {
		name, n, err := getString(buf[off:])
		if err != nil {
			return nil, err
		}
		off += n
		if len(buf)-off < 4 {
			return nil, fmt.Errorf("command: truncated bin value length")
		}
		vlen := int(binary.BigEndian.Uint32(buf[off : off+4]))
		off += 4
		if len(buf)-off < vlen {
			return nil, fmt.Errorf("command: truncated bin value")
		}
		bins[name] = string(buf[off : off+vlen])
		off += vlen
	}
	return bins, nil
}

// BinsEncodedSize upper-bounds EncodeBins' output so callers can size a
// buffer before writing into it.
func BinsEncodedSize(bins map[string]any) int {
	size := 2
	for name, v := range bins {
		size += 2 + len(name)
		size += 4 + len(fmt.Sprintf("%v", v))
	}
	return size
}
