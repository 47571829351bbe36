package state

import (
	"encoding/binary"
	"strings"
)

const keyNamespace = "aid"

const (
	partString byte = 's'
	partID     byte = 'i'
	partAddr   byte = 'a'
)

// Key is a typed composite key addressing a module record. Every component is
// tagged and length-prefixed, so two different tuples never encode to the same
// bytes regardless of their contents.
type Key struct {
	buf []byte
}

// NewKey starts a key in the namespace of the given module and record kind.
func NewKey(module, kind string) Key {
	k := Key{buf: []byte(keyNamespace)}
	return k.WithString(strings.ToLower(module)).WithString(kind)
}

func (k Key) with(tag byte, payload []byte) Key {
	buf := make([]byte, 0, len(k.buf)+1+binary.MaxVarintLen64+len(payload))
	buf = append(buf, k.buf...)
	buf = append(buf, tag)
	buf = binary.AppendUvarint(buf, uint64(len(payload)))
	buf = append(buf, payload...)
	return Key{buf: buf}
}

// WithString appends a string component.
func (k Key) WithString(s string) Key {
	return k.with(partString, []byte(s))
}

// WithID appends a numeric identifier component.
func (k Key) WithID(id uint64) Key {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], id)
	return k.with(partID, raw[:])
}

// WithAddr appends an address component.
func (k Key) WithAddr(addr [20]byte) Key {
	return k.with(partAddr, addr[:])
}

// Bytes returns the encoded key.
func (k Key) Bytes() []byte {
	return append([]byte(nil), k.buf...)
}

// EncodeID renders an identifier in the form stored inside index lists.
func EncodeID(id uint64) []byte {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], id)
	return raw[:]
}

// DecodeID parses an identifier produced by EncodeID. Malformed entries decode
// to zero.
func DecodeID(raw []byte) uint64 {
	if len(raw) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}
