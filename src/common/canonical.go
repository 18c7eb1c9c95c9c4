package common

import "encoding/binary"

/*
Helpers for building canonical byte strings. Every signature in the protocol
covers bytes produced with these functions: fields are appended in a fixed
documented order, integers big-endian, strings length-prefixed so that two
adjacent fields can never be confused for one another. There is exactly one
canonical encoding per signed type, defined next to the type.
*/

// AppendUint16 appends v in big-endian byte order.
func AppendUint16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

// AppendUint32 appends v in big-endian byte order.
func AppendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

// AppendUint64 appends v in big-endian byte order.
func AppendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

// AppendString appends a uint16 length prefix followed by the raw bytes of s.
func AppendString(b []byte, s string) []byte {
	b = AppendUint16(b, uint16(len(s)))
	return append(b, s...)
}

// AppendBytes appends a uint16 length prefix followed by raw bytes.
func AppendBytes(b []byte, data []byte) []byte {
	b = AppendUint16(b, uint16(len(data)))
	return append(b, data...)
}
