package main

import "encoding/binary"

// tiffReader wraps a TIFF body with the byte order declared in its
// header. Every accessor bounds-checks and fails closed so a corrupt
// offset can never panic the walker.
type tiffReader struct {
	data  []byte
	order binary.ByteOrder
}

func (r tiffReader) uint16At(off int) (uint16, bool) {
	if off < 0 || off+2 > len(r.data) {
		return 0, false
	}
	return r.order.Uint16(r.data[off : off+2]), true
}

func (r tiffReader) uint32At(off int) (uint32, bool) {
	if off < 0 || off+4 > len(r.data) {
		return 0, false
	}
	return r.order.Uint32(r.data[off : off+4]), true
}

// rationalAt reads an unsigned rational: two consecutive uint32s.
func (r tiffReader) rationalAt(off int) (num, den uint32, ok bool) {
	num, ok = r.uint32At(off)
	if !ok {
		return 0, 0, false
	}
	den, ok = r.uint32At(off + 4)
	if !ok {
		return 0, 0, false
	}
	return num, den, true
}

func (r tiffReader) byteAt(off int) (byte, bool) {
	if off < 0 || off >= len(r.data) {
		return 0, false
	}
	return r.data[off], true
}

func (r tiffReader) sliceAt(off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off+n > len(r.data) {
		return nil, false
	}
	return r.data[off : off+n], true
}
