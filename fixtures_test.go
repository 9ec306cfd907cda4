package main

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// fixtureEntry describes one IFD entry for buildTIFF. Exactly one of
// data (out-of-line value), pointsTo (sub-IFD reference), inlineBytes
// (raw value field bytes) or inline (numeric value field) applies.
type fixtureEntry struct {
	tag, typ    uint16
	count       uint32
	inline      uint32
	inlineBytes []byte
	data        []byte
	pointsTo    int
}

type fixtureIFD struct {
	entries []fixtureEntry
}

func writeU16(buf *bytes.Buffer, order binary.ByteOrder, v uint16) {
	var b [2]byte
	order.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, order binary.ByteOrder, v uint32) {
	var b [4]byte
	order.PutUint32(b[:], v)
	buf.Write(b[:])
}

// buildTIFF lays out a TIFF body: header, the IFDs in order, then the
// out-of-line values. All offsets are relative to the body start, which
// is how EXIF offsets work.
func buildTIFF(order binary.ByteOrder, ifds []fixtureIFD) []byte {
	ifdOff := make([]int, len(ifds))
	off := 8
	for i, ifd := range ifds {
		ifdOff[i] = off
		off += 2 + 12*len(ifd.entries) + 4
	}

	dataOff := off
	valueOff := make([][]int, len(ifds))
	for i := range ifds {
		valueOff[i] = make([]int, len(ifds[i].entries))
		for j, e := range ifds[i].entries {
			if e.data != nil {
				valueOff[i][j] = dataOff
				dataOff += len(e.data)
			}
		}
	}

	var buf bytes.Buffer
	if order == binary.ByteOrder(binary.BigEndian) {
		buf.WriteString("MM")
	} else {
		buf.WriteString("II")
	}
	writeU16(&buf, order, tiffMagic)
	writeU32(&buf, order, 8)

	for i, ifd := range ifds {
		writeU16(&buf, order, uint16(len(ifd.entries)))
		for j, e := range ifd.entries {
			writeU16(&buf, order, e.tag)
			writeU16(&buf, order, e.typ)
			writeU32(&buf, order, e.count)
			switch {
			case e.data != nil:
				writeU32(&buf, order, uint32(valueOff[i][j]))
			case e.pointsTo > 0:
				writeU32(&buf, order, uint32(ifdOff[e.pointsTo]))
			case e.inlineBytes != nil:
				var field [4]byte
				copy(field[:], e.inlineBytes)
				buf.Write(field[:])
			default:
				writeU32(&buf, order, e.inline)
			}
		}
		writeU32(&buf, order, 0) // no next IFD
	}

	for _, ifd := range ifds {
		for _, e := range ifd.entries {
			if e.data != nil {
				buf.Write(e.data)
			}
		}
	}
	return buf.Bytes()
}

// rationalBytes packs numerator/denominator pairs in the given order.
func rationalBytes(order binary.ByteOrder, vals ...uint32) []byte {
	var buf bytes.Buffer
	for _, v := range vals {
		writeU32(&buf, order, v)
	}
	return buf.Bytes()
}

func asciiBytes(s string) []byte {
	return append([]byte(s), 0)
}

// shortInline places a SHORT value into a 4-byte value field the way
// the writer's byte order demands: in the first two bytes.
func shortInline(order binary.ByteOrder, v uint16) []byte {
	field := make([]byte, 4)
	order.PutUint16(field, v)
	return field
}

func wrapInJPEG(tiff []byte) []byte {
	return wrapInJPEGHeader(tiff, []byte("Exif\x00\x00"))
}

// wrapInJPEGHeader builds a minimal JPEG holding one APP1 segment with
// the given payload header in front of the TIFF body.
func wrapInJPEGHeader(tiff, header []byte) []byte {
	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8})
	out.Write([]byte{0xFF, 0xE1})
	appLen := uint16(2 + len(header) + len(tiff))
	binary.Write(&out, binary.BigEndian, appLen)
	out.Write(header)
	out.Write(tiff)
	out.Write([]byte{0xFF, 0xD9})
	return out.Bytes()
}

// withAPP1 splices an EXIF APP1 segment into a real JPEG, right after
// the start-of-image marker.
func withAPP1(t *testing.T, jpegData, tiff []byte) []byte {
	t.Helper()
	if len(jpegData) < 2 || jpegData[0] != 0xFF || jpegData[1] != 0xD8 {
		t.Fatal("not a JPEG")
	}
	var out bytes.Buffer
	out.Write(jpegData[:2])
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(2+6+len(tiff)))
	out.Write([]byte("Exif\x00\x00"))
	out.Write(tiff)
	out.Write(jpegData[2:])
	return out.Bytes()
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 100, 255})
		}
	}
	return img
}

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encoding test jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(w, h)); err != nil {
		t.Fatalf("encoding test png: %v", err)
	}
	return buf.Bytes()
}

// gpsDateIFDs is the canonical happy-path fixture: IFD0 with a capture
// date and a GPS sub-IFD placing the camera in Toronto facing NNE.
func gpsDateIFDs(order binary.ByteOrder) []fixtureIFD {
	return []fixtureIFD{
		{entries: []fixtureEntry{
			{tag: tagDateTimeOriginal, typ: 2, count: 20, data: asciiBytes("2024:06:15 14:30:00")},
			{tag: tagGPSSubIFD, typ: 4, count: 1, pointsTo: 1},
		}},
		{entries: []fixtureEntry{
			{tag: gpsTagLatitudeRef, typ: 2, count: 2, inlineBytes: []byte("N\x00")},
			{tag: gpsTagLatitude, typ: typeRational, count: 3, data: rationalBytes(order, 43, 1, 39, 1, 499, 100)},
			{tag: gpsTagLongitudeRef, typ: 2, count: 2, inlineBytes: []byte("W\x00")},
			{tag: gpsTagLongitude, typ: typeRational, count: 3, data: rationalBytes(order, 79, 1, 20, 1, 4948, 100)},
			{tag: gpsTagImgDirection, typ: typeRational, count: 1, data: rationalBytes(order, 2755, 100)},
			{tag: 0x0000, typ: 1, count: 4, inlineBytes: []byte{2, 3, 0, 0}}, // GPSVersionID
		}},
	}
}
