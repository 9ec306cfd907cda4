package main

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// JPEG marker bytes.
const (
	markerPrefix = 0xFF
	markerSOI    = 0xD8
	markerAPP1   = 0xE1
)

// TIFF header values.
const (
	byteOrderLittle = 0x4949 // "II"
	byteOrderBig    = 0x4D4D // "MM"
	tiffMagic       = 0x002A
)

// IFD0 and EXIF sub-IFD tags.
const (
	tagExifSubIFD        = 0x8769
	tagGPSSubIFD         = 0x8825
	tagDateTimeOriginal  = 0x9003
	tagDateTimeDigitized = 0x9004
)

// GPS IFD tags.
const (
	gpsTagLatitudeRef  = 0x0001
	gpsTagLatitude     = 0x0002
	gpsTagLongitudeRef = 0x0003
	gpsTagLongitude    = 0x0004
	gpsTagImgDirection = 0x0011
)

const typeRational = 5

// exifHeader prefixes the APP1 payload of an EXIF segment.
var exifHeader = []byte("Exif\x00\x00")

// typeSize maps TIFF field types to their size in bytes.
var typeSize = map[uint16]int{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8,
}

var exifDatePattern = regexp.MustCompile(`^\d{4}:\d{2}:\d{2} \d{2}:\d{2}:\d{2}$`)

const exifDateLayout = "2006:01:02 15:04:05"

// ExtractedMetadata holds whatever could be recovered from an upload's
// EXIF block. Every field is optional; extraction never fails, it
// degrades to nil.
type ExtractedMetadata struct {
	Latitude  *float64
	Longitude *float64
	Bearing   *float64
	Taken     *time.Time
}

// extractMetadata pulls GPS position, camera bearing and capture date out
// of a JPEG's EXIF block. It is best-effort: anything malformed, from the
// outer segment list down to a single tag, collapses to absent fields.
func extractMetadata(data []byte, contentType, filename string) ExtractedMetadata {
	if !isJPEGSource(contentType, filename) {
		return ExtractedMetadata{}
	}
	payload, ok := findExifPayload(data)
	if !ok {
		return ExtractedMetadata{}
	}
	return parseTIFF(payload)
}

func isJPEGSource(contentType, filename string) bool {
	if contentType == "image/jpeg" {
		return true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}

// findExifPayload scans the JPEG segment list for an APP1 segment whose
// payload starts with the EXIF header, returning the TIFF body after it.
// A byte that is not a marker prefix where one is expected ends the scan.
func findExifPayload(data []byte) ([]byte, bool) {
	if len(data) < 2 || data[0] != markerPrefix || data[1] != markerSOI {
		return nil, false
	}
	off := 2
	for off+4 <= len(data) {
		if data[off] != markerPrefix {
			return nil, false
		}
		marker := data[off+1]
		length := int(binary.BigEndian.Uint16(data[off+2 : off+4]))
		if length < 2 || off+2+length > len(data) {
			return nil, false
		}
		if marker == markerAPP1 && length >= 8 {
			payload := data[off+4 : off+2+length]
			if bytes.Equal(payload[:len(exifHeader)], exifHeader) {
				return payload[len(exifHeader):], true
			}
		}
		off += 2 + length
	}
	return nil, false
}

// parseTIFF walks the TIFF body of an EXIF segment. All IFD offsets are
// relative to the start of data. A bad header aborts everything; a bad
// sub-structure only loses the fields that lived there.
func parseTIFF(data []byte) ExtractedMetadata {
	var md ExtractedMetadata
	if len(data) < 8 {
		return md
	}
	var order binary.ByteOrder
	switch binary.BigEndian.Uint16(data[0:2]) {
	case byteOrderLittle:
		order = binary.LittleEndian
	case byteOrderBig:
		order = binary.BigEndian
	default:
		return md
	}
	r := tiffReader{data: data, order: order}
	if magic, ok := r.uint16At(2); !ok || magic != tiffMagic {
		return md
	}
	ifd0, ok := r.uint32At(4)
	if !ok {
		return md
	}

	gpsOff := -1
	exifOff := -1
	dateOff := -1
	eachIFDEntry(r, int(ifd0), func(e tagEntry) {
		switch e.tag {
		case tagGPSSubIFD:
			gpsOff = int(e.rawValue)
		case tagExifSubIFD:
			exifOff = int(e.rawValue)
		case tagDateTimeOriginal, tagDateTimeDigitized:
			dateOff = e.valueOff
		}
	})

	// An IFD0 date wins over the EXIF sub-IFD; the sub-IFD is only
	// probed when IFD0 had none.
	if dateOff < 0 && exifOff >= 0 {
		eachIFDEntry(r, exifOff, func(e tagEntry) {
			switch e.tag {
			case tagDateTimeOriginal, tagDateTimeDigitized:
				dateOff = e.valueOff
			}
		})
	}
	if t, ok := decodeExifDate(r, dateOff); ok {
		md.Taken = &t
	}
	if gpsOff >= 0 {
		decodeGPSIFD(r, gpsOff, &md)
	}
	return md
}

type tagEntry struct {
	tag      uint16
	typ      uint16
	count    uint32
	rawValue uint32
	valueOff int // resolved offset of the value bytes, -1 when unknown
}

// eachIFDEntry walks one IFD's 12-byte entry array, calling fn for every
// entry it can read. A truncated entry table ends the walk early. Values
// of four bytes or fewer live inline in the entry; larger ones live at
// the offset held in the value field.
func eachIFDEntry(r tiffReader, off int, fn func(tagEntry)) {
	count, ok := r.uint16At(off)
	if !ok {
		return
	}
	for i := 0; i < int(count); i++ {
		entryOff := off + 2 + i*12
		raw, ok := r.sliceAt(entryOff, 12)
		if !ok {
			return
		}
		e := tagEntry{
			tag:      r.order.Uint16(raw[0:2]),
			typ:      r.order.Uint16(raw[2:4]),
			count:    r.order.Uint32(raw[4:8]),
			rawValue: r.order.Uint32(raw[8:12]),
			valueOff: -1,
		}
		if size, known := typeSize[e.typ]; known {
			if int64(size)*int64(e.count) <= 4 {
				e.valueOff = entryOff + 8
			} else {
				e.valueOff = int(e.rawValue)
			}
		}
		fn(e)
	}
}

// decodeExifDate reads an ASCII timestamp of the form
// "YYYY:MM:DD HH:MM:SS" and returns it as UTC.
func decodeExifDate(r tiffReader, off int) (time.Time, bool) {
	if off < 0 {
		return time.Time{}, false
	}
	n := 19
	if rem := len(r.data) - off; rem < n {
		n = rem
	}
	raw, ok := r.sliceAt(off, n)
	if !ok {
		return time.Time{}, false
	}
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	s := string(raw)
	if !exifDatePattern.MatchString(s) {
		return time.Time{}, false
	}
	t, err := time.Parse(exifDateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

type rational struct {
	num, den uint32
}

// value returns the quotient, or 0 for a degenerate zero denominator.
func (q rational) value() float64 {
	if q.den == 0 {
		return 0
	}
	return float64(q.num) / float64(q.den)
}

// decodeGPSIFD scans the GPS IFD for position and direction tags. Within
// the scan the last matching entry wins. Latitude and longitude are set
// together or not at all; a direction with a zero denominator stays
// absent.
func decodeGPSIFD(r tiffReader, off int, md *ExtractedMetadata) {
	var (
		latRef, lngRef       byte
		hasLatRef, hasLngRef bool
		lat, lng             [3]rational
		hasLat, hasLng       bool
		direction            rational
		hasDirection         bool
	)
	eachIFDEntry(r, off, func(e tagEntry) {
		switch e.tag {
		case gpsTagLatitudeRef:
			if b, ok := r.byteAt(e.valueOff); ok {
				latRef, hasLatRef = b, true
			}
		case gpsTagLatitude:
			if v, ok := readDMS(r, e); ok {
				lat, hasLat = v, true
			}
		case gpsTagLongitudeRef:
			if b, ok := r.byteAt(e.valueOff); ok {
				lngRef, hasLngRef = b, true
			}
		case gpsTagLongitude:
			if v, ok := readDMS(r, e); ok {
				lng, hasLng = v, true
			}
		case gpsTagImgDirection:
			if e.typ != typeRational || e.count < 1 {
				return
			}
			if num, den, ok := r.rationalAt(e.valueOff); ok {
				direction, hasDirection = rational{num, den}, true
			}
		}
	})

	if hasLatRef && hasLat && hasLngRef && hasLng {
		latDeg := dmsToDecimal(lat[0].value(), lat[1].value(), lat[2].value(), latRef)
		lngDeg := dmsToDecimal(lng[0].value(), lng[1].value(), lng[2].value(), lngRef)
		md.Latitude = &latDeg
		md.Longitude = &lngDeg
	}
	if hasDirection && direction.den != 0 {
		b := normalizeBearing(direction.value())
		md.Bearing = &b
	}
}

// readDMS reads a degrees/minutes/seconds triple. The tag must hold
// exactly three rationals; anything else is ignored.
func readDMS(r tiffReader, e tagEntry) ([3]rational, bool) {
	var out [3]rational
	if e.typ != typeRational || e.count != 3 {
		return out, false
	}
	for i := 0; i < 3; i++ {
		num, den, ok := r.rationalAt(e.valueOff + i*8)
		if !ok {
			return out, false
		}
		out[i] = rational{num, den}
	}
	return out, true
}
