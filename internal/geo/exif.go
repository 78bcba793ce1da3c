package geo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrGPSExists is returned when the image already carries GPS EXIF data and
// overwrite was not forced.
var ErrGPSExists = errors.New("image already contains GPS EXIF data")

// ErrNoGPS is returned when the image carries no GPS EXIF data.
var ErrNoGPS = errors.New("image contains no GPS EXIF data")

// ErrNotJPEG is returned for non-JPEG input; only JPEG is supported for
// EXIF embedding.
var ErrNotJPEG = errors.New("unsupported image format, only JPEG is supported for EXIF")

// Rational is an EXIF unsigned rational (numerator/denominator).
type Rational struct {
	Num uint32
	Den uint32
}

// TIFF/EXIF constants used below.
const (
	tagGPSPointer  = 0x8825
	tagLatitudeRef = 0x0001
	tagLatitude    = 0x0002
	tagLongitudeRef = 0x0003
	tagLongitude   = 0x0004

	typeASCII    = 2
	typeLong     = 4
	typeRational = 5
)

// ToDegrees converts decimal degrees to the EXIF degrees/minutes/seconds
// rational triple. Seconds are scaled by 10000 to keep fractional seconds
// as an integer pair.
func ToDegrees(value float64) [3]Rational {
	deg := math.Floor(value)
	minFloat := (value - deg) * 60
	minutes := math.Floor(minFloat)
	sec := math.Round((minFloat - minutes) * 60 * 10000)
	return [3]Rational{
		{Num: uint32(deg), Den: 1},
		{Num: uint32(minutes), Den: 1},
		{Num: uint32(sec), Den: 10000},
	}
}

func (r Rational) decimal() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func dmsToDecimal(dms [3]Rational) float64 {
	return dms[0].decimal() + dms[1].decimal()/60 + dms[2].decimal()/3600
}

// WriteGPS embeds GPS latitude/longitude into a JPEG image as an EXIF APP1
// segment and returns the rewritten file. Refuses to touch images that
// already carry GPS data unless force is set. Any pre-existing Exif segment
// is replaced by the GPS-only segment when writing proceeds.
func WriteGPS(jpegData []byte, lat, lon float64, force bool) ([]byte, error) {
	if !isJPEG(jpegData) {
		return nil, ErrNotJPEG
	}
	if !(Position{Latitude: lat, Longitude: lon}).Valid() {
		return nil, fmt.Errorf("coordinates out of range: %v, %v", lat, lon)
	}

	if _, err := ReadGPS(jpegData); err == nil && !force {
		return nil, ErrGPSExists
	}

	app1 := buildGPSApp1(lat, lon)

	// Strip any existing Exif APP1 segments, then insert ours after the
	// SOI marker and any leading APP0 (JFIF) segment.
	stripped, err := stripExifSegments(jpegData)
	if err != nil {
		return nil, err
	}

	insertAt, err := exifInsertOffset(stripped)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(stripped)+len(app1))
	out = append(out, stripped[:insertAt]...)
	out = append(out, app1...)
	out = append(out, stripped[insertAt:]...)
	return out, nil
}

// ReadGPS extracts the GPS position from a JPEG's EXIF data. Returns
// ErrNoGPS when the image has no Exif segment or no GPS IFD.
func ReadGPS(jpegData []byte) (Position, error) {
	if !isJPEG(jpegData) {
		return Position{}, ErrNotJPEG
	}
	tiff := findExifPayload(jpegData)
	if tiff == nil {
		return Position{}, ErrNoGPS
	}
	return parseGPS(tiff)
}

func isJPEG(data []byte) bool {
	return len(data) >= 4 && data[0] == 0xFF && data[1] == 0xD8
}

// walkSegments calls fn with (markerOffset, marker, totalSegmentLength) for
// each marker segment until the scan data (SOS) begins.
func walkSegments(data []byte, fn func(off int, marker byte, segLen int) bool) error {
	pos := 2 // past SOI
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			return fmt.Errorf("corrupt JPEG: expected marker at offset %d", pos)
		}
		marker := data[pos+1]
		if marker == 0xDA || marker == 0xD9 { // SOS / EOI: entropy data follows
			return nil
		}
		segLen := int(binary.BigEndian.Uint16(data[pos+2:])) + 2
		if pos+segLen > len(data) {
			return errors.New("corrupt JPEG: segment overruns file")
		}
		if !fn(pos, marker, segLen) {
			return nil
		}
		pos += segLen
	}
	return nil
}

// findExifPayload returns the TIFF block of the first Exif APP1 segment.
func findExifPayload(data []byte) []byte {
	var tiff []byte
	_ = walkSegments(data, func(off int, marker byte, segLen int) bool {
		if marker == 0xE1 && segLen >= 14 && string(data[off+4:off+10]) == "Exif\x00\x00" {
			tiff = data[off+10 : off+segLen]
			return false
		}
		return true
	})
	return tiff
}

func stripExifSegments(data []byte) ([]byte, error) {
	type span struct{ start, end int }
	var drops []span
	err := walkSegments(data, func(off int, marker byte, segLen int) bool {
		if marker == 0xE1 && segLen >= 14 && string(data[off+4:off+10]) == "Exif\x00\x00" {
			drops = append(drops, span{start: off, end: off + segLen})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if len(drops) == 0 {
		return data, nil
	}
	out := make([]byte, 0, len(data))
	prev := 0
	for _, d := range drops {
		out = append(out, data[prev:d.start]...)
		prev = d.end
	}
	out = append(out, data[prev:]...)
	return out, nil
}

// exifInsertOffset finds where the APP1 segment belongs: after SOI and any
// leading APP0 (JFIF) segment.
func exifInsertOffset(data []byte) (int, error) {
	insert := 2
	err := walkSegments(data, func(off int, marker byte, segLen int) bool {
		if marker == 0xE0 && off == insert {
			insert = off + segLen
			return true
		}
		return false
	})
	if err != nil {
		return 0, err
	}
	return insert, nil
}

// buildGPSApp1 assembles a complete APP1 segment holding a little-endian
// TIFF with one IFD0 entry pointing at a GPS IFD with reference and
// coordinate tags.
func buildGPSApp1(lat, lon float64) []byte {
	latRef := byte('N')
	if lat < 0 {
		latRef = 'S'
	}
	lonRef := byte('E')
	if lon < 0 {
		lonRef = 'W'
	}
	latDMS := ToDegrees(math.Abs(lat))
	lonDMS := ToDegrees(math.Abs(lon))

	// Offsets inside the TIFF block (origin = start of TIFF header):
	//   0   header (8 bytes)
	//   8   IFD0: count + 1 entry + next pointer (18 bytes)
	//   26  GPS IFD: count + 4 entries + next pointer (54 bytes)
	//   80  latitude rationals (24 bytes)
	//   104 longitude rationals (24 bytes)
	const (
		gpsIFDOffset = 26
		latOffset    = 80
		lonOffset    = 104
		tiffLen      = 128
	)

	tiff := make([]byte, tiffLen)
	le := binary.LittleEndian

	// TIFF header.
	tiff[0], tiff[1] = 'I', 'I'
	le.PutUint16(tiff[2:], 42)
	le.PutUint32(tiff[4:], 8)

	// IFD0 with a single GPS pointer entry.
	le.PutUint16(tiff[8:], 1)
	putEntry(le, tiff[10:], tagGPSPointer, typeLong, 1, gpsIFDOffset)
	le.PutUint32(tiff[22:], 0) // no next IFD

	// GPS IFD.
	le.PutUint16(tiff[gpsIFDOffset:], 4)
	entry := tiff[gpsIFDOffset+2:]
	putEntry(le, entry[0:], tagLatitudeRef, typeASCII, 2, uint32(latRef))
	putEntry(le, entry[12:], tagLatitude, typeRational, 3, latOffset)
	putEntry(le, entry[24:], tagLongitudeRef, typeASCII, 2, uint32(lonRef))
	putEntry(le, entry[36:], tagLongitude, typeRational, 3, lonOffset)
	le.PutUint32(tiff[gpsIFDOffset+50:], 0) // no next IFD

	putRationals(le, tiff[latOffset:], latDMS)
	putRationals(le, tiff[lonOffset:], lonDMS)

	payload := append([]byte("Exif\x00\x00"), tiff...)
	segment := make([]byte, 0, 4+len(payload))
	segment = append(segment, 0xFF, 0xE1)
	segment = binary.BigEndian.AppendUint16(segment, uint16(len(payload)+2))
	segment = append(segment, payload...)
	return segment
}

func putEntry(bo binary.ByteOrder, dst []byte, tag, typ uint16, count, value uint32) {
	bo.PutUint16(dst[0:], tag)
	bo.PutUint16(dst[2:], typ)
	bo.PutUint32(dst[4:], count)
	bo.PutUint32(dst[8:], value)
}

func putRationals(bo binary.ByteOrder, dst []byte, dms [3]Rational) {
	for i, r := range dms {
		bo.PutUint32(dst[i*8:], r.Num)
		bo.PutUint32(dst[i*8+4:], r.Den)
	}
}

// parseGPS walks a TIFF block looking for the GPS IFD and decodes the four
// position tags. Handles both byte orders.
func parseGPS(tiff []byte) (Position, error) {
	if len(tiff) < 8 {
		return Position{}, ErrNoGPS
	}
	var bo binary.ByteOrder
	switch {
	case tiff[0] == 'I' && tiff[1] == 'I':
		bo = binary.LittleEndian
	case tiff[0] == 'M' && tiff[1] == 'M':
		bo = binary.BigEndian
	default:
		return Position{}, ErrNoGPS
	}

	ifd0 := int(bo.Uint32(tiff[4:]))
	gpsOffset, ok := findIFDEntry(bo, tiff, ifd0, tagGPSPointer)
	if !ok {
		return Position{}, ErrNoGPS
	}

	gps := int(gpsOffset)
	latRefRaw, okA := findIFDEntryRaw(bo, tiff, gps, tagLatitudeRef)
	latOff, okB := findIFDEntry(bo, tiff, gps, tagLatitude)
	lonRefRaw, okC := findIFDEntryRaw(bo, tiff, gps, tagLongitudeRef)
	lonOff, okD := findIFDEntry(bo, tiff, gps, tagLongitude)
	if !okA || !okB || !okC || !okD {
		return Position{}, ErrNoGPS
	}

	latDMS, err := readRationals(bo, tiff, int(latOff))
	if err != nil {
		return Position{}, err
	}
	lonDMS, err := readRationals(bo, tiff, int(lonOff))
	if err != nil {
		return Position{}, err
	}

	pos := Position{
		Latitude:  dmsToDecimal(latDMS),
		Longitude: dmsToDecimal(lonDMS),
	}
	if latRefRaw[0] == 'S' {
		pos.Latitude = -pos.Latitude
	}
	if lonRefRaw[0] == 'W' {
		pos.Longitude = -pos.Longitude
	}
	return pos, nil
}

// findIFDEntry returns the value field of a tag decoded through the byte
// order; used for offsets and LONG values.
func findIFDEntry(bo binary.ByteOrder, tiff []byte, ifdOffset int, tag uint16) (uint32, bool) {
	raw, ok := findIFDEntryRaw(bo, tiff, ifdOffset, tag)
	if !ok {
		return 0, false
	}
	return bo.Uint32(raw[:]), true
}

// findIFDEntryRaw returns the raw 4-byte value field of a tag in the IFD at
// the given offset; ASCII values shorter than 5 bytes are stored inline.
func findIFDEntryRaw(bo binary.ByteOrder, tiff []byte, ifdOffset int, tag uint16) ([4]byte, bool) {
	var raw [4]byte
	if ifdOffset < 0 || ifdOffset+2 > len(tiff) {
		return raw, false
	}
	count := int(bo.Uint16(tiff[ifdOffset:]))
	for i := range count {
		entry := ifdOffset + 2 + i*12
		if entry+12 > len(tiff) {
			return raw, false
		}
		if bo.Uint16(tiff[entry:]) == tag {
			copy(raw[:], tiff[entry+8:entry+12])
			return raw, true
		}
	}
	return raw, false
}

func readRationals(bo binary.ByteOrder, tiff []byte, offset int) ([3]Rational, error) {
	var out [3]Rational
	if offset < 0 || offset+24 > len(tiff) {
		return out, errors.New("corrupt EXIF: rational data out of bounds")
	}
	for i := range 3 {
		out[i] = Rational{
			Num: bo.Uint32(tiff[offset+i*8:]),
			Den: bo.Uint32(tiff[offset+i*8+4:]),
		}
	}
	return out, nil
}
