package exifdate

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"datefixer/internal/logging"
)

// jpegWithDateTime builds a JPEG prefix whose APP1 segment holds a single
// IFD0 DateTime entry.
func jpegWithDateTime(value string) []byte {
	ascii := append([]byte(value), 0)

	var tiff bytes.Buffer
	tiff.WriteString("II")
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(42))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(8))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(1))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0x0132))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(2))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(len(ascii)))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(8+2+12+4))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(0))
	tiff.Write(ascii)

	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	_ = binary.Write(&out, binary.BigEndian, uint16(2+6+tiff.Len()))
	out.WriteString("Exif\x00\x00")
	out.Write(tiff.Bytes())
	out.Write([]byte{0xFF, 0xD9})
	return out.Bytes()
}

func TestDateTakenFromIFD0(t *testing.T) {
	r := New(logging.NewNop())
	got, ok := r.DateTaken(bytes.NewReader(jpegWithDateTime("2016:08:09 10:11:12")))
	if !ok {
		t.Fatal("expected a capture time")
	}
	want := time.Date(2016, time.August, 9, 10, 11, 12, 0, time.Local).UTC()
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestDateTakenRejectsCameraDefault(t *testing.T) {
	r := New(logging.NewNop())
	if got, ok := r.DateTaken(bytes.NewReader(jpegWithDateTime("0000:00:00 00:00:00"))); ok {
		t.Fatalf("expected zero camera date to be rejected, got %v", got)
	}
}

func TestDateTakenRejectsFuture(t *testing.T) {
	r := New(logging.NewNop())
	r.now = func() time.Time { return time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC) }
	if got, ok := r.DateTaken(bytes.NewReader(jpegWithDateTime("2016:08:09 10:11:12"))); ok {
		t.Fatalf("expected future date to be rejected, got %v", got)
	}
}

func TestDateTakenWithoutExif(t *testing.T) {
	r := New(logging.NewNop())
	if _, ok := r.DateTaken(bytes.NewReader([]byte("GIF89a not a jpeg"))); ok {
		t.Fatal("expected no date from non-exif data")
	}
}
