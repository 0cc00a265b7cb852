package container_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/kdomanski/iso9660"

	"datefixer/internal/container"
	"datefixer/internal/logging"
)

type stubImage struct {
	root    time.Time
	entries []container.Entry
	walkErr error
	walked  bool
}

func (s *stubImage) Root() (time.Time, bool) { return s.root, !s.root.IsZero() }

func (s *stubImage) Walk(fn func(container.Entry) error) error {
	s.walked = true
	for _, e := range s.entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return s.walkErr
}

type stubDecoder struct {
	name  string
	image container.Image
	err   error
	panic bool
	calls int
}

func (d *stubDecoder) Name() string { return d.name }

func (d *stubDecoder) Open(io.ReaderAt, int64) (container.Image, error) {
	d.calls++
	if d.panic {
		panic("corrupt directory record")
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.image, nil
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func resolve(t *testing.T, decoders ...container.Decoder) (time.Time, bool) {
	t.Helper()
	r := container.NewResolver(logging.NewNop(), decoders...)
	return r.Resolve(context.Background(), bytes.NewReader(nil), 0)
}

func TestResolverUsesPlausibleRootDate(t *testing.T) {
	img := &stubImage{root: date(2004, time.March, 2)}
	got, ok := resolve(t, &stubDecoder{name: "iso9660", image: img})
	if !ok || !got.Equal(date(2004, time.March, 2)) {
		t.Fatalf("unexpected result %v ok=%v", got, ok)
	}
	if img.walked {
		t.Fatal("deep scan should not run when root date is plausible")
	}
}

func TestResolverAcceptsRootAtThreshold(t *testing.T) {
	img := &stubImage{root: container.MinPlausible}
	got, ok := resolve(t, &stubDecoder{name: "iso9660", image: img})
	if !ok || !got.Equal(container.MinPlausible) {
		t.Fatalf("expected threshold root to be accepted, got %v ok=%v", got, ok)
	}
}

func TestResolverDeepScansWhenRootTooOld(t *testing.T) {
	img := &stubImage{
		root: date(1980, time.January, 1),
		entries: []container.Entry{
			{Path: "/VIDEO_TS", Created: date(2001, time.May, 4)},
			{Path: "/VIDEO_TS/VTS_01_1.VOB", Created: date(2001, time.June, 9)},
			{Path: "/AUDIO_TS", Created: date(1999, time.February, 1)},
		},
	}
	got, ok := resolve(t, &stubDecoder{name: "udf", image: img})
	if !ok || !got.Equal(date(2001, time.June, 9)) {
		t.Fatalf("expected newest entry, got %v ok=%v", got, ok)
	}
}

func TestResolverRejectsDeepScanAtOrBelowThreshold(t *testing.T) {
	img := &stubImage{
		entries: []container.Entry{
			{Path: "/A", Created: container.MinPlausible},
			{Path: "/B", Created: date(1980, time.January, 1)},
		},
	}
	if got, ok := resolve(t, &stubDecoder{name: "iso9660", image: img}); ok {
		t.Fatalf("expected no date, got %v", got)
	}
}

func TestResolverFallsBackToNextDecoder(t *testing.T) {
	iso := &stubDecoder{name: "iso9660", err: fmt.Errorf("%w: bad magic", container.ErrNotContainer)}
	udf := &stubDecoder{name: "udf", image: &stubImage{root: date(2012, time.August, 30)}}
	got, ok := resolve(t, iso, udf)
	if !ok || !got.Equal(date(2012, time.August, 30)) {
		t.Fatalf("expected udf date, got %v ok=%v", got, ok)
	}
	if iso.calls != 1 || udf.calls != 1 {
		t.Fatalf("expected both decoders probed once, got iso=%d udf=%d", iso.calls, udf.calls)
	}
}

func TestResolverSwallowsDecoderPanic(t *testing.T) {
	broken := &stubDecoder{name: "iso9660", panic: true}
	udf := &stubDecoder{name: "udf", image: &stubImage{root: date(2010, time.January, 2)}}
	got, ok := resolve(t, broken, udf)
	if !ok || got.Year() != 2010 {
		t.Fatalf("expected fallback after panic, got %v ok=%v", got, ok)
	}
}

func TestResolverIgnoresWalkErrors(t *testing.T) {
	img := &stubImage{
		entries: []container.Entry{{Path: "/A", Created: date(2003, time.March, 3)}},
		walkErr: errors.New("directory loop"),
	}
	if got, ok := resolve(t, &stubDecoder{name: "udf", image: img}); ok {
		t.Fatalf("expected failed walk to yield nothing, got %v", got)
	}
}

func TestResolverStopsOnCancelledContext(t *testing.T) {
	d := &stubDecoder{name: "iso9660", image: &stubImage{root: date(2010, time.January, 2)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := container.NewResolver(logging.NewNop(), d)
	if _, ok := r.Resolve(ctx, bytes.NewReader(nil), 0); ok {
		t.Fatal("expected cancelled context to stop resolution")
	}
	if d.calls != 0 {
		t.Fatalf("expected no decoder calls, got %d", d.calls)
	}
}

// Directory record layout, ECMA-119 9.1.
const (
	isoSector         = 2048
	pvdOffset         = 16 * isoSector
	rootRecordOffset  = pvdOffset + 156
	recordExtentField = 2
	recordDateField   = 18
	recordNameLen     = 32
	recordName        = 33
)

// 2001-06-15 12:00:00 at UTC-05:00.
var westernRecordingDate = []byte{101, 6, 15, 12, 0, 0, 0xEC}

func masterTestImage(t *testing.T) []byte {
	t.Helper()
	writer, err := iso9660.NewWriter()
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	t.Cleanup(func() { _ = writer.Cleanup() })
	if err := writer.AddFile(strings.NewReader("hello"), "docs/readme.txt"); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	var buf bytes.Buffer
	if err := writer.WriteTo(&buf, "TESTDISC"); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	return buf.Bytes()
}

// patchRootRecords writes date into the primary descriptor's root record and
// returns the byte offset of the root directory extent.
func patchRootRecords(t *testing.T, image []byte, date []byte) int {
	t.Helper()
	copy(image[rootRecordOffset+recordDateField:], date)
	extent := int(binary.LittleEndian.Uint32(image[rootRecordOffset+recordExtentField:])) * isoSector
	if extent+isoSector > len(image) {
		t.Fatalf("root extent %d outside image of %d bytes", extent, len(image))
	}
	// "." entry mirrors the root record.
	copy(image[extent+recordDateField:], date)
	return extent
}

// patchChildRecord writes date into the record named name inside the
// directory extent starting at extent and returns that record's extent.
func patchChildRecord(t *testing.T, image []byte, extent int, name string, date []byte) int {
	t.Helper()
	for off := extent; off < extent+isoSector; {
		length := int(image[off])
		if length == 0 {
			break
		}
		id := string(image[off+recordName : off+recordName+int(image[off+recordNameLen])])
		if strings.EqualFold(strings.SplitN(id, ";", 2)[0], name) {
			copy(image[off+recordDateField:], date)
			return int(binary.LittleEndian.Uint32(image[off+recordExtentField:])) * isoSector
		}
		off += length
	}
	t.Fatalf("record %q not found in extent %d", name, extent)
	return 0
}

func TestResolverReadsRealISOImage(t *testing.T) {
	image := masterTestImage(t)
	patchRootRecords(t, image, westernRecordingDate)

	r := container.NewResolver(logging.NewNop())
	got, ok := r.Resolve(context.Background(), bytes.NewReader(image), int64(len(image)))
	if !ok {
		t.Fatal("expected date from mastered image")
	}
	want := time.Date(2001, 6, 15, 17, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC result, got %v", got.Location())
	}
}

func TestResolverDeepScansWesternISOEntries(t *testing.T) {
	image := masterTestImage(t)
	// 1980-01-01 is below the plausibility floor, forcing a deep scan.
	extent := patchRootRecords(t, image, []byte{80, 1, 1, 0, 0, 0, 0})
	docs := patchChildRecord(t, image, extent, "DOCS", westernRecordingDate)
	patchChildRecord(t, image, docs, "README.TXT", []byte{99, 12, 31, 0, 0, 0, 0})

	r := container.NewResolver(logging.NewNop())
	got, ok := r.Resolve(context.Background(), bytes.NewReader(image), int64(len(image)))
	if !ok {
		t.Fatal("expected date from deep scan")
	}
	want := time.Date(2001, 6, 15, 17, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestResolverRejectsPlainBytes(t *testing.T) {
	data := bytes.Repeat([]byte("not a disc "), 40000)
	r := container.NewResolver(logging.NewNop())
	if got, ok := r.Resolve(context.Background(), bytes.NewReader(data), int64(len(data))); ok {
		t.Fatalf("expected no date from plain data, got %v", got)
	}
}
