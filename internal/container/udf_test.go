package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

const testPartitionStart = 300

type udfBuilder struct {
	data []byte
}

func newUDFBuilder(sectors int) *udfBuilder {
	return &udfBuilder{data: make([]byte, sectors*udfSectorSize)}
}

func (b *udfBuilder) sector(n int) []byte {
	return b.data[n*udfSectorSize : (n+1)*udfSectorSize]
}

func (b *udfBuilder) block(n int) []byte { return b.sector(testPartitionStart + n) }

func setTag(buf []byte, id uint16) {
	binary.LittleEndian.PutUint16(buf[0:], id)
	binary.LittleEndian.PutUint16(buf[2:], 2)
	var sum byte
	for i := 0; i < 16; i++ {
		if i != 4 {
			sum += buf[i]
		}
	}
	buf[4] = sum
}

func putTimestamp(buf []byte, t time.Time, offsetMinutes int) {
	zone := uint16(0x1000) | uint16(offsetMinutes)&0x0FFF
	binary.LittleEndian.PutUint16(buf[0:], zone)
	binary.LittleEndian.PutUint16(buf[2:], uint16(t.Year()))
	buf[4] = byte(t.Month())
	buf[5] = byte(t.Day())
	buf[6] = byte(t.Hour())
	buf[7] = byte(t.Minute())
	buf[8] = byte(t.Second())
}

func putLongAD(buf []byte, length, block uint32, partition uint16) {
	binary.LittleEndian.PutUint32(buf[0:], length)
	binary.LittleEndian.PutUint32(buf[4:], block)
	binary.LittleEndian.PutUint16(buf[8:], partition)
}

func fid(name string, characteristics byte, block uint32) []byte {
	var ident []byte
	if name != "" {
		ident = append([]byte{8}, name...)
	}
	rec := make([]byte, (38+len(ident)+3)&^3)
	rec[18] = characteristics
	rec[19] = byte(len(ident))
	putLongAD(rec[20:], udfSectorSize, block, 0)
	copy(rec[38:], ident)
	setTag(rec, tagFileIdentifier)
	return rec
}

// writeDirEntry writes an extended file entry with embedded directory data.
func writeDirEntry(buf []byte, created time.Time, fids []byte) {
	buf[27] = 4
	binary.LittleEndian.PutUint16(buf[34:], adEmbedded)
	binary.LittleEndian.PutUint64(buf[56:], uint64(len(fids)))
	putTimestamp(buf[92:], created, 0)
	putTimestamp(buf[104:], created, 0)
	binary.LittleEndian.PutUint32(buf[212:], uint32(len(fids)))
	copy(buf[216:], fids)
	setTag(buf, tagExtendedFileEntry)
}

// buildUDF lays out a minimal UDF 2.01 volume: VRS, anchor, a one-partition
// volume descriptor sequence, a file set, and a root directory holding
// VIDEO_TS/ and VIDEO_TS/VTS_01_1.VOB.
func buildUDF(rootCreated, dirModified, fileModified time.Time) []byte {
	b := newUDFBuilder(testPartitionStart + 8)

	copy(b.sector(16)[1:], "BEA01")
	copy(b.sector(17)[1:], "NSR02")
	copy(b.sector(18)[1:], "TEA01")

	avdp := b.sector(udfAnchorSector)
	binary.LittleEndian.PutUint32(avdp[16:], 16*udfSectorSize)
	binary.LittleEndian.PutUint32(avdp[20:], 32)
	setTag(avdp, tagAnchor)

	pd := b.sector(32)
	binary.LittleEndian.PutUint16(pd[22:], 0)
	binary.LittleEndian.PutUint32(pd[188:], testPartitionStart)
	setTag(pd, tagPartition)

	lvd := b.sector(33)
	binary.LittleEndian.PutUint32(lvd[212:], udfSectorSize)
	putLongAD(lvd[248:], udfSectorSize, 0, 0)
	binary.LittleEndian.PutUint32(lvd[264:], 6)
	binary.LittleEndian.PutUint32(lvd[268:], 1)
	lvd[440] = 1
	lvd[441] = 6
	binary.LittleEndian.PutUint16(lvd[442:], 1)
	binary.LittleEndian.PutUint16(lvd[444:], 0)
	setTag(lvd, tagLogicalVolume)

	setTag(b.sector(34), tagTerminating)

	fsd := b.block(0)
	putLongAD(fsd[400:], udfSectorSize, 1, 0)
	setTag(fsd, tagFileSet)

	var rootFIDs []byte
	rootFIDs = append(rootFIDs, fid("", fidDirectory|fidParent, 1)...)
	rootFIDs = append(rootFIDs, fid("VIDEO_TS", fidDirectory, 2)...)
	rootFIDs = append(rootFIDs, fid("OLD.TXT", fidDeleted, 4)...)
	writeDirEntry(b.block(1), rootCreated, rootFIDs)

	var videoFIDs []byte
	videoFIDs = append(videoFIDs, fid("", fidDirectory|fidParent, 1)...)
	videoFIDs = append(videoFIDs, fid("VTS_01_1.VOB", 0, 3)...)
	// A looping entry pointing back at the root must not be revisited.
	videoFIDs = append(videoFIDs, fid("LOOP", fidDirectory, 1)...)
	writeDirEntry(b.block(2), dirModified, videoFIDs)

	fe := b.block(3)
	fe[27] = 5
	binary.LittleEndian.PutUint16(fe[34:], adShort)
	putTimestamp(fe[84:], fileModified, 0)
	setTag(fe, tagFileEntry)

	return b.data
}

func TestUDFOpenReadsRootAndEntries(t *testing.T) {
	root := time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)
	dir := time.Date(2006, time.July, 14, 10, 0, 0, 0, time.UTC)
	file := time.Date(2006, time.July, 15, 22, 30, 5, 0, time.UTC)
	data := buildUDF(root, dir, file)

	img, err := UDF{}.Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	gotRoot, ok := img.Root()
	if !ok || !gotRoot.Equal(root) {
		t.Fatalf("unexpected root time %v ok=%v", gotRoot, ok)
	}

	var paths []string
	err = img.Walk(func(e Entry) error {
		paths = append(paths, e.Path)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk returned error: %v", err)
	}
	want := []string{"/VIDEO_TS", "/VIDEO_TS/VTS_01_1.VOB"}
	if len(paths) != len(want) {
		t.Fatalf("unexpected entries %v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("unexpected entries %v", paths)
		}
	}

	latest, found, err := DeepScan(img)
	if err != nil || !found || !latest.Equal(file) {
		t.Fatalf("unexpected deep scan result %v found=%v err=%v", latest, found, err)
	}
}

func TestUDFResolverFallsBackToDeepScan(t *testing.T) {
	file := time.Date(2006, time.July, 15, 22, 30, 5, 0, time.UTC)
	data := buildUDF(time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC), file.Add(-time.Hour), file)

	r := NewResolver(nil)
	got, ok := r.Resolve(t.Context(), bytes.NewReader(data), int64(len(data)))
	if !ok || !got.Equal(file) {
		t.Fatalf("expected deep scan date %v, got %v ok=%v", file, got, ok)
	}
}

func TestUDFOpenRejectsNonUDF(t *testing.T) {
	data := make([]byte, 300*udfSectorSize)
	_, err := UDF{}.Open(bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, ErrNotContainer) {
		t.Fatalf("expected ErrNotContainer, got %v", err)
	}
}

func TestUDFOpenRejectsBadAnchorChecksum(t *testing.T) {
	data := buildUDF(time.Now(), time.Now(), time.Now())
	data[udfAnchorSector*udfSectorSize+4]++
	_, err := UDF{}.Open(bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, ErrNotContainer) {
		t.Fatalf("expected ErrNotContainer, got %v", err)
	}
}

func TestUDFTimestampAppliesZoneOffset(t *testing.T) {
	buf := make([]byte, 12)
	putTimestamp(buf, time.Date(2010, time.March, 4, 10, 0, 0, 0, time.UTC), 60)
	got := udfTimestamp(buf)
	want := time.Date(2010, time.March, 4, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}

	putTimestamp(buf, time.Date(2010, time.March, 4, 10, 0, 0, 0, time.UTC), -2047)
	if got := udfTimestamp(buf); got.Hour() != 10 {
		t.Fatalf("expected unspecified zone to be read as UTC, got %v", got)
	}
}

func TestUDFTimestampRejectsEmpty(t *testing.T) {
	if got := udfTimestamp(make([]byte, 12)); !got.IsZero() {
		t.Fatalf("expected zero time, got %v", got)
	}
}

func TestDecodeDString(t *testing.T) {
	if got := decodeDString(append([]byte{8}, "VIDEO_TS"...)); got != "VIDEO_TS" {
		t.Fatalf("latin1 decode got %q", got)
	}
	utf := []byte{16, 0x00, 'A', 0x00, 0xE9}
	if got := decodeDString(utf); got != "Aé" {
		t.Fatalf("utf16 decode got %q", got)
	}
}
