package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path"
	"time"
	"unicode/utf16"
)

// UDF decodes ECMA-167 / OSTA UDF images (DVD-Video, Blu-ray, packet-written
// media). Only the structures needed to enumerate directory timestamps are
// parsed: anchor, volume descriptor sequence, partition maps (physical and
// metadata), file set descriptor, file entries, and file identifiers.
type UDF struct{}

const (
	udfSectorSize   = 2048
	udfAnchorSector = 256
	udfMaxEntries   = 1 << 20
	udfMaxVDSectors = 256

	tagAnchor            = 2
	tagPartition         = 5
	tagLogicalVolume     = 6
	tagTerminating       = 8
	tagFileSet           = 256
	tagFileIdentifier    = 257
	tagFileEntry         = 261
	tagExtendedFileEntry = 266

	fidDirectory = 0x02
	fidDeleted   = 0x04
	fidParent    = 0x08

	adShort    = 0
	adLong     = 1
	adEmbedded = 3
)

func (UDF) Name() string { return "udf" }

func (UDF) Open(r io.ReaderAt, size int64) (Image, error) {
	v := &udfVolume{r: r, size: size}
	if !v.hasNSR() {
		return nil, fmt.Errorf("%w: no UDF NSR descriptor", ErrNotContainer)
	}
	if err := v.readAnchor(); err != nil {
		return nil, err
	}
	if err := v.readVolumeDescriptors(); err != nil {
		return nil, err
	}
	root, err := v.readFileSet()
	if err != nil {
		return nil, err
	}
	entry, err := v.readFileEntry(root)
	if err != nil {
		return nil, fmt.Errorf("udf root entry: %w", err)
	}
	return &udfImage{volume: v, root: entry}, nil
}

type longAD struct {
	length    uint32
	block     uint32
	partition uint16
}

type extent struct {
	length uint32
	block  uint32
}

type udfVolume struct {
	r    io.ReaderAt
	size int64

	vdsStart  uint32
	vdsLength uint32

	partitionStarts map[uint16]uint32
	blockSize       uint32
	fileSet         longAD
	// partitionMaps indexes partition reference numbers to either a physical
	// partition number or a metadata partition.
	partitionMaps []partitionMap
}

type partitionMap struct {
	partitionNumber uint16
	metadata        bool
	metadataFile    uint32
	metadataExtents []extent
}

func (v *udfVolume) readSector(n uint32) ([]byte, error) {
	buf := make([]byte, udfSectorSize)
	if _, err := v.r.ReadAt(buf, int64(n)*udfSectorSize); err != nil {
		return nil, err
	}
	return buf, nil
}

// hasNSR looks for the NSR02/NSR03 volume structure descriptor that marks a
// UDF file system in the volume recognition sequence.
func (v *udfVolume) hasNSR() bool {
	for sector := uint32(16); sector < 16+32; sector++ {
		buf, err := v.readSector(sector)
		if err != nil {
			return false
		}
		ident := string(buf[1:6])
		switch ident {
		case "NSR02", "NSR03":
			return true
		case "BEA01", "CD001", "BOOT2", "CDW02", "TEA01":
			continue
		default:
			return false
		}
	}
	return false
}

func (v *udfVolume) readAnchor() error {
	candidates := []uint32{udfAnchorSector}
	if last := v.size/udfSectorSize - 1; last > udfAnchorSector {
		candidates = append(candidates, uint32(last), uint32(last-udfAnchorSector))
	}
	for _, sector := range candidates {
		buf, err := v.readSector(sector)
		if err != nil {
			continue
		}
		if tagID(buf) != tagAnchor || !validTag(buf) {
			continue
		}
		v.vdsLength = le32(buf, 16)
		v.vdsStart = le32(buf, 20)
		return nil
	}
	return fmt.Errorf("%w: no UDF anchor volume descriptor", ErrNotContainer)
}

func (v *udfVolume) readVolumeDescriptors() error {
	v.partitionStarts = make(map[uint16]uint32)
	sectors := v.vdsLength / udfSectorSize
	if sectors == 0 || sectors > udfMaxVDSectors {
		sectors = udfMaxVDSectors
	}
	foundLV := false
	var rawMaps []byte
	var mapCount uint32
	for i := uint32(0); i < sectors; i++ {
		buf, err := v.readSector(v.vdsStart + i)
		if err != nil {
			return fmt.Errorf("udf volume descriptor: %w", err)
		}
		if !validTag(buf) {
			continue
		}
		switch tagID(buf) {
		case tagPartition:
			v.partitionStarts[le16(buf, 22)] = le32(buf, 188)
		case tagLogicalVolume:
			foundLV = true
			v.blockSize = le32(buf, 212)
			v.fileSet = parseLongAD(buf[248:264])
			mapLen := le32(buf, 264)
			mapCount = le32(buf, 268)
			end := 440 + int(mapLen)
			if end > len(buf) {
				end = len(buf)
			}
			rawMaps = append([]byte(nil), buf[440:end]...)
		case tagTerminating:
			i = sectors
		}
	}
	if !foundLV || len(v.partitionStarts) == 0 {
		return fmt.Errorf("%w: incomplete UDF volume descriptor sequence", ErrNotContainer)
	}
	if v.blockSize != udfSectorSize {
		return fmt.Errorf("udf: unsupported logical block size %d", v.blockSize)
	}
	return v.parsePartitionMaps(rawMaps, mapCount)
}

func (v *udfVolume) parsePartitionMaps(raw []byte, count uint32) error {
	for off := 0; uint32(len(v.partitionMaps)) < count && off+2 <= len(raw); {
		mapType, mapLen := raw[off], int(raw[off+1])
		if mapLen == 0 || off+mapLen > len(raw) {
			break
		}
		body := raw[off : off+mapLen]
		switch mapType {
		case 1:
			v.partitionMaps = append(v.partitionMaps, partitionMap{partitionNumber: le16(body, 4)})
		case 2:
			pm := partitionMap{partitionNumber: le16(body, 38)}
			if bytes.HasPrefix(body[5:], []byte("*UDF Metadata Partition")) {
				pm.metadata = true
				pm.metadataFile = le32(body, 40)
			}
			v.partitionMaps = append(v.partitionMaps, pm)
		}
		off += mapLen
	}
	if len(v.partitionMaps) == 0 {
		for number := range v.partitionStarts {
			v.partitionMaps = append(v.partitionMaps, partitionMap{partitionNumber: number})
			break
		}
	}
	for i := range v.partitionMaps {
		if !v.partitionMaps[i].metadata {
			continue
		}
		if err := v.loadMetadataExtents(&v.partitionMaps[i]); err != nil {
			return err
		}
	}
	return nil
}

// loadMetadataExtents resolves the metadata file, whose allocation descriptors
// map metadata-partition blocks onto the physical partition.
func (v *udfVolume) loadMetadataExtents(pm *partitionMap) error {
	start, ok := v.partitionStarts[pm.partitionNumber]
	if !ok {
		return fmt.Errorf("udf: metadata partition %d not described", pm.partitionNumber)
	}
	buf, err := v.readSector(start + pm.metadataFile)
	if err != nil {
		return fmt.Errorf("udf metadata file: %w", err)
	}
	fe, err := parseFileEntry(buf)
	if err != nil {
		return fmt.Errorf("udf metadata file: %w", err)
	}
	for _, ad := range fe.allocations {
		pm.metadataExtents = append(pm.metadataExtents, extent{length: ad.length, block: ad.block})
	}
	if len(pm.metadataExtents) == 0 {
		return errors.New("udf: metadata file has no extents")
	}
	return nil
}

// sectorFor translates a partition-relative logical block into an absolute sector.
func (v *udfVolume) sectorFor(partitionRef uint16, block uint32) (uint32, error) {
	if int(partitionRef) >= len(v.partitionMaps) {
		return 0, fmt.Errorf("udf: partition reference %d out of range", partitionRef)
	}
	pm := v.partitionMaps[partitionRef]
	start, ok := v.partitionStarts[pm.partitionNumber]
	if !ok {
		return 0, fmt.Errorf("udf: partition %d not described", pm.partitionNumber)
	}
	if !pm.metadata {
		return start + block, nil
	}
	remaining := block
	for _, ext := range pm.metadataExtents {
		blocks := ext.length / udfSectorSize
		if remaining < blocks {
			return start + ext.block + remaining, nil
		}
		remaining -= blocks
	}
	return 0, fmt.Errorf("udf: metadata block %d outside metadata file", block)
}

func (v *udfVolume) readFileSet() (longAD, error) {
	sector, err := v.sectorFor(v.fileSet.partition, v.fileSet.block)
	if err != nil {
		return longAD{}, err
	}
	buf, err := v.readSector(sector)
	if err != nil {
		return longAD{}, fmt.Errorf("udf file set descriptor: %w", err)
	}
	if tagID(buf) != tagFileSet || !validTag(buf) {
		return longAD{}, fmt.Errorf("%w: missing UDF file set descriptor", ErrNotContainer)
	}
	return parseLongAD(buf[400:416]), nil
}

type fileAD struct {
	length    uint32
	block     uint32
	partition uint16
}

type fileEntry struct {
	icb         longAD
	isDir       bool
	created     time.Time
	modified    time.Time
	length      uint64
	embedded    []byte
	allocations []fileAD
}

// stamp prefers the creation time only extended file entries record.
func (fe *fileEntry) stamp() time.Time {
	if !fe.created.IsZero() {
		return fe.created
	}
	return fe.modified
}

func (v *udfVolume) readFileEntry(icb longAD) (*fileEntry, error) {
	sector, err := v.sectorFor(icb.partition, icb.block)
	if err != nil {
		return nil, err
	}
	buf, err := v.readSector(sector)
	if err != nil {
		return nil, err
	}
	fe, err := parseFileEntry(buf)
	if err != nil {
		return nil, err
	}
	fe.icb = icb
	for i := range fe.allocations {
		if fe.allocations[i].partition == noPartition {
			fe.allocations[i].partition = icb.partition
		}
	}
	return fe, nil
}

// noPartition marks short allocation descriptors, which inherit the
// partition of the file entry that contains them.
const noPartition = 0xFFFF

func parseFileEntry(buf []byte) (*fileEntry, error) {
	if !validTag(buf) {
		return nil, errors.New("udf: invalid file entry tag")
	}
	fe := &fileEntry{}
	var eaLen, adLen uint32
	var adStart int
	switch tagID(buf) {
	case tagFileEntry:
		fe.modified = udfTimestamp(buf[84:96])
		eaLen, adLen = le32(buf, 168), le32(buf, 172)
		adStart = 176 + int(eaLen)
	case tagExtendedFileEntry:
		fe.modified = udfTimestamp(buf[92:104])
		fe.created = udfTimestamp(buf[104:116])
		eaLen, adLen = le32(buf, 208), le32(buf, 212)
		adStart = 216 + int(eaLen)
	default:
		return nil, fmt.Errorf("udf: unexpected descriptor tag %d", tagID(buf))
	}
	fe.isDir = buf[27] == 4
	fe.length = binary.LittleEndian.Uint64(buf[56:64])

	adEnd := adStart + int(adLen)
	if adStart > len(buf) || adEnd > len(buf) {
		return nil, errors.New("udf: allocation descriptors exceed sector")
	}
	ads := buf[adStart:adEnd]

	switch le16(buf, 34) & 7 {
	case adShort:
		for off := 0; off+8 <= len(ads); off += 8 {
			length := le32(ads, off)
			if length&0x3FFFFFFF == 0 || length>>30 != 0 {
				break
			}
			fe.allocations = append(fe.allocations, fileAD{length: length, block: le32(ads, off+4), partition: noPartition})
		}
	case adLong:
		for off := 0; off+16 <= len(ads); off += 16 {
			ad := parseLongAD(ads[off : off+16])
			if ad.length&0x3FFFFFFF == 0 || ad.length>>30 != 0 {
				break
			}
			fe.allocations = append(fe.allocations, fileAD{length: ad.length, block: ad.block, partition: ad.partition})
		}
	case adEmbedded:
		fe.embedded = append([]byte(nil), ads...)
	default:
		return nil, errors.New("udf: unsupported allocation descriptor type")
	}
	return fe, nil
}

func (v *udfVolume) readData(fe *fileEntry) ([]byte, error) {
	if fe.embedded != nil {
		return fe.embedded, nil
	}
	var out []byte
	for _, ad := range fe.allocations {
		length := ad.length & 0x3FFFFFFF
		sector, err := v.sectorFor(ad.partition, ad.block)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, length)
		if _, err := v.r.ReadAt(buf, int64(sector)*udfSectorSize); err != nil {
			return nil, fmt.Errorf("udf read extent: %w", err)
		}
		out = append(out, buf...)
	}
	if uint64(len(out)) > fe.length {
		out = out[:fe.length]
	}
	return out, nil
}

type udfChild struct {
	name  string
	isDir bool
	icb   longAD
}

func parseFileIdentifiers(data []byte) []udfChild {
	var children []udfChild
	for off := 0; off+38 <= len(data); {
		rec := data[off:]
		if tagID(rec) != tagFileIdentifier {
			break
		}
		characteristics := rec[18]
		nameLen := int(rec[19])
		icb := parseLongAD(rec[20:36])
		iuLen := int(le16(rec, 36))
		total := 38 + iuLen + nameLen
		if off+total > len(data) {
			break
		}
		if characteristics&(fidParent|fidDeleted) == 0 {
			children = append(children, udfChild{
				name:  decodeDString(rec[38+iuLen : 38+iuLen+nameLen]),
				isDir: characteristics&fidDirectory != 0,
				icb:   icb,
			})
		}
		off += (total + 3) &^ 3
	}
	return children
}

type udfImage struct {
	volume *udfVolume
	root   *fileEntry
}

func (i *udfImage) Root() (time.Time, bool) {
	t := i.root.stamp()
	return t, !t.IsZero()
}

func (i *udfImage) Walk(fn func(Entry) error) error {
	visited := map[longAD]struct{}{{block: i.root.icb.block, partition: i.root.icb.partition}: {}}
	count := 0
	return i.walk(i.root, "/", 0, visited, &count, fn)
}

func (i *udfImage) walk(dir *fileEntry, dirPath string, depth int, visited map[longAD]struct{}, count *int, fn func(Entry) error) error {
	if depth > maxDirectoryDepth {
		return fmt.Errorf("udf: directory depth exceeds %d at %s", maxDirectoryDepth, dirPath)
	}
	data, err := i.volume.readData(dir)
	if err != nil {
		return fmt.Errorf("udf list %s: %w", dirPath, err)
	}
	for _, child := range parseFileIdentifiers(data) {
		key := longAD{block: child.icb.block, partition: child.icb.partition}
		if _, seen := visited[key]; seen {
			continue
		}
		visited[key] = struct{}{}
		*count++
		if *count > udfMaxEntries {
			return fmt.Errorf("udf: more than %d entries", udfMaxEntries)
		}

		fe, err := i.volume.readFileEntry(child.icb)
		if err != nil {
			continue
		}
		childPath := path.Join(dirPath, child.name)
		if err := fn(Entry{Path: childPath, Created: fe.stamp()}); err != nil {
			return err
		}
		if child.isDir || fe.isDir {
			if err := i.walk(fe, childPath, depth+1, visited, count, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// udfTimestamp decodes an ECMA-167 1/7.3 timestamp into UTC.
func udfTimestamp(b []byte) time.Time {
	typeAndZone := le16(b, 0)
	year := int(int16(le16(b, 2)))
	if year == 0 && b[4] == 0 && b[5] == 0 {
		return time.Time{}
	}
	month, day := int(b[4]), int(b[5])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}
	}
	nanos := int(b[9])*10_000_000 + int(b[10])*100_000 + int(b[11])*1_000
	t := time.Date(year, time.Month(month), day, int(b[6]), int(b[7]), int(b[8]), nanos, time.UTC)

	offset := int(typeAndZone & 0x0FFF)
	if offset&0x0800 != 0 {
		offset -= 0x1000
	}
	if typeAndZone>>12 == 1 && offset != -2047 && offset >= -1440 && offset <= 1440 {
		t = t.Add(-time.Duration(offset) * time.Minute)
	}
	return t
}

// decodeDString decodes an OSTA compressed unicode identifier.
func decodeDString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	switch b[0] {
	case 8:
		runes := make([]rune, 0, len(b)-1)
		for _, c := range b[1:] {
			runes = append(runes, rune(c))
		}
		return string(runes)
	case 16:
		units := make([]uint16, 0, (len(b)-1)/2)
		for i := 1; i+1 < len(b); i += 2 {
			units = append(units, binary.BigEndian.Uint16(b[i:]))
		}
		return string(utf16.Decode(units))
	default:
		return string(b[1:])
	}
}

func parseLongAD(b []byte) longAD {
	return longAD{length: le32(b, 0), block: le32(b, 4), partition: le16(b, 8)}
}

func tagID(buf []byte) uint16 {
	if len(buf) < 16 {
		return 0
	}
	return le16(buf, 0)
}

// validTag verifies the descriptor tag checksum (byte 4 is the sum of the
// other fifteen tag bytes).
func validTag(buf []byte) bool {
	if len(buf) < 16 {
		return false
	}
	var sum byte
	for i := 0; i < 16; i++ {
		if i != 4 {
			sum += buf[i]
		}
	}
	return sum == buf[4] && tagID(buf) != 0
}

func le16(b []byte, off int) uint16 { return binary.LittleEndian.Uint16(b[off:]) }

func le32(b []byte, off int) uint32 { return binary.LittleEndian.Uint32(b[off:]) }
