package resolve

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// ContainerResolver reads a disc image through a random-access reader.
type ContainerResolver interface {
	Resolve(ctx context.Context, r io.ReaderAt, size int64) (time.Time, bool)
}

// SignatureExtractor returns the signing time embedded in a signed artifact.
type SignatureExtractor interface {
	SignatureDate(path string) (time.Time, bool)
}

// ArchiveResolver returns the newest entry modification time of an archive.
type ArchiveResolver interface {
	Resolve(ctx context.Context, path string) (time.Time, bool)
}

// EXIFReader returns the capture time recorded in image metadata.
type EXIFReader interface {
	DateTaken(r io.Reader) (time.Time, bool)
}

type containerStrategy struct {
	resolver  ContainerResolver
	ignoreExt bool
}

// ContainerStrategy probes disc images (.iso, .img) or every file when ignoreExt is set.
func ContainerStrategy(resolver ContainerResolver, ignoreExt bool) Strategy {
	return containerStrategy{resolver: resolver, ignoreExt: ignoreExt}
}

func (containerStrategy) Name() string { return SourceContainer }

func (s containerStrategy) Applies(t *Target) bool {
	return s.ignoreExt || hasExtension(discImageExtensions, t.Ext)
}

func (s containerStrategy) Resolve(ctx context.Context, t *Target) (time.Time, bool) {
	return s.resolver.Resolve(ctx, t.File, t.Size)
}

type signatureStrategy struct {
	extractor SignatureExtractor
	ignoreExt bool
}

// SignatureStrategy reads signing timestamps from signed executables, catalogs and scripts.
func SignatureStrategy(extractor SignatureExtractor, ignoreExt bool) Strategy {
	return signatureStrategy{extractor: extractor, ignoreExt: ignoreExt}
}

func (signatureStrategy) Name() string { return SourceSignature }

func (s signatureStrategy) Applies(t *Target) bool {
	return s.ignoreExt || hasExtension(signedExtensions, t.Ext)
}

func (s signatureStrategy) Resolve(_ context.Context, t *Target) (time.Time, bool) {
	return s.extractor.SignatureDate(t.Path)
}

type archiveStrategy struct {
	resolver ArchiveResolver
}

// ArchiveStrategy inspects every file as a potential archive; callers enable it
// explicitly because decompression is the costliest strategy.
func ArchiveStrategy(resolver ArchiveResolver) Strategy {
	return archiveStrategy{resolver: resolver}
}

func (archiveStrategy) Name() string { return SourceArchive }

func (archiveStrategy) Applies(*Target) bool { return true }

func (s archiveStrategy) Resolve(ctx context.Context, t *Target) (time.Time, bool) {
	return s.resolver.Resolve(ctx, t.Path)
}

type exifStrategy struct {
	reader    EXIFReader
	ignoreExt bool
}

// EXIFStrategy reads capture dates from photos.
func EXIFStrategy(reader EXIFReader, ignoreExt bool) Strategy {
	return exifStrategy{reader: reader, ignoreExt: ignoreExt}
}

func (exifStrategy) Name() string { return SourceEXIF }

func (s exifStrategy) Applies(t *Target) bool {
	return s.ignoreExt || hasExtension(photoExtensions, t.Ext)
}

func (s exifStrategy) Resolve(_ context.Context, t *Target) (time.Time, bool) {
	return s.reader.DateTaken(io.NewSectionReader(t.File, 0, t.Size))
}

type fileNameStrategy struct{}

// FileNameStrategy parses dates such as 20230415_1530 out of the base name.
func FileNameStrategy() Strategy { return fileNameStrategy{} }

func (fileNameStrategy) Name() string { return SourceFileName }

func (fileNameStrategy) Applies(*Target) bool { return true }

func (fileNameStrategy) Resolve(_ context.Context, t *Target) (time.Time, bool) {
	base := filepath.Base(t.Path)
	return ParseFileNameDate(strings.TrimSuffix(base, filepath.Ext(base)))
}
