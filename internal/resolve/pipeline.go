package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"datefixer/internal/logging"
)

// Resolver names reported in Result.Source.
const (
	SourceContainer = "container"
	SourceSignature = "signature"
	SourceArchive   = "archive"
	SourceEXIF      = "exif"
	SourceFileName  = "filename"
)

// ErrUnreadable reports that a source file could not be opened; no strategy
// was attempted.
var ErrUnreadable = errors.New("source unreadable")

// Target is the file under resolution. File is positioned at the start and is
// shared by all strategies; strategies read it through io.ReaderAt semantics
// and never close it.
type Target struct {
	Path string
	Ext  string
	File *os.File
	Size int64
}

// Strategy is one content-derived date source.
type Strategy interface {
	Name() string
	Applies(t *Target) bool
	Resolve(ctx context.Context, t *Target) (time.Time, bool)
}

// Result is an accepted date and the strategy that produced it.
type Result struct {
	Date   time.Time
	Source string
}

// Options selects the active strategies. A nil collaborator disables its
// strategy; the order of evaluation is fixed regardless of field order.
type Options struct {
	Container        ContainerResolver
	Signature        SignatureExtractor
	Archive          ArchiveResolver
	EXIF             EXIFReader
	FileName         bool
	IgnoreExtensions bool
}

// Pipeline evaluates strategies in precedence order.
type Pipeline struct {
	strategies []Strategy
	logger     *slog.Logger
}

// New builds a pipeline from opts in the fixed order container, signature,
// archive, EXIF, file name.
func New(opts Options, logger *slog.Logger) *Pipeline {
	var strategies []Strategy
	if opts.Container != nil {
		strategies = append(strategies, ContainerStrategy(opts.Container, opts.IgnoreExtensions))
	}
	if opts.Signature != nil {
		strategies = append(strategies, SignatureStrategy(opts.Signature, opts.IgnoreExtensions))
	}
	if opts.Archive != nil {
		strategies = append(strategies, ArchiveStrategy(opts.Archive))
	}
	if opts.EXIF != nil {
		strategies = append(strategies, EXIFStrategy(opts.EXIF, opts.IgnoreExtensions))
	}
	if opts.FileName {
		strategies = append(strategies, FileNameStrategy())
	}
	return NewWithStrategies(logger, strategies...)
}

// NewWithStrategies builds a pipeline over an explicit strategy list.
func NewWithStrategies(logger *slog.Logger, strategies ...Strategy) *Pipeline {
	return &Pipeline{
		strategies: strategies,
		logger:     logging.NewComponentLogger(logger, "resolve"),
	}
}

// StrategyNames lists the active strategies in evaluation order.
func (p *Pipeline) StrategyNames() []string {
	names := make([]string, 0, len(p.strategies))
	for _, s := range p.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Resolve opens path once and returns the first acceptable date. The boolean
// is false when no strategy produced one. The error is non-nil only when the
// file could not be opened, and then wraps ErrUnreadable.
func (p *Pipeline) Resolve(ctx context.Context, path string) (Result, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, false, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	defer file.Close()

	var size int64
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}

	target := &Target{
		Path: path,
		Ext:  strings.ToLower(filepath.Ext(path)),
		File: file,
		Size: size,
	}

	logger := logging.WithContext(ctx, p.logger)
	for _, strategy := range p.strategies {
		if ctx.Err() != nil {
			return Result{}, false, nil
		}
		if !strategy.Applies(target) {
			continue
		}
		date, ok := p.safeResolve(ctx, logger, strategy, target)
		if !ok || !Acceptable(date) {
			continue
		}
		return Result{Date: date.UTC(), Source: strategy.Name()}, true, nil
	}
	return Result{}, false, nil
}

// safeResolve confines a misbehaving decoder to "no candidate".
func (p *Pipeline) safeResolve(ctx context.Context, logger *slog.Logger, strategy Strategy, target *Target) (date time.Time, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("strategy panicked",
				logging.String(logging.FieldPath, target.Path),
				logging.String(logging.FieldSource, strategy.Name()),
				logging.Any("panic", r))
			date, ok = time.Time{}, false
		}
	}()
	return strategy.Resolve(ctx, target)
}

// Acceptable reports whether a candidate date may be acted upon.
func Acceptable(t time.Time) bool {
	return t.After(time.Time{})
}
