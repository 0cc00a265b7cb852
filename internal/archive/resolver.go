package archive

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"datefixer/internal/logging"
)

// Resolver dates archives through a Decoder with an optional external fallback.
type Resolver struct {
	decoder   Decoder
	format    Format
	extractor *Extractor
	logger    *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDecoder replaces the built-in decoder (primarily for tests).
func WithDecoder(d Decoder) ResolverOption {
	return func(r *Resolver) {
		if d != nil {
			r.decoder = d
		}
	}
}

// WithExtractor enables the external-process fallback.
func WithExtractor(e *Extractor) ResolverOption {
	return func(r *Resolver) {
		r.extractor = e
	}
}

// NewResolver constructs a Resolver pinned to format, or unpinned for FormatAuto.
func NewResolver(format Format, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	if format == "" {
		format = FormatAuto
	}
	r := &Resolver{
		decoder: Builtin{},
		format:  format,
		logger:  logging.NewComponentLogger(logger, "archive"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the newest plausible member modification time of the archive at path.
func (r *Resolver) Resolve(ctx context.Context, path string) (time.Time, bool) {
	logger := logging.WithContext(ctx, r.logger).With(logging.String(logging.FieldPath, path))

	if r.format == FormatExternal {
		return r.external(ctx, path, logger)
	}

	date, ok, err := r.scan(path, r.format)
	if err == nil {
		return date, ok
	}
	if r.format.Pinned() || !errors.Is(err, ErrUnrecognized) {
		logger.Debug("archive scan failed", logging.String("format", r.format.String()), logging.Error(err))
		return time.Time{}, false
	}

	for _, format := range BruteForceOrder {
		if ctx.Err() != nil {
			return time.Time{}, false
		}
		if format == FormatExternal {
			return r.external(ctx, path, logger)
		}
		date, ok, err := r.scan(path, format)
		if err == nil {
			logger.Debug("archive format found by brute force", logging.String("format", format.String()))
			return date, ok
		}
		if !errors.Is(err, ErrUnrecognized) {
			logger.Debug("archive scan failed", logging.String("format", format.String()), logging.Error(err))
			return time.Time{}, false
		}
	}
	return time.Time{}, false
}

func (r *Resolver) scan(path string, format Format) (date time.Time, ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			date, ok, err = time.Time{}, false, errors.New("archive decoder panic")
		}
	}()
	var latest Latest
	err = r.decoder.Scan(path, format, func(e Entry) {
		if !e.IsDir {
			latest.Observe(e.ModTime)
		}
	})
	if err != nil {
		return time.Time{}, false, err
	}
	date, ok = latest.Value()
	return date, ok, nil
}

func (r *Resolver) external(ctx context.Context, path string, logger *slog.Logger) (time.Time, bool) {
	if r.extractor == nil {
		logger.Debug("archive needs external extractor but none is configured")
		return time.Time{}, false
	}
	date, ok, err := r.extractor.Extract(ctx, path)
	if err != nil {
		logging.WarnWithContext(logger, "external extraction failed", "archive_extract_failed",
			logging.String(logging.FieldErrorHint, "check the 7-Zip binary and scratch directory"),
			logging.Error(err),
		)
		return time.Time{}, false
	}
	return date, ok
}

// Latest tracks the newest timestamp whose year is past the sanity floor.
type Latest struct {
	value time.Time
	set   bool
}

// MinYear is the exclusive floor below which member timestamps are treated as
// zero or epoch defaults.
const MinYear = 1980

func (l *Latest) Observe(t time.Time) {
	if t.Year() <= MinYear {
		return
	}
	if !l.set || t.After(l.value) {
		l.value = t
		l.set = true
	}
}

func (l *Latest) Value() (time.Time, bool) {
	if !l.set {
		return time.Time{}, false
	}
	return l.value.UTC(), true
}
