package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"datefixer/internal/logging"
)

// MinPlausible is the earliest container date accepted as real evidence.
// Earlier values are format defaults written by mastering tools.
var MinPlausible = time.Date(1985, 1, 1, 0, 0, 0, 0, time.UTC)

// ErrNotContainer reports that a decoder does not recognise the input.
var ErrNotContainer = errors.New("not a recognized container image")

// Entry is one file or directory inside an image.
type Entry struct {
	Path    string
	Created time.Time
}

// Image is an opened container file system.
type Image interface {
	// Root returns the root directory timestamp when the format records one.
	Root() (time.Time, bool)
	// Walk visits every entry below the root, depth first.
	Walk(fn func(Entry) error) error
}

// Decoder opens one container format.
type Decoder interface {
	Name() string
	Open(r io.ReaderAt, size int64) (Image, error)
}

// Resolver probes decoders in order until one yields a plausible date.
type Resolver struct {
	decoders  []Decoder
	threshold time.Time
	logger    *slog.Logger
}

// NewResolver returns a resolver over decoders, defaulting to ISO 9660 then UDF.
func NewResolver(logger *slog.Logger, decoders ...Decoder) *Resolver {
	if len(decoders) == 0 {
		decoders = []Decoder{ISO9660{}, UDF{}}
	}
	return &Resolver{
		decoders:  decoders,
		threshold: MinPlausible,
		logger:    logging.NewComponentLogger(logger, "container"),
	}
}

// Resolve returns the first plausible date any decoder can extract from r.
func (r *Resolver) Resolve(ctx context.Context, ra io.ReaderAt, size int64) (time.Time, bool) {
	logger := logging.WithContext(ctx, r.logger)
	for _, decoder := range r.decoders {
		if ctx.Err() != nil {
			return time.Time{}, false
		}
		date, ok, err := r.resolveWith(decoder, ra, size)
		if err != nil {
			logger.Debug("container probe failed", logging.String("format", decoder.Name()), logging.Error(err))
			continue
		}
		if ok {
			return date, true
		}
	}
	return time.Time{}, false
}

func (r *Resolver) resolveWith(decoder Decoder, ra io.ReaderAt, size int64) (date time.Time, ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			date, ok, err = time.Time{}, false, fmt.Errorf("%s decoder panic: %v", decoder.Name(), rec)
		}
	}()

	img, err := decoder.Open(ra, size)
	if err != nil {
		return time.Time{}, false, err
	}

	if root, found := img.Root(); found && !root.Before(r.threshold) {
		return root.UTC(), true, nil
	}

	latest, found, err := DeepScan(img)
	if err != nil {
		return time.Time{}, false, err
	}
	if found && latest.After(r.threshold) {
		return latest.UTC(), true, nil
	}
	return time.Time{}, false, nil
}

// DeepScan returns the newest entry creation time in img.
func DeepScan(img Image) (time.Time, bool, error) {
	var latest time.Time
	found := false
	err := img.Walk(func(e Entry) error {
		if e.Created.After(latest) {
			latest = e.Created
			found = true
		}
		return nil
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("deep scan: %w", err)
	}
	return latest, found, nil
}
