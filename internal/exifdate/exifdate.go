// Package exifdate reads capture times from photo metadata.
package exifdate

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"datefixer/internal/logging"
)

const exifTimeLayout = "2006:01:02 15:04:05"

// Reader extracts the EXIF capture time of an image stream.
type Reader struct {
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Reader.
func New(logger *slog.Logger) *Reader {
	return &Reader{logger: logging.NewComponentLogger(logger, "exif"), now: time.Now}
}

// DateTaken returns DateTimeOriginal, falling back to DateTimeDigitized and
// DateTime. Values before 1900 or more than a day in the future are camera
// clock defaults and are ignored. EXIF wall-clock times carry no zone; they are
// read in the zone recorded by the offset tags, else the local zone.
func (r *Reader) DateTaken(src io.Reader) (date time.Time, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Debug("exif decoder panic", logging.Any("panic", rec))
			date, ok = time.Time{}, false
		}
	}()

	x, err := exif.Decode(src)
	if err != nil {
		return time.Time{}, false
	}

	if t, err := x.DateTime(); err == nil && r.plausible(t) {
		return t.UTC(), true
	}
	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		value, err := tag.StringVal()
		if err != nil {
			continue
		}
		t, err := time.ParseInLocation(exifTimeLayout, strings.TrimRight(strings.TrimSpace(value), "\x00"), time.Local)
		if err == nil && r.plausible(t) {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func (r *Reader) plausible(t time.Time) bool {
	return t.Year() > 1900 && !t.After(r.now().Add(24*time.Hour))
}
