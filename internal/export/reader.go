// Package export reads Timing JSON activity exports in bounded date
// windows so the rest of the pipeline never holds the whole file in memory.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"timematch/internal/errors"
	"timematch/internal/logging"
)

// Record is one raw activity interval from the export. It is never mutated.
type Record struct {
	Application   string `json:"application"`
	ActivityTitle string `json:"activityTitle,omitempty"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	Duration      string `json:"duration"`
	Path          string `json:"path,omitempty"`
}

// Reader streams records from an export file. The file is a single JSON
// array; .zst and .gz files are decompressed transparently.
type Reader struct {
	path   string
	logger *logging.Logger
}

// NewReader creates a reader for the given export file
func NewReader(path string, logger *logging.Logger) *Reader {
	return &Reader{
		path:   path,
		logger: logger,
	}
}

// Path returns the export file path
func (r *Reader) Path() string {
	return r.path
}

type decodedStream struct {
	io.Reader
	closers []io.Closer
}

func (d *decodedStream) Close() error {
	var first error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// open opens the export file, wrapping it in a decompressor when the
// extension indicates a compressed export
func (r *Reader) open() (io.ReadCloser, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, errors.New(
			errors.ExportUnreadable,
			"Cannot open export file",
			err,
		).WithDetails(map[string]interface{}{
			"path": r.path,
		})
	}

	switch strings.ToLower(filepath.Ext(r.path)) {
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, errors.New(errors.ExportUnreadable, "Cannot decompress zstd export", err)
		}
		return &decodedStream{Reader: zr, closers: []io.Closer{f}}, nil
	case ".gz":
		gr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, errors.New(errors.ExportUnreadable, "Cannot decompress gzip export", err)
		}
		return &decodedStream{Reader: gr, closers: []io.Closer{gr, f}}, nil
	default:
		return f, nil
	}
}

// scan streams every record in the export through fn, stopping early when
// fn returns false
func (r *Reader) scan(fn func(Record) bool) error {
	stream, err := r.open()
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	dec := json.NewDecoder(stream)

	// Opening bracket of the top-level array
	tok, err := dec.Token()
	if err != nil {
		return errors.New(errors.ExportUnreadable, "Export is not valid JSON", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return errors.New(errors.ExportUnreadable, "Export must be a JSON array of activity records", nil)
	}

	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return errors.New(errors.ExportUnreadable, "Malformed activity record in export", err)
		}
		if !fn(rec) {
			return nil
		}
	}

	return nil
}

// Window returns records whose startDate falls in [start, end). The bounds
// are ISO date strings; comparison is lexicographic, which is correct for
// ISO-8601 timestamps.
func (r *Reader) Window(start, end string) ([]Record, error) {
	var records []Record
	err := r.scan(func(rec Record) bool {
		if rec.StartDate >= start && rec.StartDate < end {
			records = append(records, rec)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DateRange scans the export once and returns the min and max startDate
// truncated to calendar dates
func (r *Reader) DateRange() (string, string, error) {
	var min, max string
	err := r.scan(func(rec Record) bool {
		if rec.StartDate == "" {
			return true
		}
		if min == "" || rec.StartDate < min {
			min = rec.StartDate
		}
		if rec.StartDate > max {
			max = rec.StartDate
		}
		return true
	})
	if err != nil {
		return "", "", err
	}
	if min == "" {
		return "", "", errors.New(errors.ExportUnreadable, "Export contains no records with a startDate", nil)
	}
	return truncateToDate(min), truncateToDate(max), nil
}

// Count returns the total number of records in the export
func (r *Reader) Count() (int, error) {
	count := 0
	err := r.scan(func(Record) bool {
		count++
		return true
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// WindowRange is one [Start, End) ingestion window
type WindowRange struct {
	Start string
	End   string
}

// WindowRanges splits [start, end] into windows of the given number of
// days. Bounds are YYYY-MM-DD date strings; the final window is clamped to
// one day past end so that records on the end date are included.
func WindowRanges(start, end string, days int) ([]WindowRange, error) {
	if days <= 0 {
		days = 7
	}

	cur, err := time.Parse("2006-01-02", truncateToDate(start))
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	last, err := time.Parse("2006-01-02", truncateToDate(end))
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	// Half-open windows: move the upper bound past the end date
	last = last.AddDate(0, 0, 1)

	var windows []WindowRange
	for cur.Before(last) {
		next := cur.AddDate(0, 0, days)
		if next.After(last) {
			next = last
		}
		windows = append(windows, WindowRange{
			Start: cur.Format("2006-01-02"),
			End:   next.Format("2006-01-02"),
		})
		cur = next
	}

	return windows, nil
}

func truncateToDate(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
