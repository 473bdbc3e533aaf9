// Package export persists aggregated marketplace records to dated JSON files.
//
// Files are written to a temporary file in the target directory and renamed
// into place, so a failed or interrupted run never leaves a truncated file
// under the final name.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for export operations.
var (
	exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matexport_exports_total",
		Help: "Total export files written by source and status",
	}, []string{"source", "status"})

	exportRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "matexport_export_records",
		Help: "Number of records in the last export by source",
	}, []string{"source"})

	lastSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "matexport_export_last_success_timestamp_seconds",
		Help: "Unix time of the last successful export by source",
	}, []string{"source"})
)

// DateLayout is the date prefix of every export filename.
const DateLayout = "2006-01-02"

// Filename returns the export filename for source on day:
// YYYY-MM-DD_<source>_data.json, or YYYY-MM-DD_<source>_data_<keyword>.json
// when a keyword is given.
func Filename(day time.Time, source, keyword string) string {
	name := day.Format(DateLayout) + "_" + sanitize(source) + "_data"
	if keyword = sanitize(keyword); keyword != "" {
		name += "_" + keyword
	}
	return name + ".json"
}

// sanitize replaces path separators and whitespace so keywords like
// "gips plaat" or "a/b" stay inside the output directory.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, s)
}

// Writer writes export files into Dir.
type Writer struct {
	// Dir is created on first write. Empty means the working directory.
	Dir string

	// Now supplies the date for filenames. Defaults to time.Now.
	Now func() time.Time
}

// NewWriter creates a writer for dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir, Now: time.Now}
}

// Write encodes v as indented JSON to Filename(now, source, keyword) and
// returns the path written.
func (w *Writer) Write(source, keyword string, v any) (string, error) {
	path, err := w.write(source, keyword, v)
	if err != nil {
		exportsTotal.WithLabelValues(source, "error").Inc()
		log.Error().Err(err).Str("source", source).Msg("Export failed")
		return "", err
	}

	exportsTotal.WithLabelValues(source, "ok").Inc()
	lastSuccess.WithLabelValues(source).SetToCurrentTime()
	records := recordCount(v)
	if records >= 0 {
		exportRecords.WithLabelValues(source).Set(float64(records))
	}

	log.Info().
		Str("source", source).
		Str("path", path).
		Int("records", records).
		Msg("Export written")
	return path, nil
}

func (w *Writer) write(source, keyword string, v any) (string, error) {
	if source == "" {
		return "", fmt.Errorf("export source is required")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode %s export: %w", source, err)
	}

	dir := w.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	path := filepath.Join(dir, Filename(now(), source, keyword))

	tmp, err := os.CreateTemp(dir, ".matexport-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("rename export into place: %w", err)
	}

	return path, nil
}

// recordCount returns the length of slice values and -1 for anything else.
// A json.RawMessage is one encoded document, not a slice of records.
func recordCount(v any) int {
	if _, ok := v.(json.RawMessage); ok {
		return -1
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv.Len()
	}
	return -1
}
