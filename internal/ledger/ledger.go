// Package ledger provides the durable, append-only result log.
// Results are written as CSV rows (timestamp, name, duration) and every
// append is synced to stable storage before returning.
package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/esprobe/esprobe/internal/pkg/errors"
)

// TimestampLayout is UTC ISO-8601 with millisecond precision and no zone
// suffix, e.g. 2024-03-01T12:00:00.123.
const TimestampLayout = "2006-01-02T15:04:05.000"

var header = []string{"timestamp", "name", "duration"}

// Result is one timing observation. Created once per executed query,
// never mutated.
type Result struct {
	Timestamp time.Time
	Name      string
	Duration  float64 // seconds
}

// Ledger is an open handle to the result log.
type Ledger struct {
	path   string
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// Open opens the result log for appending, creating it (and its directory)
// if absent. A header row is written once, only when the file is new.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperrors.StorageError(fmt.Sprintf("creating ledger directory %s", dir), err)
		}
	}

	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, apperrors.StorageError(fmt.Sprintf("opening ledger file %s", path), err)
	}

	l := &Ledger{
		path:   path,
		file:   file,
		writer: csv.NewWriter(file),
	}

	if writeHeader {
		if err := l.writeRecord(header); err != nil {
			file.Close()
			return nil, apperrors.StorageError("writing ledger header", err)
		}
	}

	return l, nil
}

// Append serializes one result row and forces it to stable storage before
// returning. The row is written as a single record so a crash mid-append
// never leaves a partial row parseable as valid data.
func (l *Ledger) Append(r Result) error {
	record := []string{
		r.Timestamp.UTC().Format(TimestampLayout),
		r.Name,
		strconv.FormatFloat(r.Duration, 'f', -1, 64),
	}

	if err := l.writeRecord(record); err != nil {
		return apperrors.StorageError(fmt.Sprintf("appending result for query %q", r.Name), err)
	}
	return nil
}

// writeRecord writes one CSV record, flushes it, and syncs the file.
func (l *Ledger) writeRecord(record []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("ledger is closed")
	}

	if err := l.writer.Write(record); err != nil {
		return err
	}

	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		return err
	}

	return l.file.Sync()
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the underlying file. Further appends fail.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	err := l.file.Close()
	l.file = nil
	return err
}

// ReadAll reads every prior result row in write order. A missing file yields
// an empty slice and no error. A malformed row is a storage error, not a
// silent skip.
func ReadAll(path string) ([]Result, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Result{}, nil
		}
		return nil, apperrors.StorageError(fmt.Sprintf("opening ledger file %s", path), err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(header)

	results := []Result{}
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, apperrors.StorageError(fmt.Sprintf("malformed ledger row at line %d", line), err)
		}

		if line == 1 && record[0] == header[0] && record[1] == header[1] && record[2] == header[2] {
			continue
		}

		r, err := parseRecord(record)
		if err != nil {
			return nil, apperrors.StorageError(fmt.Sprintf("malformed ledger row at line %d", line), err)
		}
		results = append(results, r)
	}

	return results, nil
}

func parseRecord(record []string) (Result, error) {
	ts, err := time.ParseInLocation(TimestampLayout, record[0], time.UTC)
	if err != nil {
		return Result{}, fmt.Errorf("parsing timestamp %q: %w", record[0], err)
	}

	if record[1] == "" {
		return Result{}, fmt.Errorf("empty query name")
	}

	duration, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return Result{}, fmt.Errorf("parsing duration %q: %w", record[2], err)
	}
	if duration < 0 {
		return Result{}, fmt.Errorf("negative duration %f", duration)
	}

	return Result{
		Timestamp: ts,
		Name:      record[1],
		Duration:  duration,
	}, nil
}
