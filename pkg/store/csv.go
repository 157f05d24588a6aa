package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/pario-ai/faqbot/pkg/models"
)

// CSV column names.
const (
	ColumnQuestion = "Pregunta"
	ColumnAnswer   = "Respuesta"
)

// lockRetry is how often a blocked store lock is retried.
const lockRetry = 20 * time.Millisecond

// CSVStore keeps records in a CSV file with a Pregunta,Respuesta header.
// Extra columns are preserved on rewrite and left empty on append.
//
// Access is serialized within the process by a mutex and across processes by
// an advisory lock on a sibling <path>.lock file: reads share it, writes hold
// it exclusively.
type CSVStore struct {
	path  string
	mu    sync.Mutex
	flock *flock.Flock
}

// NewCSV returns a store over the CSV file at path. The file is created on
// the first write.
func NewCSV(path string) *CSVStore {
	return &CSVStore{path: path, flock: flock.New(path + ".lock")}
}

// lock acquires the store for reading or writing and returns the release
// function. A read without a lockable directory proceeds unlocked since
// there is no file another process could be writing.
func (s *CSVStore) lock(ctx context.Context, exclusive bool) (func(), error) {
	s.mu.Lock()

	try := s.flock.TryRLockContext
	if exclusive {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		try = s.flock.TryLockContext
	}

	ok, err := try(ctx, lockRetry)
	if err == nil && !ok {
		err = errors.New("lock not acquired")
	}
	if err != nil {
		if !exclusive && (errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)) {
			return s.mu.Unlock, nil
		}
		s.mu.Unlock()
		return nil, fmt.Errorf("lock store: %w", err)
	}
	return func() {
		_ = s.flock.Unlock()
		s.mu.Unlock()
	}, nil
}

// Path returns the backing file path.
func (s *CSVStore) Path() string { return s.path }

type csvLayout struct {
	header   []string
	question int
	answer   int
}

func defaultLayout() csvLayout {
	return csvLayout{header: []string{ColumnQuestion, ColumnAnswer}, question: 0, answer: 1}
}

func parseHeader(header []string) (csvLayout, error) {
	l := csvLayout{header: header, question: -1, answer: -1}
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case ColumnQuestion:
			l.question = i
		case ColumnAnswer:
			l.answer = i
		}
	}
	if l.question < 0 || l.answer < 0 {
		return l, fmt.Errorf("%w: header must contain %s and %s columns", ErrMalformed, ColumnQuestion, ColumnAnswer)
	}
	return l, nil
}

// readAll returns the file layout and its raw data rows with their 1-based
// line numbers. A missing file yields fs.ErrNotExist.
func (s *CSVStore) readAll() (csvLayout, [][]string, []int, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return csvLayout{}, nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return defaultLayout(), nil, nil, nil
	}
	if err != nil {
		return csvLayout{}, nil, nil, fmt.Errorf("%w: read header: %w", ErrUnreadable, err)
	}
	layout, err := parseHeader(header)
	if err != nil {
		return csvLayout{}, nil, nil, err
	}

	var rows [][]string
	var lines []int
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return csvLayout{}, nil, nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		line, _ := r.FieldPos(0)
		rows = append(rows, row)
		lines = append(lines, line)
	}
	return layout, rows, lines, nil
}

func (l csvLayout) record(row []string) models.FAQRecord {
	var rec models.FAQRecord
	if l.question < len(row) {
		rec.Question = row[l.question]
	}
	if l.answer < len(row) {
		rec.Answer = row[l.answer]
	}
	return rec
}

func (l csvLayout) row(rec models.FAQRecord) []string {
	row := make([]string, len(l.header))
	row[l.question] = rec.Question
	row[l.answer] = rec.Answer
	return row
}

// Load reads every record. A missing file is ErrUnreadable; a row without a
// question or answer is ErrMalformed and reports its line number.
func (s *CSVStore) Load(ctx context.Context) ([]models.FAQRecord, error) {
	unlock, err := s.lock(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	layout, rows, lines, err := s.readAll()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
		}
		return nil, err
	}

	records := make([]models.FAQRecord, 0, len(rows))
	for i, row := range rows {
		rec := layout.record(row)
		if err := validate(rec); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.path, lines[i], err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Append adds rec to the end of the file, creating it with a header first if
// needed.
func (s *CSVStore) Append(ctx context.Context, rec models.FAQRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	unlock, err := s.lock(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()
	return s.appendLocked(rec)
}

func (s *CSVStore) appendLocked(rec models.FAQRecord) error {
	layout, _, _, err := s.readAll()
	fresh := errors.Is(err, fs.ErrNotExist)
	if err != nil && !fresh {
		return err
	}
	if fresh {
		layout = defaultLayout()
		if dir := filepath.Dir(s.path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create store dir: %w", err)
			}
		}
	}

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat store: %w", err)
	}

	var buf bytes.Buffer
	if info.Size() == 0 {
		layout = defaultLayout()
		if err := writeRows(&buf, layout.header); err != nil {
			return err
		}
	} else if !endsWithNewline(f, info.Size()) {
		buf.WriteByte('\n')
	}
	if err := writeRows(&buf, layout.row(rec)); err != nil {
		return err
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return f.Sync()
}

func endsWithNewline(f *os.File, size int64) bool {
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return true
	}
	return last[0] == '\n'
}

func writeRows(w io.Writer, rows ...[]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	return nil
}

// Replace rewrites the file with the answer of the last matching record
// replaced. The new content is written to a temporary file and renamed over
// the original.
func (s *CSVStore) Replace(ctx context.Context, question, answer string) (bool, error) {
	rec := models.FAQRecord{Question: question, Answer: answer}
	if err := validate(rec); err != nil {
		return false, err
	}

	unlock, err := s.lock(ctx, true)
	if err != nil {
		return false, err
	}
	defer unlock()

	layout, rows, _, err := s.readAll()
	if errors.Is(err, fs.ErrNotExist) {
		return false, s.appendLocked(rec)
	}
	if err != nil {
		return false, err
	}

	target := -1
	for i := len(rows) - 1; i >= 0; i-- {
		if layout.record(rows[i]).Question == question {
			target = i
			break
		}
	}
	if target < 0 {
		return false, s.appendLocked(rec)
	}

	for len(rows[target]) <= layout.answer {
		rows[target] = append(rows[target], "")
	}
	rows[target][layout.answer] = answer

	if err := s.rewrite(append([][]string{layout.header}, rows...)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *CSVStore) rewrite(rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".faq-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeRows(tmp, rows...); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if info, err := os.Stat(s.path); err == nil {
		_ = os.Chmod(tmp.Name(), info.Mode().Perm())
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}

// Count returns the number of data rows.
func (s *CSVStore) Count(ctx context.Context) (int, error) {
	records, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Close is a no-op; the file is opened per operation.
func (s *CSVStore) Close() error { return nil }

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
