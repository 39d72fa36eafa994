package jsonldb

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/maruel/ksid"
)

// ErrNotFound is returned when no row has the requested ID.
var ErrNotFound = errors.New("row not found")

// Row is implemented by types stored in a Table.
type Row[T any] interface {
	Clone() T
	GetID() ksid.ID
	Validate() error
}

// Table handles storage and in-memory caching for a single table in JSONL format.
type Table[T Row[T]] struct {
	path string

	mu   sync.RWMutex
	rows []T
}

// NewTable creates a new Table and loads all data from the file.
func NewTable[T Row[T]](path string) (*Table[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	t := &Table[T]{path: path}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table[T]) load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			t.rows = nil
			return nil
		}
		return fmt.Errorf("failed to open table file %s: %w", t.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var rows []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(b, &row); err != nil {
			return fmt.Errorf("failed to unmarshal row %d in %s: %w", line, t.path, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read table file %s: %w", t.path, err)
	}
	t.rows = rows
	return nil
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Get returns a clone of the row with the given ID, or the zero value and
// false.
func (t *Table[T]) Get(id ksid.ID) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i := t.indexOf(id); i >= 0 {
		return t.rows[i].Clone(), true
	}
	var zero T
	return zero, false
}

// All returns an iterator over clones of all rows.
func (t *Table[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// Append validates row, persists it and adds it to the table.
func (t *Table[T]) Append(row T) error {
	if err := row.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.indexOf(row.GetID()) >= 0 {
		return fmt.Errorf("duplicate row id %s", row.GetID())
	}
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open table file for append: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	t.rows = append(t.rows, row.Clone())
	return nil
}

// Modify calls fn on a clone of the row with the given ID and persists the
// result if fn returns nil.
func (t *Table[T]) Modify(id ksid.ID, fn func(T) error) (T, error) {
	var zero T
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexOf(id)
	if i < 0 {
		return zero, ErrNotFound
	}
	row := t.rows[i].Clone()
	if err := fn(row); err != nil {
		return zero, err
	}
	if err := row.Validate(); err != nil {
		return zero, err
	}
	rows := slices.Clone(t.rows)
	rows[i] = row
	if err := t.save(rows); err != nil {
		return zero, err
	}
	t.rows = rows
	return row.Clone(), nil
}

// Delete removes the row with the given ID.
func (t *Table[T]) Delete(id ksid.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deleteLocked(func(row T) bool { return row.GetID() == id }, true)
}

// DeleteFunc removes every row for which fn returns true and returns how many
// were removed.
func (t *Table[T]) DeleteFunc(fn func(T) bool) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	before := len(t.rows)
	if err := t.deleteLocked(fn, false); err != nil {
		return 0, err
	}
	return before - len(t.rows), nil
}

func (t *Table[T]) deleteLocked(fn func(T) bool, mustMatch bool) error {
	rows := slices.DeleteFunc(slices.Clone(t.rows), fn)
	if len(rows) == len(t.rows) {
		if mustMatch {
			return ErrNotFound
		}
		return nil
	}
	if err := t.save(rows); err != nil {
		return err
	}
	t.rows = rows
	return nil
}

// Replace replaces all rows with the provided slice and persists it.
func (t *Table[T]) Replace(rows []T) error {
	for _, row := range rows {
		if err := row.Validate(); err != nil {
			return err
		}
	}
	cloned := make([]T, len(rows))
	for i, row := range rows {
		cloned[i] = row.Clone()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.save(cloned); err != nil {
		return err
	}
	t.rows = cloned
	return nil
}

func (t *Table[T]) indexOf(id ksid.ID) int {
	for i, row := range t.rows {
		if row.GetID() == id {
			return i
		}
	}
	return -1
}

// save writes rows to a temporary file and renames it over the table file.
func (t *Table[T]) save(rows []T) error {
	f, err := os.CreateTemp(filepath.Dir(t.path), filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		_ = os.Remove(tmp)
	}()

	w := bufio.NewWriter(f)
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to marshal row: %w", err)
		}
		_, _ = w.Write(data)
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write table file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close table file: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("failed to replace table file: %w", err)
	}
	return nil
}
