package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrNotFound    = errors.New("roster file not found")
	ErrCorrupt     = errors.New("roster file is not a json array of strings")
	ErrWriteFailed = errors.New("failed to write roster file")
)

// Queue is the on-disk roster, a single json array of player names. It is the
// only record of who is still waiting for a message.
type Queue struct {
	path string
}

func NewQueue(path string) Queue {
	return Queue{path: path}
}

func (q Queue) Path() string {
	return q.path
}

// Save replaces the whole file with `roster`, the previous contents stay in
// place until the new ones are fully written.
func (q Queue) Save(roster []string) error {
	if roster == nil {
		roster = []string{}
	}
	serialized, err := json.Marshal(roster)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	serialized = append(serialized, '\n')

	dir := filepath.Dir(q.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(q.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(serialized)
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	err = os.Rename(tmp.Name(), q.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// Load returns the persisted roster. A missing (or blank) file is an empty
// roster, not an error.
func (q Queue) Load() ([]string, error) {
	roster, err := q.read()
	if errors.Is(err, ErrNotFound) {
		return []string{}, nil
	}
	return roster, err
}

func (q Queue) read() ([]string, error) {
	contents, err := os.ReadFile(q.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	contents = bytes.TrimSpace(contents)
	if len(contents) == 0 {
		return []string{}, nil
	}

	roster := []string{}
	err = json.Unmarshal(contents, &roster)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, q.path, err)
	}
	if roster == nil {
		// the file contained `null`
		roster = []string{}
	}
	return roster, nil
}

// PopNext removes the last player of the roster. ok is false when the roster
// is empty. The input slice is not modified.
func PopNext(roster []string) (player string, remaining []string, ok bool) {
	if len(roster) == 0 {
		return "", roster, false
	}
	last := len(roster) - 1
	remaining = make([]string, last)
	copy(remaining, roster[:last])
	return roster[last], remaining, true
}
