// Package jsonlog appends interaction records to per-mode JSON array files.
package jsonlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zhouzirui/ochat/internal/model/record"
)

// ErrUnknownMode is returned for records whose mode has no log file.
var ErrUnknownMode = errors.New("unknown record mode")

// Store keeps one JSON array file per mode under dir.
type Store struct {
	mu  sync.Mutex
	dir string
}

// New creates dir if needed and returns a Store rooted there.
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the log directory.
func (s *Store) Dir() string {
	return s.dir
}

// FileName maps a mode to its log file name.
func FileName(mode record.Mode) (string, error) {
	switch mode {
	case record.ModeChat:
		return "chat_log.json", nil
	case record.ModeExecute:
		return "execute_log.json", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// Path returns the absolute-or-relative path of a mode's log file.
func (s *Store) Path(mode record.Mode) (string, error) {
	name, err := FileName(mode)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// Append adds rec to the end of its mode's file.
func (s *Store) Append(ctx context.Context, rec record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.Path(rec.Mode)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := readFile(path)
	if err != nil {
		return err
	}
	existing = append(existing, rec)

	return writeFile(path, existing)
}

// List returns every record stored for mode, oldest first.
func (s *Store) List(mode record.Mode) ([]record.Record, error) {
	path, err := s.Path(mode)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return readFile(path)
}

// Recent returns at most limit of the newest records for mode, oldest first.
func (s *Store) Recent(mode record.Mode, limit int) ([]record.Record, error) {
	all, err := s.List(mode)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func readFile(path string) ([]record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []record.Record{}, nil
		}
		return nil, fmt.Errorf("read log %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []record.Record{}, nil
	}

	var records []record.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode log %s: %w", path, err)
	}
	return records, nil
}

func writeFile(path string, records []record.Record) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode log %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp log: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp log: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace log %s: %w", path, err)
	}
	return nil
}
