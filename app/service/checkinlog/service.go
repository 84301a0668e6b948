package checkinlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"wellcheck/app/config"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
)

// Store owns the check-in log document. Appends rewrite the whole document.
type Store struct {
	path string
	mu   sync.Mutex

	readFile  func(path string) ([]byte, error)
	writeFile func(path string, data []byte) error
}

func New(di *do.Injector) (*Store, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewStore(cfg.Store.Path), nil
}

func NewStore(path string) *Store {
	return &Store{
		path:      path,
		readFile:  os.ReadFile,
		writeFile: writeFileAtomic,
	}
}

func (s *Store) Path() string {
	return s.path
}

// LoadMostRecent returns the last persisted record. A missing or broken document reads as empty.
func (s *Store) LoadMostRecent() (Record, bool) {
	log := s.readLogSoft()
	if len(log.CheckIns) == 0 {
		return Record{}, false
	}

	return pie.Last(log.CheckIns), true
}

// List returns every persisted record in insertion order.
func (s *Store) List() []Record {
	return s.readLogSoft().CheckIns
}

// Append adds record to the end of the log. Errors wrap ErrStorageWrite.
// A document that exists but cannot be read is never replaced.
func (s *Store) Append(record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, err := s.readLog()
	if err != nil {
		return oops.
			In("checkinlog").
			With("path", s.path).
			Wrapf(fmt.Errorf("%w: %w", ErrStorageWrite, err), "failed to read check-in log")
	}
	log.CheckIns = append(log.CheckIns, record)

	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return oops.
			In("checkinlog").
			With("path", s.path).
			Wrapf(fmt.Errorf("%w: %w", ErrStorageWrite, err), "failed to marshal check-in log")
	}

	if err = s.writeFile(s.path, data); err != nil {
		return oops.
			In("checkinlog").
			With("path", s.path).
			Wrapf(fmt.Errorf("%w: %w", ErrStorageWrite, err), "failed to write check-in log")
	}

	slog.Info("Check-in appended",
		"path", s.path,
		"date", record.Date,
		"count", len(log.CheckIns),
	)

	return nil
}

func (s *Store) readLogSoft() Log {
	log, err := s.readLog()
	if err != nil {
		slog.Warn("Could not read check-in log", "path", s.path, "error", err)
		return Log{CheckIns: []Record{}}
	}

	return log
}

// readLog treats a missing or undecodable document as empty and reports any other read failure.
func (s *Store) readLog() (Log, error) {
	result := Log{CheckIns: []Record{}}

	data, err := s.readFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, nil
		}
		return result, err
	}

	if err = json.Unmarshal(data, &result); err != nil {
		slog.Warn("Could not decode check-in log, starting fresh", "path", s.path, "error", err)
		return Log{CheckIns: []Record{}}, nil
	}

	if result.CheckIns == nil {
		result.CheckIns = []Record{}
	}

	return result, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp_checkins_*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err = tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if _, err = tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace log file: %w", err)
	}

	return nil
}
