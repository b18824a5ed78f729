package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/internal/routing"
)

// FileStore keeps the routing table in a single JSON file. All operations
// hold one mutex, so per-user updates are trivially serialized.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore builds a store backed by the given path. The file is created
// lazily on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the table from disk. A missing file or unparseable content is
// treated as an empty table; corruption is logged and self-heals on the next
// save.
func (s *FileStore) Load(ctx context.Context) (routing.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *FileStore) loadLocked(ctx context.Context) (routing.Table, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return routing.Table{}, nil
		}
		logger.Store.LogAttrs(ctx, slog.LevelError, "store.load.unreadable",
			slog.String("backend", "file"),
			slog.String("path", s.path),
			slog.String("err", err.Error()),
		)
		return routing.Table{}, nil
	}

	var t routing.Table
	if err := json.Unmarshal(data, &t); err != nil {
		logger.Store.LogAttrs(ctx, slog.LevelError, "store.load.corrupt",
			slog.String("backend", "file"),
			slog.String("path", s.path),
			slog.String("err", err.Error()),
		)
		return routing.Table{}, nil
	}
	if t == nil {
		t = routing.Table{}
	}
	return t, nil
}

// Save writes the whole table atomically via a temp file and rename.
func (s *FileStore) Save(ctx context.Context, t routing.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, t)
}

func (s *FileStore) saveLocked(ctx context.Context, t routing.Table) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode table: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: replace %s: %w", s.path, err)
	}

	logger.Store.LogAttrs(ctx, slog.LevelDebug, "store.save",
		slog.String("status", "ok"),
		slog.String("backend", "file"),
		slog.Int("users", len(t)),
	)
	return nil
}

// Update applies fn to one entry under the store lock and persists the full
// table.
func (s *FileStore) Update(ctx context.Context, userID string, fn UpdateFunc) (routing.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.loadLocked(ctx)
	if err != nil {
		return routing.Entry{}, err
	}
	entry := fn(t[userID])
	t[userID] = entry
	if err := s.saveLocked(ctx, t); err != nil {
		return routing.Entry{}, err
	}
	return entry, nil
}
