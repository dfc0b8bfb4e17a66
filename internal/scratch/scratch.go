// Package scratch hands out per-task working directories and removes them
// exactly once.
package scratch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	dirPrefix        = "task-"
	defaultExtension = ".bin"
	maxExtensionLen  = 8
	outputName       = "converted.wav"
)

type Manager struct {
	root   string
	logger *zap.Logger
}

type Workspace struct {
	ID         string
	Dir        string
	InputPath  string
	OutputPath string

	logger   *zap.Logger
	once     sync.Once
	mu       sync.Mutex
	released bool
	err      error
}

func NewManager(root string, logger *zap.Logger) (*Manager, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("scratch root must not be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch root %s: %w", root, err)
	}

	return &Manager{root: root, logger: logger}, nil
}

func (m *Manager) Root() string {
	return m.root
}

// Acquire creates a fresh directory for one task. The filename hint only
// contributes its extension; the rest of the name is random.
func (m *Manager) Acquire(filenameHint string) (*Workspace, error) {
	id := uuid.NewString()
	dir := filepath.Join(m.root, dirPrefix+id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create task directory: %w", err)
	}

	return &Workspace{
		ID:         id,
		Dir:        dir,
		InputPath:  filepath.Join(dir, "input"+ExtensionHint(filenameHint)),
		OutputPath: filepath.Join(dir, outputName),
		logger:     m.logger,
	}, nil
}

// Purge removes task directories left behind by an earlier process.
func (m *Manager) Purge() (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, fmt.Errorf("read scratch root: %w", err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.root, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info("removed stale task directories", zap.Int("count", removed), zap.String("root", m.root))
	}
	return removed, errors.Join(errs...)
}

// WriteInput stores the uploaded bytes at the workspace input path.
func (w *Workspace) WriteInput(data []byte) error {
	if err := os.WriteFile(w.InputPath, data, 0o600); err != nil {
		return fmt.Errorf("write task input: %w", err)
	}
	return nil
}

// Release removes the workspace directory. Only the first call does any
// work; every later call returns the first call's result.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		err := os.RemoveAll(w.Dir)
		if err != nil {
			w.logger.Warn("failed to remove task directory", zap.String("task_id", w.ID), zap.String("path", w.Dir), zap.Error(err))
		}

		w.mu.Lock()
		w.released = true
		w.err = err
		w.mu.Unlock()
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Workspace) Released() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.released
}

// ExtensionHint derives a safe file extension from an untrusted filename.
func ExtensionHint(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(strings.TrimSpace(filename))))
	if len(ext) < 2 || len(ext) > maxExtensionLen+1 {
		return defaultExtension
	}

	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return defaultExtension
		}
	}
	return ext
}
