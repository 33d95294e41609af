package helper

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Scratch is a per-model download directory ("<model> Data"). Its content only
// lives for one fetch: it is purged before new files are written.
type Scratch struct {
	dir string
	mu  sync.Mutex
}

var (
	scratchMu   sync.Mutex
	scratchDirs = make(map[string]*Scratch)
)

// ScratchFor returns the scratch directory of model below root, creating it if
// needed. Callers asking for the same directory share one instance so that
// Lock serializes them.
func ScratchFor(root, model string) (*Scratch, error) {
	dir := filepath.Join(root, model+" Data")

	scratchMu.Lock()
	defer scratchMu.Unlock()

	if s, ok := scratchDirs[dir]; ok {
		return s, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("[SCRATCH] creating %s: %w", dir, err)
	}

	s := &Scratch{dir: dir}
	scratchDirs[dir] = s
	return s, nil
}

func (s *Scratch) Dir() string {
	return s.dir
}

func (s *Scratch) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

func (s *Scratch) Lock() {
	s.mu.Lock()
}

func (s *Scratch) Unlock() {
	s.mu.Unlock()
}

// Purge removes every file in the directory. Errors are logged and ignored.
func (s *Scratch) Purge() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		Log.Debug().Err(err).Str("dir", s.dir).Msg("scratch not readable, nothing to purge")
		return
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, entry.Name())); err != nil {
			Log.Debug().Err(err).Str("file", entry.Name()).Msg("could not remove scratch file")
		}
	}
}
