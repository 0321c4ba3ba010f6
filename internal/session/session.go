// Package session owns the in-memory forest shared by the FUSE view and the
// HTTP API. The folder package does no locking, so every access goes through
// a Session, which serializes mutations and persists them.
package session

import (
	"fmt"
	"sync"

	"vfolder/internal/folder"
	"vfolder/internal/logging"
	"vfolder/internal/resolver"
	"vfolder/internal/state"
)

var (
	logger = logging.GetLogger().WithPrefix("session")
)

// Session is the single logical owner of a forest
type Session struct {
	mu       sync.RWMutex
	forest   *folder.Forest
	manager  *state.Manager
	resolver *resolver.Resolver
	autoSave bool
	dirty    bool
}

// New creates a session over an already loaded forest. manager may be nil
// for a session that is never persisted.
func New(forest *folder.Forest, manager *state.Manager, res *resolver.Resolver, autoSave bool) *Session {
	if forest == nil {
		forest = folder.NewForest()
	}
	return &Session{
		forest:   forest,
		manager:  manager,
		resolver: res,
		autoSave: autoSave,
	}
}

// Open loads the forest through manager and wraps it in a session.
func Open(manager *state.Manager, res *resolver.Resolver, autoSave bool) (*Session, error) {
	forest, err := manager.LoadForest()
	if err != nil {
		return nil, err
	}
	return New(forest, manager, res, autoSave), nil
}

// Resolver returns the resource resolver, which may be nil
func (s *Session) Resolver() *resolver.Resolver {
	return s.resolver
}

// View runs fn with shared access to the forest. fn must not mutate it.
func (s *Session) View(fn func(*folder.Forest) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.forest)
}

// Update runs fn with exclusive access to the forest. When fn succeeds the
// session is marked dirty and, with autosave on, saved before returning.
func (s *Session) Update(fn func(*folder.Forest) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s.forest); err != nil {
		return err
	}
	s.dirty = true

	if !s.autoSave {
		return nil
	}
	return s.saveLocked()
}

// Dirty reports whether there are unsaved changes
func (s *Session) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Save persists the forest.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Reload replaces the in-memory forest with the saved one, discarding
// unsaved edits. Open FUSE handles keep only folder ids, so folders missing
// from the saved forest answer ENOENT afterwards.
func (s *Session) Reload() error {
	if s.manager == nil {
		return fmt.Errorf("session has no state manager")
	}

	forest, err := s.manager.LoadForest()
	if err != nil {
		logger.Error("Failed to reload state: %v", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		logger.Warn("Discarding unsaved changes")
	}
	s.forest = forest
	s.dirty = false
	logger.Info("Reloaded %d roots from %s", forest.RootCount(), s.manager.Path())
	return nil
}

func (s *Session) saveLocked() error {
	if s.manager == nil {
		return fmt.Errorf("session has no state manager")
	}
	if err := s.manager.SaveForest(s.forest); err != nil {
		logger.Error("Failed to save state: %v", err)
		return err
	}
	s.dirty = false
	logger.Debug("Saved %d roots", s.forest.RootCount())
	return nil
}
