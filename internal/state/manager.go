// Package state provides persistent state management for the virtual folder forest.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"vfolder/internal/folder"
	"vfolder/internal/logging"
)

var (
	logger = logging.GetLogger().WithPrefix("state")
)

// DefaultBackupCount is the number of backups kept when none is configured
const DefaultBackupCount = 5

// Format is the on-disk encoding of a state file
type Format int

const (
	// FormatJSON is used for every extension except .yaml and .yml
	FormatJSON Format = iota
	// FormatYAML is selected by a .yaml or .yml extension
	FormatYAML
)

// FormatForPath picks the encoding from the file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func (f Format) ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

func (f Format) marshal(doc *Document) ([]byte, error) {
	if f == FormatYAML {
		return yaml.Marshal(doc)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (f Format) unmarshal(data []byte, doc *Document) error {
	if f == FormatYAML {
		return yaml.Unmarshal(data, doc)
	}
	return json.Unmarshal(data, doc)
}

// Manager handles loading and saving the forest
type Manager struct {
	statePath   string
	backupDir   string
	backupCount int
	format      Format
	mu          sync.RWMutex
}

// NewManager creates a new state manager for the given state file path.
// It ensures the state directory exists and is writable. A backupCount of
// zero or less selects DefaultBackupCount.
func NewManager(statePath string, backupCount int) (*Manager, error) {
	if statePath == "" {
		return nil, fmt.Errorf("state path is required")
	}

	absPath, err := filepath.Abs(statePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state path %s: %w", statePath, err)
	}

	stateDir := filepath.Dir(absPath)
	if mkdirErr := os.MkdirAll(stateDir, 0755); mkdirErr != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, mkdirErr)
	}

	// Fail now rather than on the first save if the file is not writable
	f, writeErr := os.OpenFile(absPath, os.O_WRONLY|os.O_CREATE, 0644)
	if writeErr != nil {
		return nil, fmt.Errorf("failed to create state file %s: %w", absPath, writeErr)
	}
	f.Close()

	backupDir := filepath.Join(stateDir, ".vfolder-backups")
	if backupDirErr := os.MkdirAll(backupDir, 0755); backupDirErr != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", backupDir, backupDirErr)
	}

	if backupCount <= 0 {
		backupCount = DefaultBackupCount
	}

	logger.Debug("State file %s (%d backups in %s)", absPath, backupCount, backupDir)
	return &Manager{
		statePath:   absPath,
		backupDir:   backupDir,
		backupCount: backupCount,
		format:      FormatForPath(absPath),
	}, nil
}

// Path returns the absolute state file path
func (sm *Manager) Path() string {
	return sm.statePath
}

// LoadForest loads the forest from disk.
// If no state exists yet, it writes and returns an empty forest.
func (sm *Manager) LoadForest() (*folder.Forest, error) {
	doc, err := sm.LoadDocument()
	if err != nil {
		return nil, err
	}

	forest, err := doc.Forest()
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild forest from %s: %w", sm.statePath, err)
	}

	logger.Info("Loaded %d virtual folder roots", forest.RootCount())
	return forest, nil
}

// LoadDocument reads the raw document without rebuilding trees.
func (sm *Manager) LoadDocument() (*Document, error) {
	logger.Debug("Loading state from: %s", sm.statePath)
	sm.mu.Lock()
	defer sm.mu.Unlock()

	info, err := os.Stat(sm.statePath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to check state file: %w", err)
	}
	if err != nil || info.Size() == 0 {
		logger.Info("No saved forest at %s, starting empty", sm.statePath)
		doc := &Document{Version: CurrentVersion, Roots: []Sequence{}}
		if writeErr := sm.write(doc); writeErr != nil {
			return nil, fmt.Errorf("failed to write initial state: %w", writeErr)
		}
		return doc, nil
	}

	data, err := os.ReadFile(sm.statePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	logger.Debug("Decoding %d bytes of state", len(data))
	var doc Document
	if err := sm.format.unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if doc.Version > CurrentVersion {
		return nil, fmt.Errorf("state file version %d is newer than supported version %d",
			doc.Version, CurrentVersion)
	}

	return &doc, nil
}

// SaveForest flattens the forest and saves it to disk.
// It automatically creates a backup before saving.
func (sm *Manager) SaveForest(f *folder.Forest) error {
	doc, err := NewDocument(f)
	if err != nil {
		return err
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	logger.Debug("Saving state to: %s", sm.statePath)

	if backupErr := sm.createBackup(); backupErr != nil {
		logger.Warn("Failed to create backup: %v", backupErr)
	}

	if err := sm.write(doc); err != nil {
		return err
	}

	written, verifyErr := os.ReadFile(sm.statePath)
	if verifyErr != nil {
		return fmt.Errorf("failed to verify written state: %w", verifyErr)
	}
	if len(written) == 0 {
		return fmt.Errorf("state file is empty after write")
	}

	logger.Debug("Saved %d roots", len(doc.Roots))
	return nil
}

// write encodes doc into a temp file next to the state file and renames it
// into place.
func (sm *Manager) write(doc *Document) error {
	data, err := sm.format.marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("refusing to write empty state data")
	}

	logger.Trace("Writing %d bytes of state data", len(data))
	tmp := sm.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, sm.statePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// createBackup creates a timestamped backup of the current state file
func (sm *Manager) createBackup() error {
	data, err := os.ReadFile(sm.statePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	timestamp := time.Now().Format("20060102-150405.000000")
	backupPath := filepath.Join(sm.backupDir, fmt.Sprintf("state-%s%s", timestamp, sm.format.ext()))

	logger.Debug("Creating backup: %s", backupPath)
	if err := os.WriteFile(backupPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	return sm.cleanupOldBackups()
}

// Backups returns the backup file paths, newest first
func (sm *Manager) Backups() ([]string, error) {
	entries, err := os.ReadDir(sm.backupDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "state-") {
			names = append(names, entry.Name())
		}
	}

	// Timestamped names sort chronologically
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(sm.backupDir, name)
	}
	return paths, nil
}

// cleanupOldBackups removes old backup files, keeping only the most recent ones
func (sm *Manager) cleanupOldBackups() error {
	backups, err := sm.Backups()
	if err != nil {
		return err
	}

	for i := sm.backupCount; i < len(backups); i++ {
		logger.Debug("Removing old backup: %s", backups[i])
		if err := os.Remove(backups[i]); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i], err)
		}
	}

	return nil
}
