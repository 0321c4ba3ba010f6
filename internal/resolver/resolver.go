// Package resolver maps the resource paths stored on virtual folders to real
// files below the source root. Folders only store paths; resolving them is
// left to this package.
package resolver

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/djherbis/times"
	"github.com/gabriel-vasile/mimetype"

	"vfolder/internal/logging"
)

var (
	logger = logging.GetLogger().WithPrefix("resolver")

	// ErrEmptyPath indicates a folder has no resource path
	ErrEmptyPath = errors.New("empty resource path")

	// ErrOutsideRoot indicates a resource path escapes the source root
	ErrOutsideRoot = errors.New("resource path outside source root")
)

// DirectoryMimeType is reported for directories
const DirectoryMimeType = "inode/directory"

// Asset describes the real file behind a resource path
type Asset struct {
	Path     string      `json:"path"`      // Cleaned path relative to the source root
	FullPath string      `json:"full_path"` // Absolute path on disk
	IsDir    bool        `json:"is_dir"`
	Size     int64       `json:"size"`
	Mode     os.FileMode `json:"mode"`
	MimeType string      `json:"mime_type"`
	Modified time.Time   `json:"modified"`
	Accessed time.Time   `json:"accessed"`
	Created  time.Time   `json:"created,omitempty"` // Zero when the platform has no birth time
}

// Resolver resolves resource paths against a source root
type Resolver struct {
	sourceRoot string
}

// New creates a resolver for the given source root
func New(sourceRoot string) (*Resolver, error) {
	abs, err := filepath.Abs(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source root %s: %w", sourceRoot, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("source root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", abs)
	}
	logger.Debug("Resolver rooted at %s", abs)
	return &Resolver{sourceRoot: abs}, nil
}

// SourceRoot returns the absolute source root
func (r *Resolver) SourceRoot() string {
	return r.sourceRoot
}

// Clean normalizes a resource path to a slash-separated path relative to the
// source root, rejecting paths that would leave it.
func (r *Resolver) Clean(resourcePath string) (string, error) {
	if strings.TrimSpace(resourcePath) == "" {
		return "", ErrEmptyPath
	}

	p := filepath.FromSlash(resourcePath)
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.sourceRoot, p)
		if err != nil {
			return "", fmt.Errorf("%s: %w", resourcePath, ErrOutsideRoot)
		}
		p = rel
	}

	cleaned := filepath.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", resourcePath, ErrOutsideRoot)
	}
	return filepath.ToSlash(cleaned), nil
}

// FullPath returns the absolute on-disk path for a resource path
func (r *Resolver) FullPath(resourcePath string) (string, error) {
	cleaned, err := r.Clean(resourcePath)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.sourceRoot, filepath.FromSlash(cleaned)), nil
}

// Resolve stats the file behind resourcePath
func (r *Resolver) Resolve(resourcePath string) (*Asset, error) {
	cleaned, err := r.Clean(resourcePath)
	if err != nil {
		return nil, err
	}
	full := filepath.Join(r.sourceRoot, filepath.FromSlash(cleaned))

	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", cleaned, err)
	}

	asset := &Asset{
		Path:     cleaned,
		FullPath: full,
		IsDir:    info.IsDir(),
		Size:     info.Size(),
		Mode:     info.Mode(),
		Modified: info.ModTime(),
		Accessed: info.ModTime(),
	}

	if ts, err := times.Stat(full); err == nil {
		asset.Modified = ts.ModTime()
		asset.Accessed = ts.AccessTime()
		if ts.HasBirthTime() {
			asset.Created = ts.BirthTime()
		}
	} else {
		logger.Debug("Failed to read times for %s: %v", cleaned, err)
	}

	if asset.IsDir {
		asset.MimeType = DirectoryMimeType
	} else {
		asset.MimeType = detectMimeType(full)
	}

	logger.Trace("Resolved %q -> %s (%s)", resourcePath, full, asset.MimeType)
	return asset, nil
}

// detectMimeType sniffs the content, falling back to the extension.
func detectMimeType(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
			return byExt
		}
		return "application/octet-stream"
	}
	return mtype.String()
}
