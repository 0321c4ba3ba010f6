package fs

import (
	"path"
	"path/filepath"
	"strings"

	"vfolder/internal/folder"
	"vfolder/internal/logging"
)

var (
	pathLogger = logging.GetLogger().WithPrefix("path")
)

// idSuffixLen is how much of a folder id disambiguates duplicate names.
const idSuffixLen = 8

// SourcePath represents a path in the actual source filesystem.
// All paths are stored relative to the source root directory.
type SourcePath struct {
	// relative path from source root
	path string
}

// NewSourcePath creates a new SourcePath instance.
// It cleans the path and ensures it's relative to the source root.
func NewSourcePath(p string) *SourcePath {
	cleaned := filepath.Clean(p)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "." {
		cleaned = ""
	}
	pathLogger.Trace("Creating new source path: %q -> %q", p, cleaned)
	return &SourcePath{path: cleaned}
}

// String returns the string representation of the path
func (sp *SourcePath) String() string {
	return sp.path
}

// FullPath returns the absolute path by joining with the source root
func (sp *SourcePath) FullPath(sourceRoot string) string {
	full := filepath.Join(sourceRoot, sp.path)
	pathLogger.Trace("Getting full path: %q + %q -> %q", sourceRoot, sp.path, full)
	return full
}

// Join returns the child path name below sp
func (sp *SourcePath) Join(name string) *SourcePath {
	return NewSourcePath(filepath.Join(sp.path, name))
}

// Base returns the last element of the path
func (sp *SourcePath) Base() string {
	return filepath.Base(sp.path)
}

// VirtualPath is the location of a folder inside the mounted view, built
// from the names of its ancestors. It is informational: folders are found
// by id, not by path.
type VirtualPath struct {
	// always starts with /
	path string
}

// NewVirtualPath creates a new VirtualPath instance.
// It cleans the path and ensures it's absolute.
func NewVirtualPath(p string) *VirtualPath {
	cleaned := path.Clean("/" + p)
	pathLogger.Trace("Creating new virtual path: %q -> %q", p, cleaned)
	return &VirtualPath{path: cleaned}
}

// VirtualPathOf returns the virtual path of n. Duplicate sibling names are
// not disambiguated.
func VirtualPathOf(n *folder.Node) *VirtualPath {
	var parts []string
	for cur := n; cur != nil; cur = cur.Parent() {
		parts = append(parts, entryName(cur.Name, cur.ID))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return &VirtualPath{path: "/" + strings.Join(parts, "/")}
}

// String returns the string representation of the path
func (vp *VirtualPath) String() string {
	return vp.path
}

// Base returns the last element of the path
func (vp *VirtualPath) Base() string {
	return path.Base(vp.path)
}

// IsRoot returns true if this is the mount root "/"
func (vp *VirtualPath) IsRoot() bool {
	return vp.path == "/"
}

// entryName turns a folder name into a usable directory entry name.
func entryName(name string, id folder.ID) string {
	name = strings.ReplaceAll(name, "/", "_")
	if name == "" || name == "." || name == ".." {
		return string(id)
	}
	return name
}

func shortID(id folder.ID) string {
	s := string(id)
	if len(s) > idSuffixLen {
		s = s[:idSuffixLen]
	}
	return s
}

// listing is the directory view of one folder: its subfolders by entry name
// and the entry name of its linked resource, if any.
type listing struct {
	names    []string
	children map[string]*folder.Node
	linked   string
}

// listFolder builds the listing for n. The first sibling with a name keeps
// it; later ones get " [<id prefix>]" appended. A linked resource whose
// name collides with a subfolder is hidden.
func listFolder(n *folder.Node) *listing {
	l := &listing{children: make(map[string]*folder.Node, n.ChildCount())}
	for _, c := range n.Children {
		name := entryName(c.Name, c.ID)
		if _, taken := l.children[name]; taken {
			name = name + " [" + shortID(c.ID) + "]"
		}
		l.children[name] = c
		l.names = append(l.names, name)
	}

	if n.Path != "" {
		linked := path.Base(filepath.ToSlash(n.Path))
		if _, taken := l.children[linked]; taken {
			pathLogger.Debug("Linked resource %q of %s hidden by a subfolder", linked, VirtualPathOf(n))
		} else {
			l.linked = linked
		}
	}
	return l
}

// nameTaken reports whether name is already an entry of the listing
func (l *listing) nameTaken(name string) bool {
	if _, ok := l.children[name]; ok {
		return true
	}
	return l.linked != "" && l.linked == name
}
