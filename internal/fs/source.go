package fs

import (
	"context"
	"os"
	"syscall"

	"vfolder/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	sourceLogger = logging.GetLogger().WithPrefix("source")
)

// SourceDir mirrors a real directory reached through a folder's linked
// resource. The mirror is read-only: it lists and opens but never changes
// the source tree.
type SourceDir struct {
	fs   *VFolderFS
	path *SourcePath
}

// NewSourceDir returns a mirror of the directory at path
func NewSourceDir(fs *VFolderFS, path *SourcePath) *SourceDir {
	sourceLogger.Trace("Creating new SourceDir for path: %q", path.String())
	return &SourceDir{
		fs:   fs,
		path: path,
	}
}

// Attr implements the Node interface, copying the real directory attributes.
func (d *SourceDir) Attr(_ context.Context, a *fuse.Attr) error {
	sourceLogger.Trace("Getting attributes for path: %q", d.path.String())
	return d.fs.sourceAttr(d.path, a)
}

// Lookup implements the NodeStringLookuper interface.
func (d *SourceDir) Lookup(_ context.Context, name string) (fusefs.Node, error) {
	sourceLogger.Debug("Looking up %q in source path %q", name, d.path.String())
	childPath := d.path.Join(name)
	fullPath := childPath.FullPath(d.fs.resolver.SourceRoot())

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			sourceLogger.Debug("Path not found: %q", fullPath)
			return nil, syscall.ENOENT
		}
		sourceLogger.Error("Error stating path: %v", err)
		return nil, ToFuseError(err)
	}

	if info.IsDir() {
		return NewSourceDir(d.fs, childPath), nil
	}
	return &File{fs: d.fs, sourcePath: childPath}, nil
}

// ReadDirAll implements the HandleReadDirAller interface.
func (d *SourceDir) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	sourceLogger.Debug("Reading source directory: %q", d.path.String())
	entries, err := os.ReadDir(d.path.FullPath(d.fs.resolver.SourceRoot()))
	if err != nil {
		sourceLogger.Error("Error reading directory: %v", err)
		return nil, ToFuseError(err)
	}

	dirEntries := make([]fuse.Dirent, 0, len(entries))
	for _, entry := range entries {
		entryType := fuse.DT_File
		if entry.IsDir() {
			entryType = fuse.DT_Dir
		}
		sourceLogger.Trace("Adding entry: %q (type=%v)", entry.Name(), entryType)
		dirEntries = append(dirEntries, fuse.Dirent{
			Name: entry.Name(),
			Type: entryType,
		})
	}

	sourceLogger.Debug("Found %d entries in directory", len(dirEntries))
	return dirEntries, nil
}
