package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"syscall"

	"vfolder/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/djherbis/times"
)

var (
	fileLogger = logging.GetLogger().WithPrefix("file")
)

// File mirrors a real file reached through a folder's linked resource.
type File struct {
	fs         *VFolderFS
	sourcePath *SourcePath
}

// sourceAttr copies the attributes of the real file at sp into a. Access
// and change times come from the platform when it reports them.
func (vfs *VFolderFS) sourceAttr(sp *SourcePath, a *fuse.Attr) error {
	full := sp.FullPath(vfs.resolver.SourceRoot())
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			fileLogger.Warn("Linked file %q is gone", sp.String())
			return syscall.ENOENT
		}
		fileLogger.Error("Stat %q: %v", sp.String(), err)
		return ToFuseError(err)
	}

	a.Mode = info.Mode()
	a.Size = safeInt64ToUint64(info.Size())
	a.Mtime = info.ModTime()
	a.Atime = info.ModTime()
	a.Ctime = info.ModTime()
	if ts, err := times.Stat(full); err == nil {
		a.Atime = ts.AccessTime()
		if ts.HasChangeTime() {
			a.Ctime = ts.ChangeTime()
		}
	}
	a.Uid = vfs.uid
	a.Gid = vfs.gid
	a.BlockSize = 4096
	a.Blocks = safeInt64ToUint64((info.Size() + 511) / 512)

	return nil
}

// Attr reports the attributes of the real file.
func (f *File) Attr(_ context.Context, a *fuse.Attr) error {
	fileLogger.Trace("Attr %q", f.sourcePath.String())
	return f.fs.sourceAttr(f.sourcePath, a)
}

// Open opens the real file for reading. Linked files are never writable
// through the mount.
func (f *File) Open(_ context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	fileLogger.Debug("Open %q (%v)", f.sourcePath.String(), req.Flags)

	if !req.Flags.IsReadOnly() {
		fileLogger.Warn("Refusing write open of linked file %q", f.sourcePath.String())
		return nil, syscall.EROFS
	}

	file, err := os.Open(f.sourcePath.FullPath(f.fs.resolver.SourceRoot()))
	if err != nil {
		fileLogger.Error("Open %q: %v", f.sourcePath.String(), err)
		return nil, ToFuseError(err)
	}

	// The source can change underneath us; skip the page cache
	resp.Flags |= fuse.OpenDirectIO
	return &FileHandle{file: file, path: f.sourcePath.String()}, nil
}

// FileHandle is an open linked file. Reads use ReadAt and may run
// concurrently; Release waits for them.
type FileHandle struct {
	mu   sync.RWMutex
	file *os.File
	path string
}

// Read serves req.Size bytes at req.Offset. A short read at end of file is
// not an error.
func (fh *FileHandle) Read(_ context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	fh.mu.RLock()
	defer fh.mu.RUnlock()

	buf := make([]byte, req.Size)
	n, err := fh.file.ReadAt(buf, req.Offset)
	if err != nil && !errors.Is(err, io.EOF) {
		fileLogger.Error("Read %q at %d: %v", fh.path, req.Offset, err)
		return ToFuseError(err)
	}
	resp.Data = buf[:n]
	fileLogger.Trace("Read %q: %d/%d bytes at %d", fh.path, n, req.Size, req.Offset)
	return nil
}

// Release closes the real file.
func (fh *FileHandle) Release(_ context.Context, _ *fuse.ReleaseRequest) error {
	fh.mu.Lock()
	defer fh.mu.Unlock()

	fileLogger.Debug("Release %q", fh.path)
	return fh.file.Close()
}
