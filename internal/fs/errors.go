// Package fs exposes a virtual folder forest through FUSE.
package fs

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"vfolder/internal/folder"
	"vfolder/internal/logging"
	"vfolder/internal/resolver"

	"bazil.org/fuse"
)

var (
	errLogger = logging.GetLogger().WithPrefix("error")

	// ErrPathNotFound: no folder or entry at the virtual path
	ErrPathNotFound = errors.New("virtual path not found")

	ErrInvalidPath = errors.New("invalid virtual path")

	// ErrReadOnly: linked resources are mirrored, never written
	ErrReadOnly = errors.New("linked resources are read-only")

	// ErrDirectoryNotEmpty: rmdir of a folder with subfolders or a link
	ErrDirectoryNotEmpty = errors.New("folder not empty")

	ErrAlreadyExists = errors.New("name already taken")

	// ErrNotPermitted: the forest has no equivalent of the operation
	ErrNotPermitted = errors.New("not supported by the folder view")
)

// Error records the FUSE operation and virtual path behind a failure.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ToFuseError converts an error to the syscall error FUSE expects. Errors
// from the folder and resolver packages are mapped alongside our own.
func ToFuseError(err error) error {
	if err == nil {
		return nil
	}

	// Errnos produced by handlers pass through untouched
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	var fuseErr fuse.ErrorNumber
	if errors.As(err, &fuseErr) {
		return fuseErr.Errno()
	}

	switch {
	case errors.Is(err, ErrPathNotFound), errors.Is(err, folder.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, ErrInvalidPath), errors.Is(err, folder.ErrInvalidArgument), errors.Is(err, folder.ErrInvalidMove),
		errors.Is(err, resolver.ErrEmptyPath), errors.Is(err, resolver.ErrOutsideRoot):
		return syscall.EINVAL
	case errors.Is(err, ErrReadOnly):
		return syscall.EROFS
	case errors.Is(err, ErrDirectoryNotEmpty):
		return syscall.ENOTEMPTY
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, folder.ErrDuplicateRoot):
		return syscall.EEXIST
	case errors.Is(err, ErrNotPermitted):
		return syscall.EPERM
	case errors.Is(err, os.ErrPermission):
		return syscall.EACCES
	default:
		errLogger.Debug("Unmapped error, answering EIO: %v", err)
		return syscall.EIO
	}
}

// NewFSError wraps err with the operation and path it happened on.
func NewFSError(op, path string, err error) *Error {
	return &Error{Op: op, Path: path, Err: err}
}

// Operation names used in Error
const (
	OpLookup   = "lookup"
	OpReadDir  = "readdir"
	OpOpen     = "open"
	OpRead     = "read"
	OpMkdir    = "mkdir"
	OpRemove   = "remove"
	OpRename   = "rename"
	OpGetattr  = "getattr"
	OpGetxattr = "getxattr"
	OpSetxattr = "setxattr"
)
