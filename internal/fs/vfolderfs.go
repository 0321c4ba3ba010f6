package fs

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"vfolder/internal/folder"
	"vfolder/internal/logging"
	"vfolder/internal/resolver"
	"vfolder/internal/session"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	vfsLogger = logging.GetLogger().WithPrefix("vfs")
)

// VFolderFS renders a virtual folder forest as a filesystem. Each root is a
// top-level directory, each folder a directory, and a folder's linked
// resource appears inside it as a read-only mirror of the real file or
// directory.
type VFolderFS struct {
	session    *session.Session   // Owner of the forest
	resolver   *resolver.Resolver // Resolves linked resources
	allowOther bool               // Mount with allow_other
	conn       *fuse.Conn         // FUSE connection
	uid        uint32             // User ID for filesystem operations
	gid        uint32             // Group ID for filesystem operations
}

// NewVFolderFS creates a new virtual filesystem instance.
func NewVFolderFS(sess *session.Session, allowOther bool) (*VFolderFS, error) {
	vfsLogger.Info("Creating new virtual folder filesystem")

	res := sess.Resolver()
	if res == nil {
		return nil, fmt.Errorf("session has no resource resolver")
	}
	vfsLogger.Debug("Source directory: %s", res.SourceRoot())

	// Get UID/GID from environment if set
	uid := safeIntToUint32(os.Getuid())
	gid := safeIntToUint32(os.Getgid())

	if puidStr := os.Getenv("PUID"); puidStr != "" {
		if puid, err := strconv.ParseUint(puidStr, 10, 32); err == nil {
			uid = uint32(puid)
			vfsLogger.Debug("Using PUID from environment: %d", uid)
		}
	}
	if pgidStr := os.Getenv("PGID"); pgidStr != "" {
		if pgid, err := strconv.ParseUint(pgidStr, 10, 32); err == nil {
			gid = uint32(pgid)
			vfsLogger.Debug("Using PGID from environment: %d", gid)
		}
	}

	vfs := &VFolderFS{
		session:    sess,
		resolver:   res,
		allowOther: allowOther,
		uid:        uid,
		gid:        gid,
	}

	vfsLogger.Info("Virtual folder filesystem created successfully")
	return vfs, nil
}

// Root implements the fusefs.FS interface, returning the directory that
// lists the forest roots.
func (vfs *VFolderFS) Root() (fusefs.Node, error) {
	vfsLogger.Trace("Getting root directory node")
	return &ForestDir{fs: vfs}, nil
}

// view runs fn against the node id under the session's read lock.
func (vfs *VFolderFS) view(id folder.ID, fn func(*folder.Node) error) error {
	return vfs.session.View(func(f *folder.Forest) error {
		n, ok := f.Find(id)
		if !ok {
			return folder.ErrNotFound
		}
		return fn(n)
	})
}

// update runs fn against the node id under the session's write lock.
func (vfs *VFolderFS) update(id folder.ID, fn func(*folder.Forest, *folder.Node) error) error {
	return vfs.session.Update(func(f *folder.Forest) error {
		n, ok := f.Find(id)
		if !ok {
			return folder.ErrNotFound
		}
		return fn(f, n)
	})
}

func (vfs *VFolderFS) dirAttr(a *fuse.Attr) {
	a.Mode = os.ModeDir | 0755
	a.Uid = vfs.uid
	a.Gid = vfs.gid
}

func waitForMount(mountpoint string) error {
	for i := 0; i < 30; i++ {
		info, err := os.Stat(mountpoint)
		if err == nil && info.IsDir() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("mount point not available after 3 seconds")
}

// Mount mounts the filesystem and serves it in the background until
// Unmount is called.
func (vfs *VFolderFS) Mount(mountPoint string) error {
	vfsLogger.Info("Mounting virtual folder filesystem")
	vfsLogger.Debug("Mount point: %s", mountPoint)
	vfsLogger.Debug("UID: %d, GID: %d", vfs.uid, vfs.gid)

	// Check if source directory is readable
	if _, err := os.ReadDir(vfs.resolver.SourceRoot()); err != nil {
		vfsLogger.Error("Cannot read source directory: %v", err)
		return fmt.Errorf("source directory not readable: %w", err)
	}

	mountOpts := []fuse.MountOption{
		fuse.FSName("vfolder"),
		fuse.Subtype("vfolder"),
		fuse.DefaultPermissions(),
		fuse.AsyncRead(),
	}
	if vfs.allowOther {
		mountOpts = append(mountOpts, fuse.AllowOther())
	}

	c, err := fuse.Mount(mountPoint, mountOpts...)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	vfs.conn = c

	go func() {
		if err := fusefs.Serve(c, vfs); err != nil {
			vfsLogger.Error("FUSE server error: %v", err)
		}
		vfsLogger.Debug("FUSE server stopped")
	}()

	// Wait for mount to be ready
	if err := waitForMount(mountPoint); err != nil {
		c.Close()
		vfsLogger.Error("Mount point not ready: %v", err)
		return fmt.Errorf("mount point failed to initialize: %w", err)
	}

	vfsLogger.Info("Filesystem mounted successfully")
	return nil
}

// Unmount cleanly unmounts the filesystem.
func (vfs *VFolderFS) Unmount(mountPoint string) error {
	vfsLogger.Info("Unmounting filesystem from: %s", mountPoint)
	if vfs.conn == nil {
		return nil
	}

	err := fuse.Unmount(mountPoint)
	if err != nil {
		vfsLogger.Error("Unmount failed: %v", err)
		return err
	}
	vfs.conn.Close()
	vfs.conn = nil
	vfsLogger.Info("Unmount completed successfully")
	return nil
}
