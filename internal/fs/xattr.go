package fs

import (
	"context"
	"syscall"

	"vfolder/internal/folder"

	"bazil.org/fuse"
)

// Extended attributes exposed on every folder
const (
	XattrID   = "user.vfolder.id"   // Folder id, read-only
	XattrPath = "user.vfolder.path" // Linked resource path
)

// Getxattr implements the NodeGetxattrer interface.
func (d *Dir) Getxattr(_ context.Context, req *fuse.GetxattrRequest, resp *fuse.GetxattrResponse) error {
	dirLogger.Debug("Getting xattr %q for folder %s", req.Name, d.id)
	return ToFuseError(d.fs.view(d.id, func(n *folder.Node) error {
		switch req.Name {
		case XattrID:
			resp.Xattr = []byte(n.ID)
		case XattrPath:
			if n.Path == "" {
				return fuse.ErrNoXattr
			}
			resp.Xattr = []byte(n.Path)
		default:
			return fuse.ErrNoXattr
		}
		return nil
	}))
}

// Listxattr implements the NodeListxattrer interface.
func (d *Dir) Listxattr(_ context.Context, _ *fuse.ListxattrRequest, resp *fuse.ListxattrResponse) error {
	return ToFuseError(d.fs.view(d.id, func(n *folder.Node) error {
		resp.Append(XattrID)
		if n.Path != "" {
			resp.Append(XattrPath)
		}
		return nil
	}))
}

// Setxattr implements the NodeSetxattrer interface. Only the resource path
// can be written, and it must resolve below the source root.
func (d *Dir) Setxattr(_ context.Context, req *fuse.SetxattrRequest) error {
	dirLogger.Debug("Setting xattr %q for folder %s (%d bytes)", req.Name, d.id, len(req.Xattr))

	switch req.Name {
	case XattrID:
		return syscall.EPERM
	case XattrPath:
	default:
		return syscall.ENOTSUP
	}

	asset, err := d.fs.resolver.Resolve(string(req.Xattr))
	if err != nil {
		dirLogger.Warn("Rejected resource path %q: %v", req.Xattr, err)
		return ToFuseError(NewFSError(OpSetxattr, string(req.Xattr), err))
	}

	return ToFuseError(d.fs.update(d.id, func(_ *folder.Forest, n *folder.Node) error {
		n.Path = asset.Path
		return nil
	}))
}

// Removexattr implements the NodeRemovexattrer interface.
func (d *Dir) Removexattr(_ context.Context, req *fuse.RemovexattrRequest) error {
	switch req.Name {
	case XattrID:
		return syscall.EPERM
	case XattrPath:
	default:
		return fuse.ErrNoXattr
	}

	return ToFuseError(d.fs.update(d.id, func(_ *folder.Forest, n *folder.Node) error {
		if n.Path == "" {
			return fuse.ErrNoXattr
		}
		n.Path = ""
		return nil
	}))
}
