package fs

import (
	"context"
	"fmt"
	"syscall"

	"vfolder/internal/folder"
	"vfolder/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	dirLogger = logging.GetLogger().WithPrefix("dir")
)

// ForestDir is the mount root. Its entries are the forest roots.
type ForestDir struct {
	fs *VFolderFS
}

// Attr implements the Node interface, returning directory attributes.
func (d *ForestDir) Attr(_ context.Context, a *fuse.Attr) error {
	dirLogger.Trace("Setting root directory attributes")
	d.fs.dirAttr(a)
	return nil
}

// rootByEntry finds the root whose entry name is name
func rootByEntry(f *folder.Forest, name string) (*folder.Node, bool) {
	for _, r := range f.Roots() {
		if entryName(r.Name, r.ID) == name {
			return r, true
		}
	}
	return nil, false
}

// Lookup implements the NodeStringLookuper interface, finding a root.
func (d *ForestDir) Lookup(_ context.Context, name string) (fusefs.Node, error) {
	dirLogger.Debug("Looking up root %q", name)

	var id folder.ID
	err := d.fs.session.View(func(f *folder.Forest) error {
		root, ok := rootByEntry(f, name)
		if !ok {
			return ErrPathNotFound
		}
		id = root.ID
		return nil
	})
	if err != nil {
		dirLogger.Debug("Root not found: %q", name)
		return nil, syscall.ENOENT
	}
	return &Dir{fs: d.fs, id: id}, nil
}

// ReadDirAll implements the HandleReadDirAller interface, listing the roots.
func (d *ForestDir) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	entries := []fuse.Dirent{
		{Name: ".", Type: fuse.DT_Dir},
		{Name: "..", Type: fuse.DT_Dir},
	}

	err := d.fs.session.View(func(f *folder.Forest) error {
		for _, r := range f.Roots() {
			entries = append(entries, fuse.Dirent{Name: entryName(r.Name, r.ID), Type: fuse.DT_Dir})
		}
		return nil
	})
	if err != nil {
		return nil, ToFuseError(err)
	}

	dirLogger.Debug("Root directory contains %d entries", len(entries))
	return entries, nil
}

// Mkdir implements the NodeMkdirer interface, creating a new root.
func (d *ForestDir) Mkdir(_ context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	dirLogger.Info("Creating new root %q", req.Name)

	var id folder.ID
	err := d.fs.session.Update(func(f *folder.Forest) error {
		root, err := f.AddRoot(req.Name)
		if err != nil {
			return err
		}
		id = root.ID
		return nil
	})
	if err != nil {
		dirLogger.Warn("Failed to create root %q: %v", req.Name, err)
		return nil, ToFuseError(NewFSError(OpMkdir, "/"+req.Name, err))
	}
	return &Dir{fs: d.fs, id: id}, nil
}

// Remove implements the NodeRemover interface, deleting an empty root.
func (d *ForestDir) Remove(_ context.Context, req *fuse.RemoveRequest) error {
	dirLogger.Info("Removing root %q", req.Name)

	if !req.Dir {
		return ToFuseError(NewFSError(OpRemove, "/"+req.Name, ErrNotPermitted))
	}

	err := d.fs.session.Update(func(f *folder.Forest) error {
		root, ok := rootByEntry(f, req.Name)
		if !ok {
			return ErrPathNotFound
		}
		if root.ChildCount() > 0 || root.Path != "" {
			return ErrDirectoryNotEmpty
		}
		return f.RemoveRoot(root.Name)
	})
	if err != nil {
		dirLogger.Warn("Failed to remove root %q: %v", req.Name, err)
		return ToFuseError(NewFSError(OpRemove, "/"+req.Name, err))
	}
	return nil
}

// Rename implements the NodeRenamer interface. Roots can only be renamed in
// place; making a root a subfolder is not supported.
func (d *ForestDir) Rename(_ context.Context, req *fuse.RenameRequest, newDir fusefs.Node) error {
	dirLogger.Info("Renaming root %q to %q", req.OldName, req.NewName)

	if _, ok := newDir.(*ForestDir); !ok {
		dirLogger.Warn("Cannot move root %q below another folder", req.OldName)
		return ToFuseError(NewFSError(OpRename, "/"+req.OldName, ErrNotPermitted))
	}

	err := d.fs.session.Update(func(f *folder.Forest) error {
		root, ok := rootByEntry(f, req.OldName)
		if !ok {
			return ErrPathNotFound
		}
		return f.RenameRoot(root.Name, req.NewName)
	})
	if err != nil {
		return ToFuseError(NewFSError(OpRename, "/"+req.OldName, err))
	}
	return nil
}

// Dir is one folder of the forest. It holds the folder id rather than the
// node so that a removed folder reports ENOENT instead of acting on a
// detached tree.
type Dir struct {
	fs *VFolderFS
	id folder.ID
}

// Attr implements the Node interface, returning directory attributes.
func (d *Dir) Attr(_ context.Context, a *fuse.Attr) error {
	err := d.fs.view(d.id, func(*folder.Node) error { return nil })
	if err != nil {
		return ToFuseError(err)
	}
	d.fs.dirAttr(a)
	return nil
}

// Lookup implements the NodeStringLookuper interface, finding a subfolder or
// the linked resource.
func (d *Dir) Lookup(_ context.Context, name string) (fusefs.Node, error) {
	var (
		childID folder.ID
		linked  string
	)
	err := d.fs.view(d.id, func(n *folder.Node) error {
		dirLogger.Debug("Looking up %q in %s", name, VirtualPathOf(n))
		l := listFolder(n)
		if child, ok := l.children[name]; ok {
			childID = child.ID
			return nil
		}
		if l.linked != "" && l.linked == name {
			linked = n.Path
			return nil
		}
		return ErrPathNotFound
	})
	if err != nil {
		return nil, ToFuseError(err)
	}

	if childID != "" {
		return &Dir{fs: d.fs, id: childID}, nil
	}
	return d.fs.linkedNode(linked)
}

// linkedNode resolves a folder's resource path to a mirror node.
func (vfs *VFolderFS) linkedNode(resourcePath string) (fusefs.Node, error) {
	asset, err := vfs.resolver.Resolve(resourcePath)
	if err != nil {
		dirLogger.Warn("Linked resource %q unavailable: %v", resourcePath, err)
		return nil, ToFuseError(NewFSError(OpLookup, resourcePath, err))
	}
	sp := NewSourcePath(asset.Path)
	if asset.IsDir {
		return NewSourceDir(vfs, sp), nil
	}
	return &File{fs: vfs, sourcePath: sp}, nil
}

// ReadDirAll implements the HandleReadDirAller interface, listing subfolders
// in order followed by the linked resource.
func (d *Dir) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	entries := []fuse.Dirent{
		{Name: ".", Type: fuse.DT_Dir},
		{Name: "..", Type: fuse.DT_Dir},
	}

	var linked, resourcePath string
	err := d.fs.view(d.id, func(n *folder.Node) error {
		l := listFolder(n)
		for _, name := range l.names {
			entries = append(entries, fuse.Dirent{Name: name, Type: fuse.DT_Dir})
		}
		linked, resourcePath = l.linked, n.Path
		return nil
	})
	if err != nil {
		return nil, ToFuseError(err)
	}

	if linked != "" {
		asset, err := d.fs.resolver.Resolve(resourcePath)
		switch {
		case err != nil:
			dirLogger.Debug("Skipping unavailable linked resource %q: %v", resourcePath, err)
		case asset.IsDir:
			entries = append(entries, fuse.Dirent{Name: linked, Type: fuse.DT_Dir})
		default:
			entries = append(entries, fuse.Dirent{Name: linked, Type: fuse.DT_File})
		}
	}

	dirLogger.Debug("Folder %s contains %d entries", d.id, len(entries))
	return entries, nil
}

// Mkdir implements the NodeMkdirer interface, appending a subfolder.
func (d *Dir) Mkdir(_ context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	var id folder.ID
	err := d.fs.update(d.id, func(_ *folder.Forest, n *folder.Node) error {
		dirLogger.Info("Creating folder %q in %s", req.Name, VirtualPathOf(n))
		if listFolder(n).nameTaken(req.Name) {
			return ErrAlreadyExists
		}
		id = n.AddChild()
		n.Child(n.ChildCount() - 1).Name = req.Name
		return nil
	})
	if err != nil {
		return nil, ToFuseError(NewFSError(OpMkdir, req.Name, err))
	}
	return &Dir{fs: d.fs, id: id}, nil
}

// Remove implements the NodeRemover interface. Removing a subfolder requires
// it to be empty; removing the linked resource only clears the link.
func (d *Dir) Remove(_ context.Context, req *fuse.RemoveRequest) error {
	err := d.fs.update(d.id, func(_ *folder.Forest, n *folder.Node) error {
		dirLogger.Info("Removing %q from %s (isDir=%v)", req.Name, VirtualPathOf(n), req.Dir)
		l := listFolder(n)

		if child, ok := l.children[req.Name]; ok {
			if !req.Dir {
				return syscall.EISDIR
			}
			if child.ChildCount() > 0 || child.Path != "" {
				return ErrDirectoryNotEmpty
			}
			n.RemoveChild(child)
			return nil
		}

		if l.linked != "" && l.linked == req.Name {
			dirLogger.Debug("Clearing link %q", n.Path)
			n.Path = ""
			return nil
		}
		return ErrPathNotFound
	})
	if err != nil {
		return ToFuseError(NewFSError(OpRemove, req.Name, err))
	}
	return nil
}

// Rename implements the NodeRenamer interface. A subfolder is renamed and,
// when the target differs, moved to the end of the target folder. A linked
// resource moves its link to the target folder.
func (d *Dir) Rename(_ context.Context, req *fuse.RenameRequest, newDir fusefs.Node) error {
	var targetID folder.ID
	switch target := newDir.(type) {
	case *Dir:
		targetID = target.id
	case *ForestDir:
		dirLogger.Warn("Cannot turn %q into a root", req.OldName)
		return ToFuseError(NewFSError(OpRename, req.OldName, ErrNotPermitted))
	case *SourceDir:
		dirLogger.Warn("Cannot move %q into a linked resource", req.OldName)
		return ToFuseError(NewFSError(OpRename, req.OldName, ErrReadOnly))
	default:
		dirLogger.Error("Target is not a valid directory type")
		return syscall.EINVAL
	}

	err := d.fs.update(d.id, func(f *folder.Forest, n *folder.Node) error {
		target, ok := f.Find(targetID)
		if !ok {
			return ErrPathNotFound
		}
		dirLogger.Info("Renaming %s/%s to %s/%s", VirtualPathOf(n), req.OldName, VirtualPathOf(target), req.NewName)
		return renameEntry(n, target, req.OldName, req.NewName)
	})
	if err != nil {
		return ToFuseError(NewFSError(OpRename, req.OldName, err))
	}
	return nil
}

func renameEntry(src, target *folder.Node, oldName, newName string) error {
	l := listFolder(src)

	if child, ok := l.children[oldName]; ok {
		if target == src && oldName == newName {
			return nil
		}
		targetListing := listFolder(target)
		if existing, taken := targetListing.children[newName]; taken && existing != child {
			return ErrAlreadyExists
		}
		if targetListing.linked == newName {
			return ErrAlreadyExists
		}
		if target != src {
			if err := folder.Move([]*folder.Node{child}, target, target.ChildCount()); err != nil {
				return err
			}
		}
		child.Name = newName
		return nil
	}

	if l.linked != "" && l.linked == oldName {
		if newName != oldName {
			return fmt.Errorf("linked resource keeps its name %q: %w", oldName, ErrInvalidPath)
		}
		if target == src {
			return nil
		}
		if target.Path != "" {
			return ErrAlreadyExists
		}
		if listFolder(target).nameTaken(newName) {
			return ErrAlreadyExists
		}
		target.Path, src.Path = src.Path, ""
		return nil
	}

	return ErrPathNotFound
}
