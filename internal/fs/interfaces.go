// internal/fs/interfaces.go

package fs

import (
	"bazil.org/fuse/fs"
)

// Directory represents a folder in the virtual filesystem
type Directory interface {
	fs.Node
	fs.NodeStringLookuper
	fs.HandleReadDirAller
	fs.NodeMkdirer
	fs.NodeRemover
	fs.NodeRenamer
}

// XattrNode exposes folder metadata as extended attributes
type XattrNode interface {
	fs.NodeGetxattrer
	fs.NodeListxattrer
	fs.NodeSetxattrer
	fs.NodeRemovexattrer
}

// ReadOnlyDirectory represents a mirrored source directory
type ReadOnlyDirectory interface {
	fs.Node
	fs.NodeStringLookuper
	fs.HandleReadDirAller
}

// FileInterface represents a mirrored source file
type FileInterface interface {
	fs.Node
	fs.NodeOpener
}

// FileHandleInterface represents an open file handle
type FileHandleInterface interface {
	fs.Handle
	fs.HandleReader
	fs.HandleReleaser
}

var (
	_ fs.FS               = (*VFolderFS)(nil)
	_ Directory           = (*ForestDir)(nil)
	_ Directory           = (*Dir)(nil)
	_ XattrNode           = (*Dir)(nil)
	_ ReadOnlyDirectory   = (*SourceDir)(nil)
	_ FileInterface       = (*File)(nil)
	_ FileHandleInterface = (*FileHandle)(nil)
)
