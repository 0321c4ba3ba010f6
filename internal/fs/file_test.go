package fs

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"vfolder/internal/folder"

	"bazil.org/fuse"
)

func TestLinkedFileOperations(t *testing.T) {
	vfs, _, stateManager, sourceDir := setupTestFS(t)
	ctx := context.Background()

	testContent := []byte("test file content")
	if err := os.MkdirAll(filepath.Join(sourceDir, "photos"), 0755); err != nil {
		t.Fatalf("Failed to create source dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sourceDir, "photos", "cat.txt"), testContent, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	root := rootDir(t, vfs)
	node, err := root.Mkdir(ctx, &fuse.MkdirRequest{Name: "Pets"})
	if err != nil {
		t.Fatalf("Failed to create root: %v", err)
	}
	pets := node.(*Dir)

	t.Run("LinkThroughXattr", func(t *testing.T) {
		req := &fuse.SetxattrRequest{Name: XattrPath, Xattr: []byte("photos/cat.txt")}
		if err := pets.Setxattr(ctx, req); err != nil {
			t.Fatalf("Failed to set path xattr: %v", err)
		}

		resp := &fuse.GetxattrResponse{}
		if err := pets.Getxattr(ctx, &fuse.GetxattrRequest{Name: XattrPath}, resp); err != nil {
			t.Fatalf("Failed to get path xattr: %v", err)
		}
		if string(resp.Xattr) != "photos/cat.txt" {
			t.Errorf("Expected path photos/cat.txt, got %q", resp.Xattr)
		}

		forest, _ := stateManager.LoadForest()
		r, _ := forest.Root("Pets")
		if r.Path != "photos/cat.txt" {
			t.Errorf("Link not persisted, got %q", r.Path)
		}
	})

	t.Run("ListingShowsLinkedFile", func(t *testing.T) {
		entries, err := pets.ReadDirAll(ctx)
		if err != nil {
			t.Fatalf("ReadDirAll failed: %v", err)
		}
		found := false
		for _, e := range entries {
			if e.Name == "cat.txt" && e.Type == fuse.DT_File {
				found = true
			}
		}
		if !found {
			t.Errorf("Linked file missing from listing: %v", entryNames(entries))
		}
	})

	t.Run("FileAttributes", func(t *testing.T) {
		fileNode, err := pets.Lookup(ctx, "cat.txt")
		if err != nil {
			t.Fatalf("Failed to lookup file: %v", err)
		}

		attr := &fuse.Attr{}
		if err := fileNode.Attr(ctx, attr); err != nil {
			t.Fatalf("Failed to get file attributes: %v", err)
		}
		if attr.Mode&os.ModeDir != 0 {
			t.Error("File should not be a directory")
		}
		if attr.Size != uint64(len(testContent)) {
			t.Errorf("Expected size %d, got %d", len(testContent), attr.Size)
		}
	})

	t.Run("FileReading", func(t *testing.T) {
		fileNode, _ := pets.Lookup(ctx, "cat.txt")
		file := fileNode.(*File)

		handle, err := file.Open(ctx, &fuse.OpenRequest{Flags: fuse.OpenReadOnly}, &fuse.OpenResponse{})
		if err != nil {
			t.Fatalf("Failed to open file: %v", err)
		}
		fh := handle.(*FileHandle)
		defer fh.Release(ctx, &fuse.ReleaseRequest{})

		resp := &fuse.ReadResponse{}
		if err := fh.Read(ctx, &fuse.ReadRequest{Size: 64}, resp); err != nil {
			t.Fatalf("Failed to read file: %v", err)
		}
		if string(resp.Data) != string(testContent) {
			t.Errorf("Expected content %q, got %q", testContent, resp.Data)
		}

		resp = &fuse.ReadResponse{}
		if err := fh.Read(ctx, &fuse.ReadRequest{Offset: 5, Size: 4}, resp); err != nil {
			t.Fatalf("Failed to read at offset: %v", err)
		}
		if string(resp.Data) != "file" {
			t.Errorf("Expected %q at offset 5, got %q", "file", resp.Data)
		}
	})

	t.Run("WriteAccessDenied", func(t *testing.T) {
		fileNode, _ := pets.Lookup(ctx, "cat.txt")
		_, err := fileNode.(*File).Open(ctx, &fuse.OpenRequest{Flags: fuse.OpenWriteOnly}, &fuse.OpenResponse{})
		if err != syscall.EROFS {
			t.Errorf("Expected EROFS, got %v", err)
		}
	})

	t.Run("MoveLinkToAnotherFolder", func(t *testing.T) {
		node, err := pets.Mkdir(ctx, &fuse.MkdirRequest{Name: "Cats"})
		if err != nil {
			t.Fatalf("Mkdir failed: %v", err)
		}
		cats := node.(*Dir)

		if err := pets.Rename(ctx, &fuse.RenameRequest{OldName: "cat.txt", NewName: "kitty.txt"}, cats); err != syscall.EINVAL {
			t.Errorf("Expected EINVAL when renaming a link, got %v", err)
		}
		if err := pets.Rename(ctx, &fuse.RenameRequest{OldName: "cat.txt", NewName: "cat.txt"}, cats); err != nil {
			t.Fatalf("Failed to move link: %v", err)
		}
		if _, err := pets.Lookup(ctx, "cat.txt"); err != syscall.ENOENT {
			t.Errorf("Link should leave the source folder, got %v", err)
		}
		if _, err := cats.Lookup(ctx, "cat.txt"); err != nil {
			t.Errorf("Link should appear in the target folder: %v", err)
		}
	})

	t.Run("UnlinkKeepsRealFile", func(t *testing.T) {
		cats, _ := pets.Lookup(ctx, "Cats")
		if err := cats.(*Dir).Remove(ctx, &fuse.RemoveRequest{Name: "cat.txt"}); err != nil {
			t.Fatalf("Failed to unlink: %v", err)
		}
		if _, err := os.Stat(filepath.Join(sourceDir, "photos", "cat.txt")); err != nil {
			t.Errorf("Real file must survive unlink: %v", err)
		}
		err := cats.(*Dir).Getxattr(ctx, &fuse.GetxattrRequest{Name: XattrPath}, &fuse.GetxattrResponse{})
		if err != fuse.ErrNoXattr {
			t.Errorf("Expected ErrNoXattr after unlink, got %v", err)
		}
	})
}

func TestLinkedDirectory(t *testing.T) {
	vfs, sess, _, sourceDir := setupTestFS(t)
	ctx := context.Background()
	writeSourceFiles(t, sourceDir, "albums/2023/a.jpg", "albums/b.jpg")

	err := sess.Update(func(f *folder.Forest) error {
		r, err := f.AddRoot("Photos")
		if err != nil {
			return err
		}
		r.Path = "albums"
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	photos, err := rootDir(t, vfs).Lookup(ctx, "Photos")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	albums, err := photos.(*Dir).Lookup(ctx, "albums")
	if err != nil {
		t.Fatalf("Failed to lookup linked directory: %v", err)
	}
	src, ok := albums.(*SourceDir)
	if !ok {
		t.Fatalf("Expected *SourceDir, got %T", albums)
	}

	entries, err := src.ReadDirAll(ctx)
	if err != nil {
		t.Fatalf("ReadDirAll failed: %v", err)
	}
	types := make(map[string]fuse.DirentType)
	for _, e := range entries {
		types[e.Name] = e.Type
	}
	if types["2023"] != fuse.DT_Dir || types["b.jpg"] != fuse.DT_File {
		t.Errorf("Unexpected source listing: %v", types)
	}

	year, err := src.Lookup(ctx, "2023")
	if err != nil {
		t.Fatalf("Lookup in source dir failed: %v", err)
	}
	if _, err := year.(*SourceDir).Lookup(ctx, "a.jpg"); err != nil {
		t.Errorf("Nested source file not found: %v", err)
	}
	if _, err := src.Lookup(ctx, "missing.jpg"); err != syscall.ENOENT {
		t.Errorf("Expected ENOENT, got %v", err)
	}
}

func TestXattrs(t *testing.T) {
	vfs, sess, _, sourceDir := setupTestFS(t)
	ctx := context.Background()
	writeSourceFiles(t, sourceDir, "notes.txt")

	var id folder.ID
	sess.Update(func(f *folder.Forest) error {
		r, err := f.AddRoot("Docs")
		id = r.ID
		return err
	})
	node, _ := rootDir(t, vfs).Lookup(ctx, "Docs")
	docs := node.(*Dir)

	t.Run("ID", func(t *testing.T) {
		resp := &fuse.GetxattrResponse{}
		if err := docs.Getxattr(ctx, &fuse.GetxattrRequest{Name: XattrID}, resp); err != nil {
			t.Fatalf("Getxattr failed: %v", err)
		}
		if folder.ID(resp.Xattr) != id {
			t.Errorf("Expected id %s, got %s", id, resp.Xattr)
		}
		if err := docs.Setxattr(ctx, &fuse.SetxattrRequest{Name: XattrID, Xattr: []byte("x")}); err != syscall.EPERM {
			t.Errorf("Expected EPERM writing id, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		resp := &fuse.ListxattrResponse{}
		if err := docs.Listxattr(ctx, &fuse.ListxattrRequest{}, resp); err != nil {
			t.Fatalf("Listxattr failed: %v", err)
		}
		if string(resp.Xattr) != XattrID+"\x00" {
			t.Errorf("Unexpected xattr list %q", resp.Xattr)
		}
	})

	tests := []struct {
		name    string
		value   string
		wantErr error
	}{
		{name: "outside root", value: "../etc/passwd", wantErr: syscall.EINVAL},
		{name: "missing file", value: "nope.txt", wantErr: syscall.ENOENT},
		{name: "empty", value: "", wantErr: syscall.EINVAL},
		{name: "valid", value: "./notes.txt"},
	}
	for _, tt := range tests {
		t.Run("SetPath/"+tt.name, func(t *testing.T) {
			err := docs.Setxattr(ctx, &fuse.SetxattrRequest{Name: XattrPath, Xattr: []byte(tt.value)})
			if err != tt.wantErr {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	t.Run("PathIsCleaned", func(t *testing.T) {
		resp := &fuse.GetxattrResponse{}
		if err := docs.Getxattr(ctx, &fuse.GetxattrRequest{Name: XattrPath}, resp); err != nil {
			t.Fatalf("Getxattr failed: %v", err)
		}
		if string(resp.Xattr) != "notes.txt" {
			t.Errorf("Expected cleaned path notes.txt, got %q", resp.Xattr)
		}
	})

	t.Run("RemovePath", func(t *testing.T) {
		if err := docs.Removexattr(ctx, &fuse.RemovexattrRequest{Name: XattrPath}); err != nil {
			t.Fatalf("Removexattr failed: %v", err)
		}
		if err := docs.Removexattr(ctx, &fuse.RemovexattrRequest{Name: XattrPath}); err != fuse.ErrNoXattr {
			t.Errorf("Expected ErrNoXattr on second remove, got %v", err)
		}
	})
}
