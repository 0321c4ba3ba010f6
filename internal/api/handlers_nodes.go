package api

import (
	"errors"
	"fmt"
	"net/http"

	"vfolder/internal/folder"
	"vfolder/internal/resolver"

	"github.com/go-chi/chi/v5"
)

// nodeView is a folder without its subtree
type nodeView struct {
	ID       folder.ID   `json:"id"`
	Name     string      `json:"name"`
	Depth    int         `json:"depth"`
	Path     string      `json:"path,omitempty"`
	Parent   folder.ID   `json:"parent,omitempty"`
	Children []folder.ID `json:"children"`
}

func newNodeView(n *folder.Node) nodeView {
	v := nodeView{
		ID:       n.ID,
		Name:     n.Name,
		Depth:    n.Depth,
		Path:     n.Path,
		Children: make([]folder.ID, 0, n.ChildCount()),
	}
	if p := n.Parent(); p != nil {
		v.Parent = p.ID
	}
	for _, c := range n.Children {
		v.Children = append(v.Children, c.ID)
	}
	return v
}

func isResolveError(err error) bool {
	return errors.Is(err, resolver.ErrEmptyPath) || errors.Is(err, resolver.ErrOutsideRoot)
}

// treeRoot returns the root of the tree holding n
func treeRoot(n *folder.Node) *folder.Node {
	for n.Parent() != nil {
		n = n.Parent()
	}
	return n
}

func nodeID(r *http.Request) folder.ID {
	return folder.ID(chi.URLParam(r, "id"))
}

func findNode(f *folder.Forest, id folder.ID) (*folder.Node, error) {
	n, ok := f.Find(id)
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, folder.ErrNotFound)
	}
	return n, nil
}

// viewNode runs fn on the node named by the {id} parameter under the read lock
func (s *Server) viewNode(r *http.Request, fn func(*folder.Node) error) error {
	id := nodeID(r)
	return s.session.View(func(f *folder.Forest) error {
		n, err := findNode(f, id)
		if err != nil {
			return err
		}
		return fn(n)
	})
}

// updateNode runs fn on the node named by the {id} parameter under the write lock
func (s *Server) updateNode(r *http.Request, fn func(*folder.Forest, *folder.Node) error) error {
	id := nodeID(r)
	return s.session.Update(func(f *folder.Forest) error {
		n, err := findNode(f, id)
		if err != nil {
			return err
		}
		return fn(f, n)
	})
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	var view nodeView
	err := s.viewNode(r, func(n *folder.Node) error {
		view = newNodeView(n)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type patchRequest struct {
	Name *string `json:"name,omitempty"`
	Path *string `json:"path,omitempty"` // Empty clears the link
}

// cleanResourcePath validates a resource path. Unlike the folder core, the
// API refuses links to files that do not exist.
func (s *Server) cleanResourcePath(p string) (string, error) {
	res := s.session.Resolver()
	if p == "" || res == nil {
		return p, nil
	}
	asset, err := res.Resolve(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", folder.ErrInvalidArgument, err)
	}
	return asset.Path, nil
}

func (s *Server) handlePatchNode(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var resourcePath string
	if req.Path != nil {
		cleaned, err := s.cleanResourcePath(*req.Path)
		if err != nil {
			writeError(w, err)
			return
		}
		resourcePath = cleaned
	}

	var view nodeView
	err := s.updateNode(r, func(f *folder.Forest, n *folder.Node) error {
		if req.Name != nil {
			if n.IsRoot() {
				if err := f.RenameRoot(n.Name, *req.Name); err != nil {
					return err
				}
			} else {
				n.Name = *req.Name
			}
		}
		if req.Path != nil {
			n.Path = resourcePath
		}
		view = newNodeView(n)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	err := s.updateNode(r, func(_ *folder.Forest, n *folder.Node) error {
		parent := n.Parent()
		if parent == nil {
			return fmt.Errorf("delete %s: roots are deleted by name: %w", n.ID, folder.ErrInvalidArgument)
		}
		parent.RemoveChild(n)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addNode(w http.ResponseWriter, r *http.Request, add func(*folder.Node) folder.ID) {
	var req nameRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}

	var view nodeView
	err := s.updateNode(r, func(_ *folder.Forest, n *folder.Node) error {
		created, ok := treeRoot(n).Find(add(n))
		if !ok {
			return folder.ErrNotFound
		}
		if req.Name != "" {
			created.Name = req.Name
		}
		view = newNodeView(created)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleAddChild(w http.ResponseWriter, r *http.Request) {
	s.addNode(w, r, (*folder.Node).AddChild)
}

func (s *Server) handleAddSibling(w http.ResponseWriter, r *http.Request) {
	s.addNode(w, r, (*folder.Node).AddSibling)
}

func (s *Server) handleAncestors(w http.ResponseWriter, r *http.Request) {
	var ids []folder.ID
	err := s.viewNode(r, func(n *folder.Node) error {
		var err error
		ids, err = treeRoot(n).Ancestors(n.ID)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []folder.ID{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ancestors": ids})
}

// handleDescendants lists the node and everything below it, the ids a tree
// view expands for "expand all".
func (s *Server) handleDescendants(w http.ResponseWriter, r *http.Request) {
	var ids []folder.ID
	err := s.viewNode(r, func(n *folder.Node) error {
		var err error
		ids, err = treeRoot(n).DescendantsWithChildren(n.ID)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"descendants": ids})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	res := s.session.Resolver()
	if res == nil {
		jsonError(w, "no source directory configured", http.StatusNotImplemented)
		return
	}

	var resourcePath string
	if err := s.viewNode(r, func(n *folder.Node) error {
		resourcePath = n.Path
		return nil
	}); err != nil {
		writeError(w, err)
		return
	}

	asset, err := res.Resolve(resourcePath)
	if err != nil {
		if errors.Is(err, resolver.ErrEmptyPath) {
			jsonError(w, "node has no linked resource", http.StatusNotFound)
			return
		}
		if !isResolveError(err) {
			jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

type moveRequest struct {
	IDs    []folder.ID `json:"ids"`
	Parent folder.ID   `json:"parent"`
	Index  *int        `json:"index,omitempty"` // Defaults to the end
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 || req.Parent == "" {
		jsonError(w, "ids and parent are required", http.StatusBadRequest)
		return
	}

	var view nodeView
	err := s.session.Update(func(f *folder.Forest) error {
		parent, err := findNode(f, req.Parent)
		if err != nil {
			return err
		}
		nodes := make([]*folder.Node, 0, len(req.IDs))
		for _, id := range req.IDs {
			n, err := findNode(f, id)
			if err != nil {
				return err
			}
			nodes = append(nodes, n)
		}

		index := parent.ChildCount()
		if req.Index != nil {
			index = *req.Index
		}
		if err := folder.Move(nodes, parent, index); err != nil {
			return err
		}
		view = newNodeView(parent)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
