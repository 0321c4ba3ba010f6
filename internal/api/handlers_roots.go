package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"vfolder/internal/folder"

	"github.com/go-chi/chi/v5"
)

// rootSummary is one entry of the root listing
type rootSummary struct {
	ID       folder.ID `json:"id"`
	Name     string    `json:"name"`
	Path     string    `json:"path,omitempty"`
	Children int       `json:"children"`
}

// treeNode is the nested JSON form of a folder
type treeNode struct {
	ID       folder.ID   `json:"id"`
	Name     string      `json:"name"`
	Depth    int         `json:"depth"`
	Path     string      `json:"path,omitempty"`
	Children []*treeNode `json:"children,omitempty"`
}

// newTree copies the subtree under n without recursion.
func newTree(n *folder.Node) *treeNode {
	top := &treeNode{ID: n.ID, Name: n.Name, Depth: n.Depth, Path: n.Path}
	type pending struct {
		src *folder.Node
		dst *treeNode
	}
	stack := []pending{{n, top}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range cur.src.Children {
			child := &treeNode{ID: c.ID, Name: c.Name, Depth: c.Depth, Path: c.Path}
			cur.dst.Children = append(cur.dst.Children, child)
			stack = append(stack, pending{c, child})
		}
	}
	return top
}

// rootName reads the {name} URL parameter
func rootName(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			return unescaped
		}
	}
	return name
}

func (s *Server) handleListRoots(w http.ResponseWriter, r *http.Request) {
	var roots []rootSummary
	s.session.View(func(f *folder.Forest) error {
		roots = make([]rootSummary, 0, f.RootCount())
		for _, root := range f.Roots() {
			roots = append(roots, rootSummary{
				ID:       root.ID,
				Name:     root.Name,
				Path:     root.Path,
				Children: root.ChildCount(),
			})
		}
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{"roots": roots})
}

type nameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateRoot(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var created rootSummary
	err := s.session.Update(func(f *folder.Forest) error {
		root, err := f.AddRoot(req.Name)
		if err != nil {
			return err
		}
		created = rootSummary{ID: root.ID, Name: root.Name}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteRoot(w http.ResponseWriter, r *http.Request) {
	name := rootName(r)
	err := s.session.Update(func(f *folder.Forest) error {
		return f.RemoveRoot(name)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRenameRoot(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	name := rootName(r)
	err := s.session.Update(func(f *folder.Forest) error {
		return f.RenameRoot(name, req.Name)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": req.Name})
}

// withRoot runs fn on the named root under the read lock
func (s *Server) withRoot(r *http.Request, fn func(*folder.Node) error) error {
	name := rootName(r)
	return s.session.View(func(f *folder.Forest) error {
		root, ok := f.Root(name)
		if !ok {
			return folder.ErrNotFound
		}
		return fn(root)
	})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	var tree *treeNode
	err := s.withRoot(r, func(root *folder.Node) error {
		tree = newTree(root)
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// handleFlat returns the persisted form of a root: its pre-order sequence.
func (s *Server) handleFlat(w http.ResponseWriter, r *http.Request) {
	var seq []folder.Node
	err := s.withRoot(r, func(root *folder.Node) error {
		nodes, err := folder.Flatten(root)
		if err != nil {
			return err
		}
		// Copy under the lock; Children is not serialized
		seq = make([]folder.Node, len(nodes))
		for i, n := range nodes {
			seq[i] = folder.Node{ID: n.ID, Name: n.Name, Depth: n.Depth, Path: n.Path}
		}
		return folder.ValidateDepths(nodes)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": seq})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		jsonError(w, "q query parameter is required", http.StatusBadRequest)
		return
	}

	var results []nodeView
	err := s.withRoot(r, func(root *folder.Node) error {
		matches, err := folder.Search(root, query)
		if err != nil {
			return err
		}
		results = make([]nodeView, 0, len(matches))
		for _, n := range matches {
			results = append(results, newNodeView(n))
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Save(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// handleReload drops unsaved edits and serves the saved forest again.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Reload(); err != nil {
		writeError(w, err)
		return
	}
	var roots int
	s.session.View(func(f *folder.Forest) error {
		roots = f.RootCount()
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "reloaded", "roots": roots})
}

// decodeBody decodes a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		apiLogger.Warn("Failed to encode response: %v", err)
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// errorStatus maps an error to its HTTP status code.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, folder.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, folder.ErrDuplicateRoot), errors.Is(err, folder.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, folder.ErrInvalidMove), errors.Is(err, folder.ErrFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, folder.ErrInvalidArgument), isResolveError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		apiLogger.Error("Request failed: %v", err)
	} else {
		apiLogger.Debug("Request rejected (%d): %v", code, err)
	}
	jsonError(w, err.Error(), code)
}
