package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/paperdoc/internal/pipeline"
	"github.com/dgallion1/paperdoc/internal/store"
	"github.com/go-chi/chi/v5"
)

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		jsonError(w, "user_id query parameter is required", http.StatusBadRequest)
		return "", false
	}
	return userID, true
}

// handleListDocuments lists all documents for a user.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	children, err := s.orchestrator.Store().ListChildren(r.Context(), store.DocumentsPrefix(userID), 0)
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Filter to only meta nodes.
	docs := []pipeline.DocumentMeta{}
	for _, child := range children {
		if store.LastSegment(child.Key) != store.PartMeta {
			continue
		}
		docID, ok := store.DocumentIDFromKey(userID, child.Key)
		if !ok || child.Key != store.PartKey(userID, docID, store.PartMeta) {
			continue
		}
		var meta pipeline.DocumentMeta
		if err := child.Decode(&meta); err != nil {
			s.log.Warn("skipping unreadable meta", "key", child.Key, "error", err)
			continue
		}
		docs = append(docs, meta)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"documents": docs})
}

// handleGetPart returns one stored part of a document verbatim.
func (s *Server) handleGetPart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	docID := chi.URLParam(r, "docID")
	part := chi.URLParam(r, "part")
	if !store.IsDocumentPart(part) {
		jsonError(w, "unknown part: "+part, http.StatusNotFound)
		return
	}

	node, err := s.orchestrator.Store().GetNode(r.Context(), store.PartKey(userID, docID, part))
	if err != nil {
		jsonError(w, "failed to read document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if node == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(node.Value)
}

// handleGetChunks returns the stored search-index chunks in order.
func (s *Server) handleGetChunks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	docID := chi.URLParam(r, "docID")

	nodes, err := s.orchestrator.Store().ListChildren(r.Context(), store.ChunksPrefix(userID, docID), 0)
	if err != nil {
		jsonError(w, "failed to list chunks: "+err.Error(), http.StatusInternalServerError)
		return
	}
	chunks := make([]json.RawMessage, 0, len(nodes))
	for _, n := range nodes {
		chunks = append(chunks, n.Value)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"doc_id": docID, "chunks": chunks})
}

// handleDeleteDocument deletes a document, its chunks and its hash index entry.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	docID := chi.URLParam(r, "docID")
	ctx := r.Context()
	st := s.orchestrator.Store()

	chunks, err := st.ListChildren(ctx, store.ChunksPrefix(userID, docID), 0)
	if err != nil {
		jsonError(w, "failed to list chunks: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Read the meta first; it carries the content hash.
	var meta pipeline.DocumentMeta
	metaNode, err := st.GetNode(ctx, store.PartKey(userID, docID, store.PartMeta))
	if err != nil {
		jsonError(w, "failed to read meta: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if metaNode != nil {
		if err := metaNode.Decode(&meta); err != nil {
			s.log.Warn("unreadable meta", "doc_id", docID, "error", err)
		}
	}
	if metaNode == nil && len(chunks) == 0 {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}

	if err := st.DeleteNode(ctx, store.DocumentKey(userID, docID), true); err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	hashDeleted := false
	if meta.ContentHash != "" {
		if err := st.DeleteNode(ctx, store.HashKey(userID, meta.ContentHash, docID), false); err != nil {
			s.log.Warn("hash index delete failed", "doc_id", docID, "error", err)
		} else {
			hashDeleted = true
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"doc_id":         docID,
		"chunks_deleted": len(chunks),
		"hash_deleted":   hashDeleted,
	})
}
