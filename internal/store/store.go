// Package store persists converted papers as JSON values under slash-separated
// keys. Two backends exist: a remote pathstore KV service and a local SQLite
// file.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Store is a hierarchical key/value store.
type Store interface {
	// PutNode stores value (marshalled to JSON) at key, replacing any previous value.
	PutNode(ctx context.Context, key string, value any) error
	// GetNode returns the node at key, or nil when it does not exist.
	GetNode(ctx context.Context, key string) (*Node, error)
	// DeleteNode removes key and, when recursive, every key below it.
	DeleteNode(ctx context.Context, key string, recursive bool) error
	// ListChildren returns the nodes below prefix in key order. limit <= 0 means no limit.
	ListChildren(ctx context.Context, prefix string, limit int) ([]Node, error)
	Close() error
}

// Node is one stored value.
type Node struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Decode unmarshals the node value into v.
func (n *Node) Decode(v any) error {
	if err := json.Unmarshal(n.Value, v); err != nil {
		return fmt.Errorf("decode %s: %w", n.Key, err)
	}
	return nil
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("retryable error: %s", truncate(e.Message, 200))
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable reports whether err wraps a RetryableError.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Document parts stored under a document key.
const (
	PartMeta        = "meta"
	PartContent     = "content"
	PartFrontMatter = "front_matter"
	PartReferences  = "references"
)

// IsDocumentPart reports whether part names a stored document part.
func IsDocumentPart(part string) bool {
	switch part {
	case PartMeta, PartContent, PartFrontMatter, PartReferences:
		return true
	}
	return false
}

// UserPrefix is the root of everything stored for a user.
func UserPrefix(userID string) string {
	return "papers/users/" + userID
}

// DocumentsPrefix is the parent of every document of a user.
func DocumentsPrefix(userID string) string {
	return UserPrefix(userID) + "/documents"
}

// DocumentKey is the root key of one document.
func DocumentKey(userID, docID string) string {
	return DocumentsPrefix(userID) + "/" + docID
}

// PartKey is the key of one document part, e.g. ".../<doc>/content".
func PartKey(userID, docID, part string) string {
	return DocumentKey(userID, docID) + "/" + part
}

// ChunksPrefix is the parent of every chunk of a document.
func ChunksPrefix(userID, docID string) string {
	return DocumentKey(userID, docID) + "/chunks"
}

// ChunkKey zero-pads the chunk index so key order matches chunk order.
func ChunkKey(userID, docID string, index int) string {
	return fmt.Sprintf("%s/%05d", ChunksPrefix(userID, docID), index)
}

// HashPrefix is the parent of the documents sharing a content hash.
func HashPrefix(userID, hash string) string {
	return UserPrefix(userID) + "/by_hash/" + hash
}

// HashKey indexes docID under its content hash.
func HashKey(userID, hash, docID string) string {
	return HashPrefix(userID, hash) + "/" + docID
}

// LastSegment returns the final path segment of key.
func LastSegment(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

// DocumentIDFromKey extracts the document id from any key below DocumentsPrefix.
func DocumentIDFromKey(userID, key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, DocumentsPrefix(userID)+"/")
	if !ok || rest == "" {
		return "", false
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	return rest, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
