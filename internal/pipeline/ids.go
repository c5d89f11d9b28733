package pipeline

import "github.com/google/uuid"

// NewID returns a fresh job or document identifier.
func NewID() string {
	return uuid.NewString()
}
