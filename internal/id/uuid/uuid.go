// Package uuid generates identifiers backed by github.com/google/uuid.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator implements alert.IDGenerator.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a random UUID string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return id.String(), nil
}
