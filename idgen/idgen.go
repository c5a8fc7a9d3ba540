// Package idgen provides pluggable ID generation for the inkwell pipeline.
//
// Registry records (services, manuscripts) use prefixed UUIDv7 so rows sort
// by creation time; artifact run IDs use plain UUIDv4 to stay interchangeable
// with the run IDs stamped by earlier workers in the pipeline.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, so registry listings come back in creation order.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// UUIDv4 returns a Generator that produces random UUID v4 strings.
func UUIDv4() Generator {
	return func() string {
		return uuid.NewString()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
// Used for type-scoped identifiers ("svc_", "man_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is the pipeline default: UUIDv7.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// NewV4 produces a random v4 ID. Artifact run IDs use this.
func NewV4() string {
	return uuid.NewString()
}

// Parse validates a UUID string (with or without a known prefix stripped by
// the caller) and returns its canonical form.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID: %w", err)
	}
	return u.String(), nil
}
