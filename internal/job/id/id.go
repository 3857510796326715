// Package id provides unique identifier generation for jobs.
package id

import "github.com/google/uuid"

// Prefix marks thumbnail job identifiers.
const Prefix = "thumb-"

// Generate creates a new unique job ID.
// Format: thumb-<uuid v7>, so IDs sort by creation time.
// Example: thumb-01928a4e-8f3c-7b2a-9d41-3c5e7f8a9b0c
func Generate() string {
	u, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does.
		u = uuid.New()
	}
	return Prefix + u.String()
}

// Valid reports whether s looks like an ID produced by Generate.
func Valid(s string) bool {
	if len(s) <= len(Prefix) || s[:len(Prefix)] != Prefix {
		return false
	}
	_, err := uuid.Parse(s[len(Prefix):])
	return err == nil
}
