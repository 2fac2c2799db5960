// Package storage writes export files.
package storage

import (
	"context"
	"io"
)

// Storage saves named files and reports where they ended up.
type Storage interface {
	// Save writes data under key, a slash-separated relative path such as
	// "exports/messages_2026-01-31.csv", replacing any existing file.
	Save(ctx context.Context, key string, data io.Reader) (location string, err error)
}
