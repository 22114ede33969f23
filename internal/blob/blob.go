// Package blob abstracts the object storage used for song and artist
// media. Keys are deterministic paths derived from entity ids.
package blob

import (
	"context"
	"io"
)

// Store is the contract the catalog depends on: put bytes under a key
// and get back a public location, or delete a key.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// ImageKey returns the canonical image path for an entity id.
func ImageKey(id string) string {
	return "image/" + id + ".jpg"
}

// AudioKey returns the canonical audio path for an entity id.
func AudioKey(id string) string {
	return "audio/" + id + ".mp3"
}
