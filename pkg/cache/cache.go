// Package cache stores small blobs keyed by content hash.
//
// The renderer uses it to remember which diagram contents were already turned
// into images, so an unchanged diagram is not rendered again on the next run.
// [FileCache] persists entries under the user cache directory; [NullCache]
// disables caching.
package cache

import (
	"context"
	"time"
)

// Cache is a key/value store with optional expiry.
type Cache interface {
	// Get returns the value for key and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// RenderKey identifies an image produced by a renderer in a format. The
// entry stored under it holds the Hash of the diagram last rendered there.
func RenderKey(renderer, format, imagePath string) string {
	return hashKey("render", renderer, format, imagePath)
}
