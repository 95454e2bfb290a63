// Package artifacts writes classification results to blob storage.
package artifacts

import (
	"context"
	"path"
	"time"
)

// KeyTimeLayout formats the timestamp part of an artifact key (YYYYMMDD_HHMMSS).
const KeyTimeLayout = "20060102_150405"

// Store is a write-only sink keyed by path. Put overwrites existing keys.
type Store interface {
	Put(ctx context.Context, key string, body []byte) error
}

// Key builds "<prefix>/<YYYYMMDD_HHMMSS>.json" from the given instant.
func Key(prefix string, now time.Time) string {
	name := now.Format(KeyTimeLayout) + ".json"
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
