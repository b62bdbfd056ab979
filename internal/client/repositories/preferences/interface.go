// Package preferences is the kiosk's local key/value store.
package preferences

import (
	"context"
)

// Repository reads and writes string preferences by key. Get returns
// found=false for a missing key rather than an error.
type Repository interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, keys ...string) error
	List(ctx context.Context) (map[string]string, error)
}
