package memory

import (
	"context"
	"strings"
)

// NewStore creates a Postgres-backed store when configured, otherwise
// in-memory.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewMemStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
