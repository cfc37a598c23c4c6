// Package metadata loads the static list of tracked tokens.
package metadata

import (
	"context"

	"github.com/aman-zulfiqar/token-aggregator/internal/models"
)

// Source provides token metadata. It is read once before the first refresh.
type Source interface {
	LoadMetadata(ctx context.Context) (map[string]models.TokenMetadata, error)
	ListAllAddresses(ctx context.Context) ([]string, error)
}
