package service

import (
	"context"

	"argus/core"
)

// EntitySource fetches the raw records of one entity type. It is the
// boundary to whatever transport delivers entity collections.
type EntitySource interface {
	Fetch(ctx context.Context, entityType core.EntityType) ([]core.Record, error)
}
