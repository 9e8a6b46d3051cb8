package collection

import (
	"context"

	"github.com/bioarchive/api/pkg/domain/shared"
)

// Repository defines the interface for collection persistence.
type Repository interface {
	// CreateTree persists a collection and its elements recursively in
	// one transaction.
	CreateTree(ctx context.Context, t *Tree) error
	Get(ctx context.Context, id shared.ID) (*DatasetCollection, error)
	// GetTree loads the full nested structure. Implementations must
	// flatten with a single recursive query, not one query per level.
	GetTree(ctx context.Context, id shared.ID) (*Tree, error)
	Update(ctx context.Context, c *DatasetCollection) error

	// ListParentCollectionIDs returns the IDs of collections that
	// directly or transitively contain the given dataset, outermost
	// last; used to fan out re-aggregation after a dataset state change.
	ListParentCollectionIDs(ctx context.Context, datasetID shared.ID) ([]shared.ID, error)

	// RefreshPopulatedState recomputes and persists the collection's
	// populated state from current descendant states, locking the
	// collection row while it runs. Idempotent; safe to call redundantly
	// from concurrent completion callbacks.
	RefreshPopulatedState(ctx context.Context, id shared.ID) (PopulatedState, error)
}
