package dataset

import (
	"context"

	"github.com/bioarchive/api/pkg/domain/shared"
)

// Repository defines the interface for dataset persistence.
type Repository interface {
	Create(ctx context.Context, d *Dataset) error
	GetByID(ctx context.Context, id shared.ID) (*Dataset, error)
	Update(ctx context.Context, d *Dataset) error
	// UpdateState transitions just the state column; used by the
	// job-completion path so it does not race with metadata updates.
	UpdateState(ctx context.Context, id shared.ID, state State) error
}

// HistoryRepository defines the interface for history and HDA persistence.
type HistoryRepository interface {
	Create(ctx context.Context, h *History) error
	GetByID(ctx context.Context, id shared.ID) (*History, error)
	Update(ctx context.Context, h *History) error
	ListByUser(ctx context.Context, userID shared.ID) ([]*History, error)

	CreateHDA(ctx context.Context, hda *HistoryDatasetAssociation) error
	GetHDA(ctx context.Context, id shared.ID) (*HistoryDatasetAssociation, error)
	ListHDAs(ctx context.Context, historyID shared.ID) ([]*HistoryDatasetAssociation, error)
	// NextHID reserves the next per-history ordinal.
	NextHID(ctx context.Context, historyID shared.ID) (int, error)
}
