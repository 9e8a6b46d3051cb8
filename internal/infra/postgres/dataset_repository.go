package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bioarchive/api/pkg/domain/dataset"
	"github.com/bioarchive/api/pkg/domain/shared"
)

const datasetColumns = `id, state, file_size, deleted, purged, created_at, updated_at`

const historyColumns = `id, user_id, name, deleted, purged, created_at, updated_at`

// hdaColumns joins the underlying dataset so the state comes back
// denormalized in one read.
const hdaColumns = `h.id, h.history_id, h.dataset_id, h.name, h.info, h.blurb, h.extension, h.hid,
	h.visible, h.deleted, d.state, h.created_at, h.updated_at`

// DatasetRepository implements dataset.Repository using PostgreSQL.
type DatasetRepository struct {
	db *DB
}

// NewDatasetRepository creates a new DatasetRepository.
func NewDatasetRepository(db *DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// Create persists a new dataset.
func (r *DatasetRepository) Create(ctx context.Context, d *dataset.Dataset) error {
	query := `
		INSERT INTO datasets (id, state, file_size, deleted, purged, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		d.ID().String(),
		d.State().String(),
		nullInt64(d.FileSize()),
		d.IsDeleted(),
		d.IsPurged(),
		d.CreatedAt(),
		d.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}
	return nil
}

// GetByID retrieves a dataset by ID.
func (r *DatasetRepository) GetByID(ctx context.Context, id shared.ID) (*dataset.Dataset, error) {
	query := fmt.Sprintf(`SELECT %s FROM datasets WHERE id = $1`, datasetColumns)

	d, err := r.scanDataset(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dataset.ErrDatasetNotFound
		}
		return nil, err
	}
	return d, nil
}

// Update persists changes to an existing dataset.
func (r *DatasetRepository) Update(ctx context.Context, d *dataset.Dataset) error {
	query := `
		UPDATE datasets
		SET state = $2, file_size = $3, deleted = $4, purged = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		d.ID().String(),
		d.State().String(),
		nullInt64(d.FileSize()),
		d.IsDeleted(),
		d.IsPurged(),
		d.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update dataset: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return dataset.ErrDatasetNotFound
	}
	return nil
}

// UpdateState transitions just the state column.
func (r *DatasetRepository) UpdateState(ctx context.Context, id shared.ID, state dataset.State) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE datasets SET state = $2, updated_at = NOW() WHERE id = $1`,
		id.String(), state.String())
	if err != nil {
		return fmt.Errorf("failed to update dataset state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return dataset.ErrDatasetNotFound
	}
	return nil
}

func (r *DatasetRepository) scanDataset(s scanner) (*dataset.Dataset, error) {
	var (
		idStr, state         string
		fileSize             sql.NullInt64
		deleted, purged      bool
		createdAt, updatedAt time.Time
	)

	err := s.Scan(&idStr, &state, &fileSize, &deleted, &purged, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid dataset id: %w", err)
	}

	return dataset.Reconstitute(id, dataset.State(state), nullInt64Value(fileSize),
		deleted, purged, createdAt, updatedAt), nil
}

// HistoryRepository implements dataset.HistoryRepository using PostgreSQL.
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create persists a new history.
func (r *HistoryRepository) Create(ctx context.Context, h *dataset.History) error {
	query := `
		INSERT INTO histories (id, user_id, name, deleted, purged, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		h.ID().String(),
		h.UserID().String(),
		h.Name(),
		h.IsDeleted(),
		false,
		h.CreatedAt(),
		h.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create history: %w", err)
	}
	return nil
}

// GetByID retrieves a history by ID.
func (r *HistoryRepository) GetByID(ctx context.Context, id shared.ID) (*dataset.History, error) {
	query := fmt.Sprintf(`SELECT %s FROM histories WHERE id = $1`, historyColumns)

	h, err := r.scanHistory(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dataset.ErrHistoryNotFound
		}
		return nil, err
	}
	return h, nil
}

// Update persists changes to an existing history.
func (r *HistoryRepository) Update(ctx context.Context, h *dataset.History) error {
	query := `UPDATE histories SET name = $2, deleted = $3, updated_at = $4 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		h.ID().String(),
		h.Name(),
		h.IsDeleted(),
		h.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update history: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return dataset.ErrHistoryNotFound
	}
	return nil
}

// ListByUser retrieves a user's histories, most recent first.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID shared.ID) ([]*dataset.History, error) {
	query := fmt.Sprintf(`SELECT %s FROM histories WHERE user_id = $1 AND deleted = FALSE ORDER BY updated_at DESC`, historyColumns)

	rows, err := r.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list histories: %w", err)
	}
	defer rows.Close()

	var histories []*dataset.History
	for rows.Next() {
		h, err := r.scanHistory(rows)
		if err != nil {
			return nil, err
		}
		histories = append(histories, h)
	}
	return histories, rows.Err()
}

// CreateHDA persists a new history dataset association.
func (r *HistoryRepository) CreateHDA(ctx context.Context, hda *dataset.HistoryDatasetAssociation) error {
	query := `
		INSERT INTO history_dataset_associations (id, history_id, dataset_id, hid, name, info, blurb, extension, state, visible, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		hda.ID().String(),
		hda.HistoryID().String(),
		hda.DatasetID().String(),
		hda.HID(),
		hda.Name(),
		hda.Info(),
		hda.Blurb(),
		hda.Extension(),
		hda.State().String(),
		hda.IsVisible(),
		hda.IsDeleted(),
		hda.CreatedAt(),
		hda.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create history dataset association: %w", err)
	}
	return nil
}

// GetHDA retrieves a history dataset association by ID.
func (r *HistoryRepository) GetHDA(ctx context.Context, id shared.ID) (*dataset.HistoryDatasetAssociation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM history_dataset_associations h
		JOIN datasets d ON d.id = h.dataset_id
		WHERE h.id = $1
	`, hdaColumns)

	hda, err := r.scanHDA(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dataset.ErrHDANotFound
		}
		return nil, err
	}
	return hda, nil
}

// ListHDAs retrieves the dataset associations of a history in hid order.
func (r *HistoryRepository) ListHDAs(ctx context.Context, historyID shared.ID) ([]*dataset.HistoryDatasetAssociation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM history_dataset_associations h
		JOIN datasets d ON d.id = h.dataset_id
		WHERE h.history_id = $1
		ORDER BY h.hid
	`, hdaColumns)

	rows, err := r.db.QueryContext(ctx, query, historyID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list history dataset associations: %w", err)
	}
	defer rows.Close()

	var hdas []*dataset.HistoryDatasetAssociation
	for rows.Next() {
		hda, err := r.scanHDA(rows)
		if err != nil {
			return nil, err
		}
		hdas = append(hdas, hda)
	}
	return hdas, rows.Err()
}

// NextHID reserves the next per-history ordinal. The counter lives on
// the history row so the increment is atomic under concurrent uploads.
func (r *HistoryRepository) NextHID(ctx context.Context, historyID shared.ID) (int, error) {
	var hid int
	err := r.db.QueryRowContext(ctx, `
		UPDATE histories
		SET hid_counter = hid_counter + 1
		WHERE id = $1
		RETURNING hid_counter - 1
	`, historyID.String()).Scan(&hid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, dataset.ErrHistoryNotFound
		}
		return 0, fmt.Errorf("failed to reserve hid: %w", err)
	}
	return hid, nil
}

func (r *HistoryRepository) scanHistory(s scanner) (*dataset.History, error) {
	var (
		idStr, userIDStr, name string
		deleted, purged        bool
		createdAt, updatedAt   time.Time
	)

	err := s.Scan(&idStr, &userIDStr, &name, &deleted, &purged, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid history id: %w", err)
	}
	userID, err := shared.IDFromString(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}

	return dataset.ReconstituteHistory(id, userID, name, deleted, purged, createdAt, updatedAt), nil
}

func (r *HistoryRepository) scanHDA(s scanner) (*dataset.HistoryDatasetAssociation, error) {
	var (
		idStr, historyIDStr, datasetIDStr string
		name, info, blurb, extension      string
		hid                               int
		visible, deleted                  bool
		state                             string
		createdAt, updatedAt              time.Time
	)

	err := s.Scan(&idStr, &historyIDStr, &datasetIDStr, &name, &info, &blurb, &extension,
		&hid, &visible, &deleted, &state, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid hda id: %w", err)
	}
	historyID, err := shared.IDFromString(historyIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid history id: %w", err)
	}
	datasetID, err := shared.IDFromString(datasetIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid dataset id: %w", err)
	}

	return dataset.ReconstituteHDA(id, historyID, datasetID, name, info, blurb, extension,
		hid, visible, deleted, dataset.State(state), createdAt, updatedAt), nil
}
