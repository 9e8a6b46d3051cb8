package app

import (
	"context"
	"fmt"

	"github.com/bioarchive/api/internal/metrics"
	"github.com/bioarchive/api/pkg/domain/dataset"
	"github.com/bioarchive/api/pkg/domain/security"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/domain/user"
	"github.com/bioarchive/api/pkg/logger"
)

// HistoryService manages histories, their dataset instances and dataset
// lifecycle transitions.
type HistoryService struct {
	histories dataset.HistoryRepository
	datasets  dataset.Repository
	agent     *security.Agent
	perms     *PermissionService
	enqueuer  TaskEnqueuer
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// NewHistoryService creates a HistoryService.
func NewHistoryService(
	histories dataset.HistoryRepository,
	datasets dataset.Repository,
	agent *security.Agent,
	perms *PermissionService,
	enqueuer TaskEnqueuer,
	m *metrics.Metrics,
	log *logger.Logger,
) *HistoryService {
	return &HistoryService{
		histories: histories,
		datasets:  datasets,
		agent:     agent,
		perms:     perms,
		enqueuer:  enqueuer,
		metrics:   m,
		log:       log,
	}
}

// CreateHistory creates a history for a user and seeds its default
// permission rows from the user's defaults.
func (s *HistoryService) CreateHistory(ctx context.Context, u *user.User, name string) (*dataset.History, error) {
	h, err := dataset.NewHistory(u.ID(), name)
	if err != nil {
		return nil, err
	}
	if err := s.histories.Create(ctx, h); err != nil {
		return nil, err
	}
	if err := s.agent.SeedHistoryDefaults(ctx, u.ID(), h.ID()); err != nil {
		return nil, fmt.Errorf("seed history defaults: %w", err)
	}
	return h, nil
}

// GetHistory retrieves a history, restricted to its owner.
func (s *HistoryService) GetHistory(ctx context.Context, u *user.User, id shared.ID) (*dataset.History, error) {
	h, err := s.histories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !h.UserID().Equals(u.ID()) {
		return nil, shared.ErrForbidden
	}
	return h, nil
}

// ListHistories retrieves the caller's histories.
func (s *HistoryService) ListHistories(ctx context.Context, u *user.User) ([]*dataset.History, error) {
	return s.histories.ListByUser(ctx, u.ID())
}

// RenameHistory renames one of the caller's histories.
func (s *HistoryService) RenameHistory(ctx context.Context, u *user.User, id shared.ID, name string) (*dataset.History, error) {
	h, err := s.GetHistory(ctx, u, id)
	if err != nil {
		return nil, err
	}
	if err := h.Rename(name); err != nil {
		return nil, err
	}
	if err := s.histories.Update(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// DeleteHistory soft-deletes one of the caller's histories.
func (s *HistoryService) DeleteHistory(ctx context.Context, u *user.User, id shared.ID) error {
	h, err := s.GetHistory(ctx, u, id)
	if err != nil {
		return err
	}
	h.Delete()
	return s.histories.Update(ctx, h)
}

// UploadDataset creates a dataset in the upload state, attaches it to
// the history under the next hid, and applies the history's default
// permission rows.
func (s *HistoryService) UploadDataset(ctx context.Context, u *user.User, historyID shared.ID, name, extension string) (*dataset.HistoryDatasetAssociation, error) {
	h, err := s.GetHistory(ctx, u, historyID)
	if err != nil {
		return nil, err
	}

	d := dataset.New()
	if err := d.SetState(dataset.StateUpload); err != nil {
		return nil, err
	}
	if err := s.datasets.Create(ctx, d); err != nil {
		return nil, err
	}

	hid, err := s.histories.NextHID(ctx, h.ID())
	if err != nil {
		return nil, err
	}
	hda, err := dataset.NewHDA(h.ID(), d, name, extension, hid)
	if err != nil {
		return nil, err
	}
	if err := s.histories.CreateHDA(ctx, hda); err != nil {
		return nil, err
	}

	if err := s.agent.ApplyHistoryDefaults(ctx, u.ID(), h.ID(), d.ID()); err != nil {
		return nil, fmt.Errorf("apply history defaults: %w", err)
	}

	s.log.Info("dataset uploaded", "dataset_id", d.ID().String(),
		"history_id", h.ID().String(), "hid", hid)
	return hda, nil
}

// GetHDA retrieves a history dataset instance, enforcing dataset access.
func (s *HistoryService) GetHDA(ctx context.Context, u *user.User, id shared.ID) (*dataset.HistoryDatasetAssociation, error) {
	hda, err := s.histories.GetHDA(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.perms.CanAccessDataset(ctx, u, hda.DatasetID())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.ErrForbidden
	}
	return hda, nil
}

// ListHDAs retrieves the accessible dataset instances of a history in
// hid order. Instances whose underlying dataset the caller cannot read
// are filtered out rather than erroring the listing.
func (s *HistoryService) ListHDAs(ctx context.Context, u *user.User, historyID shared.ID) ([]*dataset.HistoryDatasetAssociation, error) {
	if _, err := s.GetHistory(ctx, u, historyID); err != nil {
		return nil, err
	}

	all, err := s.histories.ListHDAs(ctx, historyID)
	if err != nil {
		return nil, err
	}

	out := make([]*dataset.HistoryDatasetAssociation, 0, len(all))
	for _, hda := range all {
		if hda.IsDeleted() {
			continue
		}
		ok, err := s.perms.CanAccessDataset(ctx, u, hda.DatasetID())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, hda)
		}
	}
	return out, nil
}

// UpdateDatasetState transitions a dataset's state and, once the state
// is terminal, fans out re-aggregation to every containing collection.
func (s *HistoryService) UpdateDatasetState(ctx context.Context, datasetID shared.ID, state dataset.State) error {
	if !state.IsValid() {
		return fmt.Errorf("%w: invalid dataset state %q", shared.ErrValidation, state)
	}
	if err := s.datasets.UpdateState(ctx, datasetID, state); err != nil {
		return err
	}
	s.metrics.DatasetStateChanges.WithLabelValues(state.String()).Inc()

	if state.IsTerminal() && s.enqueuer != nil {
		if err := s.enqueuer.EnqueueDatasetStateChanged(ctx, datasetID, state.String()); err != nil {
			// The dataset row is already updated; the refresh job is
			// retried from the next state change or a manual refresh.
			s.log.Error("failed to enqueue dataset state fan-out",
				"dataset_id", datasetID.String(), "state", state.String(), "error", err)
		}
	}
	return nil
}

// GetDataset retrieves a dataset, enforcing access.
func (s *HistoryService) GetDataset(ctx context.Context, u *user.User, id shared.ID) (*dataset.Dataset, error) {
	ok, err := s.perms.CanAccessDataset(ctx, u, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.ErrForbidden
	}
	return s.datasets.GetByID(ctx, id)
}
