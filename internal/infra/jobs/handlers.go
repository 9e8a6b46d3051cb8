package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bioarchive/api/internal/metrics"
	"github.com/bioarchive/api/pkg/domain/collection"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/logger"
)

// Handlers processes background tasks in the worker.
type Handlers struct {
	collections collection.Repository
	log         *logger.Logger
	metrics     *metrics.Metrics
}

// NewHandlers creates the worker task handlers.
func NewHandlers(collections collection.Repository, log *logger.Logger, m *metrics.Metrics) *Handlers {
	return &Handlers{collections: collections, log: log, metrics: m}
}

// Register attaches the handlers to an asynq mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeCollectionRefresh, h.HandleCollectionRefresh)
	mux.HandleFunc(TypeDatasetStateChanged, h.HandleDatasetStateChanged)
}

// HandleCollectionRefresh re-aggregates one collection's populated
// state. The repository locks the row, so concurrent refreshes of the
// same collection serialize and converge.
func (h *Handlers) HandleCollectionRefresh(ctx context.Context, t *asynq.Task) error {
	start := time.Now()

	var p CollectionRefreshPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid collection refresh payload: %v: %w", err, asynq.SkipRetry)
	}
	id, err := shared.IDFromString(p.CollectionID)
	if err != nil {
		return fmt.Errorf("invalid collection id %q: %v: %w", p.CollectionID, err, asynq.SkipRetry)
	}

	state, err := h.collections.RefreshPopulatedState(ctx, id)
	if err != nil {
		h.metrics.JobsProcessed.WithLabelValues(TypeCollectionRefresh, "error").Inc()
		return fmt.Errorf("failed to refresh collection %s: %w", p.CollectionID, err)
	}

	h.metrics.JobsProcessed.WithLabelValues(TypeCollectionRefresh, "ok").Inc()
	h.metrics.JobDuration.WithLabelValues(TypeCollectionRefresh).Observe(time.Since(start).Seconds())
	h.metrics.CollectionRefreshes.WithLabelValues(state.String()).Inc()
	h.log.Info("refreshed collection populated state",
		"collection_id", p.CollectionID, "state", state.String())
	return nil
}

// HandleDatasetStateChanged refreshes every collection that contains the
// dataset, innermost first so parent aggregates see fresh child states.
func (h *Handlers) HandleDatasetStateChanged(ctx context.Context, t *asynq.Task) error {
	start := time.Now()

	var p DatasetStateChangedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid dataset state payload: %v: %w", err, asynq.SkipRetry)
	}
	id, err := shared.IDFromString(p.DatasetID)
	if err != nil {
		return fmt.Errorf("invalid dataset id %q: %v: %w", p.DatasetID, err, asynq.SkipRetry)
	}

	parents, err := h.collections.ListParentCollectionIDs(ctx, id)
	if err != nil {
		h.metrics.JobsProcessed.WithLabelValues(TypeDatasetStateChanged, "error").Inc()
		return fmt.Errorf("failed to list collections containing dataset %s: %w", p.DatasetID, err)
	}

	for _, collectionID := range parents {
		state, err := h.collections.RefreshPopulatedState(ctx, collectionID)
		if err != nil {
			h.metrics.JobsProcessed.WithLabelValues(TypeDatasetStateChanged, "error").Inc()
			return fmt.Errorf("failed to refresh collection %s: %w", collectionID.String(), err)
		}
		h.metrics.CollectionRefreshes.WithLabelValues(state.String()).Inc()
	}

	h.metrics.JobsProcessed.WithLabelValues(TypeDatasetStateChanged, "ok").Inc()
	h.metrics.JobDuration.WithLabelValues(TypeDatasetStateChanged).Observe(time.Since(start).Seconds())
	h.log.Info("propagated dataset state change",
		"dataset_id", p.DatasetID, "state", p.State, "collections", len(parents))
	return nil
}
