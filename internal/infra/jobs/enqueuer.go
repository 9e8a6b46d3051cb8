package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/bioarchive/api/internal/config"
	"github.com/bioarchive/api/pkg/domain/shared"
	"github.com/bioarchive/api/pkg/logger"
)

// Enqueuer submits background tasks from the API server.
type Enqueuer struct {
	client *asynq.Client
	queue  string
	retry  int
	log    *logger.Logger
}

// NewEnqueuer creates an Enqueuer backed by a new asynq client.
func NewEnqueuer(redisCfg *config.RedisConfig, workerCfg *config.WorkerConfig, log *logger.Logger) *Enqueuer {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisCfg.Addr(),
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	return &Enqueuer{
		client: client,
		queue:  workerCfg.Queue,
		retry:  workerCfg.RetryCount,
		log:    log,
	}
}

// Close releases the underlying client.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// EnqueueCollectionRefresh schedules a populated-state re-aggregation
// for one collection.
func (e *Enqueuer) EnqueueCollectionRefresh(ctx context.Context, collectionID shared.ID) error {
	task, err := NewCollectionRefreshTask(collectionID.String())
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, task, asynq.Queue(e.queue), asynq.MaxRetry(e.retry))
	if err != nil {
		return fmt.Errorf("failed to enqueue collection refresh: %w", err)
	}
	e.log.Debug("enqueued collection refresh", "task_id", info.ID, "collection_id", collectionID.String())
	return nil
}

// EnqueueDatasetStateChanged schedules the fan-out that refreshes every
// collection containing the dataset.
func (e *Enqueuer) EnqueueDatasetStateChanged(ctx context.Context, datasetID shared.ID, state string) error {
	task, err := NewDatasetStateChangedTask(datasetID.String(), state)
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, task, asynq.Queue(e.queue), asynq.MaxRetry(e.retry))
	if err != nil {
		return fmt.Errorf("failed to enqueue dataset state change: %w", err)
	}
	e.log.Debug("enqueued dataset state change", "task_id", info.ID, "dataset_id", datasetID.String(), "state", state)
	return nil
}
