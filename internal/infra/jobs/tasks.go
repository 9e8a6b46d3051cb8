// Package jobs carries the asynchronous task definitions shared by the
// API server (which enqueues) and the worker (which processes).
package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type names. The dataset state-changed task fans out into one
// refresh per containing collection so each refresh retries on its own.
const (
	TypeCollectionRefresh   = "collection:refresh_state"
	TypeDatasetStateChanged = "dataset:state_changed"
)

// CollectionRefreshPayload asks the worker to re-aggregate one
// collection's populated state.
type CollectionRefreshPayload struct {
	CollectionID string `json:"collection_id"`
}

// DatasetStateChangedPayload announces that a dataset reached a new
// state and its containing collections need re-aggregation.
type DatasetStateChangedPayload struct {
	DatasetID string `json:"dataset_id"`
	State     string `json:"state"`
}

// NewCollectionRefreshTask builds a collection refresh task.
func NewCollectionRefreshTask(collectionID string) (*asynq.Task, error) {
	payload, err := json.Marshal(CollectionRefreshPayload{CollectionID: collectionID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode collection refresh payload: %w", err)
	}
	return asynq.NewTask(TypeCollectionRefresh, payload), nil
}

// NewDatasetStateChangedTask builds a dataset state-changed task.
func NewDatasetStateChangedTask(datasetID, state string) (*asynq.Task, error) {
	payload, err := json.Marshal(DatasetStateChangedPayload{DatasetID: datasetID, State: state})
	if err != nil {
		return nil, fmt.Errorf("failed to encode dataset state payload: %w", err)
	}
	return asynq.NewTask(TypeDatasetStateChanged, payload), nil
}
