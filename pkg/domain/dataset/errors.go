package dataset

import "errors"

// Dataset domain errors.
var (
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrHistoryNotFound = errors.New("history not found")
	ErrHDANotFound     = errors.New("history dataset association not found")
)
