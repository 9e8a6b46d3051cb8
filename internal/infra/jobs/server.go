package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/bioarchive/api/internal/config"
	"github.com/bioarchive/api/pkg/logger"
)

// NewServer builds the asynq worker server.
func NewServer(redisCfg *config.RedisConfig, workerCfg *config.WorkerConfig, log *logger.Logger) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisCfg.Addr(),
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		},
		asynq.Config{
			Concurrency: workerCfg.Concurrency,
			Queues:      map[string]int{workerCfg.Queue: 1},
			Logger:      asynqLogger{log: log},
			ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
				log.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)
}

// asynqLogger adapts the structured logger to asynq's logging interface.
type asynqLogger struct {
	log *logger.Logger
}

func (l asynqLogger) Debug(args ...any) { l.log.Debug(sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info(sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn(sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error(sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.log.Error(sprint(args...)) }

func sprint(args ...any) string { return fmt.Sprint(args...) }
