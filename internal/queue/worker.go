package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// ScanHandlerFunc processes one decoded scan job. Returning an error marks
// the asynq task as failed, triggering asynq's built-in retry; once retries
// are exhausted the errorHandler below routes the task to the DLQ.
type ScanHandlerFunc func(ctx context.Context, payload []byte) error

// Worker consumes scan jobs from the main queue with bounded concurrency.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	adapter *Adapter
}

// NewWorker constructs a Worker against redisOpt, listening on queueName
// with the given concurrency. Jobs that exhaust their retry budget are
// copied into the dead letter queue by the adapter.
func NewWorker(redisOpt asynq.RedisClientOpt, queueName string, concurrency int, adapter *Adapter) *Worker {
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueName: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return RetryDelay(n)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetries, _ := asynq.GetMaxRetry(ctx)
			if retried < maxRetries {
				log.Warn().Err(err).Int("attempt", retried+1).Int("maxRetry", maxRetries).
					Msg("scan job failed, will retry")
				return
			}

			log.Error().Err(err).Int("attempts", retried+1).Msg("scan job permanently failed, routing to DLQ")
			if dlqErr := adapter.MoveToDLQ(ctx, task.Payload(), err.Error(), retried+1); dlqErr != nil {
				log.Error().Err(dlqErr).Msg("failed to move permanently failed job to DLQ")
			}
		}),
	})

	mux := asynq.NewServeMux()
	return &Worker{server: server, mux: mux, adapter: adapter}
}

// Handle registers handler for scan:run tasks.
func (w *Worker) Handle(handler ScanHandlerFunc) {
	w.mux.HandleFunc(TaskTypeScanRun, func(ctx context.Context, task *asynq.Task) error {
		return handler(ctx, task.Payload())
	})
}

// Run blocks, consuming tasks until the process receives a shutdown signal.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

// Shutdown stops the worker, waiting for in-flight jobs to finish.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}
