// Package queue adapts the accessibility scan job contract onto a
// Redis-backed asynq queue: enqueueing scan jobs, emitting progress, and
// routing permanently failed jobs to a dead-letter queue for manual replay.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/a11yworks/scanworker/internal/models"
)

// TaskTypeScanRun is the asynq task type for a scan job.
const TaskTypeScanRun = "scan:run"

const (
	maxRetry         = 3
	retryBackoffBase = 5 * time.Second
	retainCompleted  = 24 * time.Hour
	retainFailed     = 7 * 24 * time.Hour
)

// Adapter is the producer-facing half of the job queue: enqueue, progress,
// and DLQ operations. The consumer-facing half lives in Worker.
type Adapter struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
}

func dlqName(queue string) string { return queue + "-dlq" }

// New constructs an Adapter against the given Redis connection options and
// main queue name.
func New(redisOpt asynq.RedisClientOpt, queueName string) *Adapter {
	return &Adapter{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		queue:     queueName,
	}
}

// Close releases the underlying Redis connections.
func (a *Adapter) Close() error {
	if err := a.client.Close(); err != nil {
		return err
	}
	return a.inspector.Close()
}

// Enqueue submits a scan job with the documented retry policy: up to 3
// retries (4 attempts in all) with the RetryDelay backoff starting at 5s,
// and completed tasks retained 24h. No retention period is set for failed
// tasks; once retries are exhausted the worker's error handler copies the
// job into the DLQ.
func (a *Adapter) Enqueue(ctx context.Context, job models.JobMessage) (string, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("queue: marshal job message: %w", err)
	}

	task := asynq.NewTask(TaskTypeScanRun, payload)
	info, err := a.client.EnqueueContext(ctx, task,
		asynq.Queue(a.queue),
		asynq.MaxRetry(maxRetry),
		asynq.Retention(retainCompleted),
	)
	if err != nil {
		return "", fmt.Errorf("queue: enqueue scan job %s: %w", job.ScanID, err)
	}
	return info.ID, nil
}

// RetryDelay implements the documented exponential backoff: 5s, 10s, 20s.
func RetryDelay(n int) time.Duration {
	delay := retryBackoffBase
	for i := 0; i < n; i++ {
		delay *= 2
	}
	return delay
}

// EmitProgress publishes a progress event for jobId. Best-effort: a publish
// failure is logged, not returned, since losing one progress tick must
// never fail the scan itself.
func (a *Adapter) EmitProgress(ctx context.Context, jobID string, event models.ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Warn().Err(err).Str("jobId", jobID).Msg("failed to marshal progress event")
		return
	}
	if _, err := a.client.EnqueueContext(ctx, asynq.NewTask("scan:progress", payload),
		asynq.Queue(a.queue), asynq.MaxRetry(0), asynq.Retention(10*time.Minute)); err != nil {
		log.Debug().Err(err).Str("jobId", jobID).Msg("failed to emit progress event")
	}
}

// MoveToDLQ copies the original payload plus failure metadata into the dead
// letter queue. The DLQ retains entries indefinitely for manual replay.
func (a *Adapter) MoveToDLQ(ctx context.Context, original []byte, originalErr string, attempts int) error {
	dlqMsg := models.DLQMessage{
		Original:      json.RawMessage(original),
		OriginalError: originalErr,
		FailedAt:      time.Now().UTC().Format(time.RFC3339),
		Attempts:      attempts,
	}
	payload, err := json.Marshal(dlqMsg)
	if err != nil {
		return fmt.Errorf("queue: marshal DLQ message: %w", err)
	}

	_, err = a.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeScanRun, payload),
		asynq.Queue(dlqName(a.queue)))
	if err != nil {
		return fmt.Errorf("queue: enqueue to DLQ: %w", err)
	}
	return nil
}

// QueueStats is the queue depth breakdown reported by the health and
// metrics endpoints.
type QueueStats struct {
	Waiting   int64
	Active    int64
	Completed int64
	Failed    int64
}

// Stats reports the current queue depth. A failure here means Redis itself
// is unreachable, which is also how /health/ready detects queue outages.
func (a *Adapter) Stats(ctx context.Context) (QueueStats, error) {
	info, err := a.inspector.GetQueueInfo(a.queue)
	if err != nil {
		return QueueStats{}, fmt.Errorf("queue: get queue info: %w", err)
	}
	return QueueStats{
		Waiting:   int64(info.Pending + info.Scheduled + info.Retry),
		Active:    int64(info.Active),
		Completed: int64(info.Completed),
		Failed:    int64(info.Failed),
	}, nil
}

// RetryFromDLQ reads a DLQ entry, re-enqueues its original payload onto the
// main queue, and deletes the DLQ entry.
func (a *Adapter) RetryFromDLQ(ctx context.Context, dlqTaskID string) error {
	info, err := a.inspector.GetTaskInfo(dlqName(a.queue), dlqTaskID)
	if err != nil {
		return fmt.Errorf("queue: fetch DLQ task %s: %w", dlqTaskID, err)
	}

	var dlqMsg models.DLQMessage
	if err := json.Unmarshal(info.Payload, &dlqMsg); err != nil {
		return fmt.Errorf("queue: decode DLQ payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeScanRun, dlqMsg.Original)
	if _, err := a.client.EnqueueContext(ctx, task,
		asynq.Queue(a.queue), asynq.MaxRetry(maxRetry), asynq.Retention(retainCompleted)); err != nil {
		return fmt.Errorf("queue: re-enqueue DLQ task %s: %w", dlqTaskID, err)
	}

	if err := a.inspector.DeleteTask(dlqName(a.queue), dlqTaskID); err != nil {
		return fmt.Errorf("queue: delete DLQ task %s after replay: %w", dlqTaskID, err)
	}
	return nil
}
