package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TopicCampaignSends carries one job per campaign recipient.
const TopicCampaignSends = "campaign_sends"

// DefaultMaxAttempts bounds how often the dispatcher retries a failing job.
const DefaultMaxAttempts = 3

// SendEmailJob is the payload of one queued delivery attempt.
type SendEmailJob struct {
	EmailStatusID int64 `json:"email_status_id"`
}

// Handler processes one delivered payload. A non-nil error hands the job
// back to the dispatcher for retry.
type Handler func(ctx context.Context, payload SendEmailJob) error

// ExhaustedFunc is called once a job has burned through its attempts.
type ExhaustedFunc func(ctx context.Context, payload SendEmailJob, cause error)

// Queue dispatches send jobs with at-least-once semantics.
type Queue interface {
	Publish(ctx context.Context, topic string, job SendEmailJob) error
}

// InMemoryQueue runs handlers in-process, one goroutine per published job,
// with bounded retry and backoff. It backs development mode and tests;
// production uses RabbitMQ.
type InMemoryQueue struct {
	mu          sync.Mutex
	handlers    map[string][]Handler
	MaxAttempts int
	Backoff     time.Duration
	OnExhausted ExhaustedFunc
	Log         *zap.Logger
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log *zap.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers:    make(map[string][]Handler),
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     500 * time.Millisecond,
		Log:         log,
	}
}

// Publish sends a job to all subscribers of the topic.
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, job SendEmailJob) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		go q.processJob(topic, handler, job)
	}
	return nil
}

// processJob retries the handler up to MaxAttempts, then reports exhaustion.
func (q *InMemoryQueue) processJob(topic string, handler Handler, job SendEmailJob) {
	ctx := context.Background()

	var lastErr error
	for attempt := 1; attempt <= q.MaxAttempts; attempt++ {
		lastErr = handler(ctx, job)
		if lastErr == nil {
			return
		}

		q.Log.Warn("send job attempt failed",
			zap.String("topic", topic),
			zap.Int64("email_status_id", job.EmailStatusID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", q.MaxAttempts),
			zap.Error(lastErr),
		)

		if attempt < q.MaxAttempts {
			time.Sleep(time.Duration(attempt) * q.Backoff)
		}
	}

	q.Log.Error("send job permanently failed",
		zap.String("topic", topic),
		zap.Int64("email_status_id", job.EmailStatusID),
		zap.Error(lastErr),
	)
	if q.OnExhausted != nil {
		q.OnExhausted(ctx, job, lastErr)
	}
}

// Subscribe adds a handler for a topic.
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[topic] = append(q.handlers[topic], handler)
}

var _ Queue = (*InMemoryQueue)(nil)
