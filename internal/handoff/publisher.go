// Package handoff moves submitted drafts to the payment collaborator through
// an asynq task queue.
package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pressing/internal/events"
)

// TypeDraftSubmitted is the asynq task type carrying a submitted draft event.
const TypeDraftSubmitted = "order:draft_submitted"

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "handoff"

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher schedules draft events as asynq tasks. It implements
// events.DeliveryScheduler.
type Publisher struct {
	client   enqueuer
	queue    string
	maxRetry int
	timeout  time.Duration
	logger   zerolog.Logger
}

// PublisherConfig groups Publisher options.
type PublisherConfig struct {
	Queue    string
	MaxRetry int
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// NewPublisher wraps an asynq client.
func NewPublisher(client enqueuer, cfg PublisherConfig) *Publisher {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Publisher{client: client, queue: cfg.Queue, maxRetry: cfg.MaxRetry, timeout: cfg.Timeout, logger: cfg.Logger}
}

// Schedule enqueues events.TopicDraftSubmitted events. Other topics are
// ignored. Enqueueing the same draft twice is not an error.
func (p *Publisher) Schedule(ctx context.Context, event events.Event) error {
	if event.Topic != events.TopicDraftSubmitted {
		return nil
	}
	if p == nil || p.client == nil {
		return errors.New("handoff: queue client not configured")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("handoff: encode task: %w", err)
	}
	task := asynq.NewTask(TypeDraftSubmitted, body)
	info, err := p.client.EnqueueContext(ctx, task,
		asynq.TaskID(event.AggregateID),
		asynq.Queue(p.queue),
		asynq.MaxRetry(p.maxRetry),
		asynq.Timeout(p.timeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		p.logger.Debug().Str("draft_id", event.AggregateID).Msg("handoff_duplicate_task")
		return nil
	}
	if err != nil {
		return fmt.Errorf("handoff: enqueue: %w", err)
	}
	p.logger.Info().
		Str("draft_id", event.AggregateID).
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Msg("handoff_enqueued")
	return nil
}
