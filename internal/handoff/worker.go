package handoff

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pressing/internal/events"
	"github.com/noah-isme/backend-pressing/internal/order"
)

// Emitter records follow-up domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// HandedOff is the payload of events.TopicDraftHandedOff.
type HandedOff struct {
	DraftID     string `json:"draftId"`
	SourceEvent string `json:"sourceEvent"`
	BusinessID  string `json:"businessId"`
	Total       int64  `json:"total"`
	Services    int    `json:"services"`
}

// Rejected is the payload of events.TopicDraftRejected.
type Rejected struct {
	DraftID string `json:"draftId"`
	Reason  string `json:"reason"`
}

// Handler processes draft hand-off tasks.
type Handler struct {
	Events Emitter
	Logger zerolog.Logger
}

// NewServeMux routes hand-off task types to h.
func NewServeMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDraftSubmitted, h.ProcessDraftSubmitted)
	return mux
}

// ProcessDraftSubmitted validates the submitted draft and records that it was
// handed to the payment collaborator. Malformed tasks are not retried.
func (h *Handler) ProcessDraftSubmitted(ctx context.Context, task *asynq.Task) error {
	var ev events.Event
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		return fmt.Errorf("handoff: decode task: %v: %w", err, asynq.SkipRetry)
	}
	if ev.Topic != events.TopicDraftSubmitted || ev.AggregateID == "" {
		return fmt.Errorf("handoff: unexpected event %q: %w", ev.Topic, asynq.SkipRetry)
	}
	var submitted order.SubmittedEvent
	if err := json.Unmarshal(ev.Payload, &submitted); err != nil {
		return fmt.Errorf("handoff: decode draft: %v: %w", err, asynq.SkipRetry)
	}
	logger := h.Logger.With().Str("draft_id", ev.AggregateID).Str("event_id", ev.ID.String()).Logger()

	if reason := rejectReason(submitted); reason != "" {
		logger.Warn().Str("reason", reason).Msg("handoff_rejected")
		if h.Events != nil {
			if _, err := h.Events.Emit(ctx, events.TopicDraftRejected, ev.AggregateID, Rejected{DraftID: ev.AggregateID, Reason: reason}); err != nil {
				return fmt.Errorf("handoff: record rejection: %w", err)
			}
		}
		return nil
	}

	if h.Events != nil {
		_, err := h.Events.Emit(ctx, events.TopicDraftHandedOff, ev.AggregateID, HandedOff{
			DraftID:     ev.AggregateID,
			SourceEvent: ev.ID.String(),
			BusinessID:  submitted.BusinessID,
			Total:       submitted.Payload.Pricing.Total,
			Services:    len(submitted.Payload.Services),
		})
		if err != nil {
			return fmt.Errorf("handoff: record hand-off: %w", err)
		}
	}
	logger.Info().
		Int64("total", submitted.Payload.Pricing.Total).
		Int("unresolved", submitted.Unresolved).
		Msg("handoff_completed")
	return nil
}

func rejectReason(s order.SubmittedEvent) string {
	switch {
	case len(s.Payload.Services) == 0:
		return "no services"
	case s.Payload.DeliveryAddress == "":
		return "no delivery address"
	case s.Payload.Pricing.Total < 0:
		return "negative total"
	default:
		return ""
	}
}
