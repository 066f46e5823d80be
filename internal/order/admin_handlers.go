package order

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/noah-isme/backend-pressing/internal/common"
	"github.com/noah-isme/backend-pressing/internal/events"
)

// EventLister reads the event trail of an aggregate.
type EventLister interface {
	ListByAggregate(ctx context.Context, aggregateID string, limit, offset int) ([]events.Event, error)
	CountByAggregate(ctx context.Context, aggregateID string) (int, error)
}

// AdminHandler provides support endpoints over submitted drafts.
type AdminHandler struct {
	Events EventLister
}

// DraftEvents handles GET /api/v1/admin/drafts/{draftID}/events.
func (h *AdminHandler) DraftEvents(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Events == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "event store not configured", nil)
		return
	}
	draftID := chi.URLParam(r, "draftID")
	if _, err := ulid.ParseStrict(draftID); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid draft id", nil)
		return
	}
	page := common.ParsePagination(r, 20, 100)
	ctx := r.Context()
	total, err := h.Events.CountByAggregate(ctx, draftID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to count events", nil)
		return
	}
	if total == 0 {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "draft not found", nil)
		return
	}
	list, err := h.Events.ListByAggregate(ctx, draftID, page.PerPage, page.Offset())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list events", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       list,
		"pagination": common.Pagination{Page: page.Page, PerPage: page.PerPage, TotalItems: total},
	})
}
