package order

import (
	"net/http"
	"time"

	"github.com/noah-isme/backend-pressing/internal/common"
	"github.com/noah-isme/backend-pressing/internal/geo"
	"github.com/noah-isme/backend-pressing/internal/reconcile"
)

// Handler exposes quote and draft endpoints.
type Handler struct {
	svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type quoteRequest struct {
	BusinessID string                `json:"businessId" validate:"required"`
	Selections []reconcile.Selection `json:"selections" validate:"dive"`
	Imported   []reconcile.Imported  `json:"imported" validate:"dive"`
}

type addressRequest struct {
	Text     string   `json:"text" validate:"max=500"`
	Lat      *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng      *float64 `json:"lng" validate:"omitempty,longitude"`
	Accuracy *float64 `json:"accuracy" validate:"omitempty,gte=0"`
	Label    string   `json:"label" validate:"max=120"`
}

type draftRequest struct {
	BusinessID     string                `json:"businessId" validate:"required"`
	Selections     []reconcile.Selection `json:"selections" validate:"dive"`
	Imported       []reconcile.Imported  `json:"imported" validate:"dive"`
	Address        addressRequest        `json:"address"`
	CollectionTime time.Time             `json:"collectionTime" validate:"required"`
	DeliveryTime   time.Time             `json:"deliveryTime" validate:"required,gtfield=CollectionTime"`
}

func (a addressRequest) toInput() (AddressInput, error) {
	in := AddressInput{Text: a.Text, Label: a.Label}
	if (a.Lat == nil) != (a.Lng == nil) {
		appErr := common.NewValidationError("VALIDATION_FAILED", "lat and lng must be sent together", nil)
		appErr.Details = []common.FieldError{{Field: "address.lng", Rule: "required_with", Param: "lat"}}
		return AddressInput{}, appErr
	}
	if a.Lat != nil {
		in.Position = &geo.Position{Lat: *a.Lat, Lng: *a.Lng, Accuracy: a.Accuracy}
	}
	return in, nil
}

// Quote handles POST /api/v1/pricing/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, err)
		return
	}
	quote, err := h.svc.Quote(r.Context(), QuoteInput{
		BusinessID: req.BusinessID,
		Selections: req.Selections,
		Imported:   req.Imported,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
}

// CreateDraft handles POST /api/v1/orders/drafts.
func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, err)
		return
	}
	addr, err := req.Address.toInput()
	if err != nil {
		common.WriteError(w, err)
		return
	}
	customerID, _ := common.CustomerID(r.Context())
	sub, err := h.svc.Submit(r.Context(), SubmitInput{
		QuoteInput: QuoteInput{
			BusinessID: req.BusinessID,
			Selections: req.Selections,
			Imported:   req.Imported,
		},
		Address:    addr,
		Timing:     Timing{CollectionTime: req.CollectionTime, DeliveryTime: req.DeliveryTime},
		CustomerID: customerID,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data":       sub,
		"unresolved": unresolvedIDs(sub.Draft),
	})
}

func unresolvedIDs(d Draft) []string {
	out := []string{}
	for _, item := range d.Unresolved() {
		out = append(out, item.ServiceID)
	}
	return out
}
