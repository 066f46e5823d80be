package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-pressing/internal/common"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	loader *Loader
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Loader *Loader
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{loader: cfg.Loader}
}

// Services handles GET /api/v1/businesses/{businessID}/services.
func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	services, err := h.loader.Fetch(r.Context(), chi.URLParam(r, "businessID"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": services})
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.WriteAppError(w, appErr)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
