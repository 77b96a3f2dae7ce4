package identity

import (
	"context"
	"net/http"

	"github.com/frahmantamala/attendance-management/internal/transport"
)

type ServiceAPI interface {
	CheckBarcode(ctx context.Context, code string) (*BarcodeLookup, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) CheckBarcode(w http.ResponseWriter, r *http.Request) {
	lookup, err := h.Service.CheckBarcode(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.RequestLogger(r).Debug("CheckBarcode: lookup failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteSuccess(w, http.StatusOK, "Barcode found", lookup)
}
