package attendance

import (
	"context"
	"net/http"

	"github.com/frahmantamala/attendance-management/internal"
	"github.com/frahmantamala/attendance-management/internal/transport"
)

type ServiceAPI interface {
	CheckIn(ctx context.Context, userID int64, c Capture) (*TransitionResult, error)
	CheckOut(ctx context.Context, userID int64, c Capture) (*TransitionResult, error)
	BarcodeToggle(ctx context.Context, code string, c Capture) (*TransitionResult, error)
	Today(ctx context.Context, userID int64) (*TodayView, error)
	History(ctx context.Context, userID int64, from, to string, limit, offset int) (*HistoryPage, error)
	Stats(ctx context.Context, userID int64, from, to string) (*Stats, error)
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

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.punch(w, r, "CheckIn", h.Service.CheckIn)
}

func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.punch(w, r, "CheckOut", h.Service.CheckOut)
}

type punchFunc func(ctx context.Context, userID int64, c Capture) (*TransitionResult, error)

func (h *Handler) punch(w http.ResponseWriter, r *http.Request, name string, do punchFunc) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == 0 {
		h.WriteAppError(w, internal.ErrInvalidToken)
		return
	}

	var req PunchRequest
	if appErr := h.DecodeJSON(r, &req); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}
	if appErr := req.Validate(); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}
	capture, err := req.ToCapture()
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	result, err := do(r.Context(), userID, capture)
	if err != nil {
		h.RequestLogger(r).Debug(name+": service error", "user_id", userID, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteSuccess(w, http.StatusOK, result.Message(), result.ToResponse())
}

// BarcodeToggle serves both the authenticated and the public kiosk route.
// The acting identity always comes from the barcode.
func (h *Handler) BarcodeToggle(w http.ResponseWriter, r *http.Request) {
	var req BarcodeRequest
	if appErr := h.DecodeJSON(r, &req); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}
	if appErr := req.Validate(); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	result, err := h.Service.BarcodeToggle(r.Context(), req.Code, req.ToCapture())
	if err != nil {
		h.RequestLogger(r).Debug("BarcodeToggle: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteSuccess(w, http.StatusOK, result.Message(), result.ToResponse())
}

func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == 0 {
		h.WriteAppError(w, internal.ErrInvalidToken)
		return
	}

	view, err := h.Service.Today(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "Today's attendance", view)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == 0 {
		h.WriteAppError(w, internal.ErrInvalidToken)
		return
	}

	q := r.URL.Query()
	limit := h.QueryInt(r, "limit", 20, 1, 100)
	offset := h.QueryInt(r, "offset", 0, 0, 1<<30)

	page, err := h.Service.History(r.Context(), userID, q.Get("from"), q.Get("to"), limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "Attendance history", page)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == 0 {
		h.WriteAppError(w, internal.ErrInvalidToken)
		return
	}

	q := r.URL.Query()
	stats, err := h.Service.Stats(r.Context(), userID, q.Get("from"), q.Get("to"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "Attendance stats", stats)
}
