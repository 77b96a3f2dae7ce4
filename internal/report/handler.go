package report

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/frahmantamala/attendance-management/internal"
	"github.com/frahmantamala/attendance-management/internal/transport"
)

type ServiceAPI interface {
	DailySummary(ctx context.Context, date string) (*DailySummary, error)
	Absentees(ctx context.Context, date string) (*AbsenteeList, error)
	LateArrivals(ctx context.Context, date, threshold string) (*LateReport, error)
	OnDuty(ctx context.Context) ([]OnDutyEntry, error)
	ListByDate(ctx context.Context, date, search string, limit, offset int) (*DatePage, error)
	RangeReport(ctx context.Context, from, to string) (*RangeReport, error)
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

func (h *Handler) TodaySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.DailySummary(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "Daily summary", summary)
}

func (h *Handler) OnDuty(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.OnDuty(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "On-duty employees", entries)
}

func (h *Handler) Absentees(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.Absentees(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "Absent employees", list)
}

func (h *Handler) LateArrivals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := h.Service.LateArrivals(r.Context(), q.Get("date"), q.Get("threshold"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "Late arrivals", report)
}

func (h *Handler) ListByDate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := h.QueryInt(r, "limit", 20, 1, 100)
	offset := h.QueryInt(r, "offset", 0, 0, 1<<30)

	page, err := h.Service.ListByDate(r.Context(), q.Get("date"), q.Get("search"), limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, "Attendance records", page)
}

func (h *Handler) RangeReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := strings.ToLower(q.Get("format"))
	if format != "" && format != "json" && format != "xlsx" {
		h.WriteAppError(w, internal.NewValidationFieldError("format", "format must be one of: json, xlsx", internal.ErrCodeValidationFailed))
		return
	}

	report, err := h.Service.RangeReport(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if format != "xlsx" {
		h.WriteSuccess(w, http.StatusOK, "Range report", report)
		return
	}

	data, err := RenderRangeXLSX(report)
	if err != nil {
		h.RequestLogger(r).Error("RangeReport: failed to render workbook", "error", err)
		h.HandleServiceError(w, internal.NewInternalError("failed to render range report", err))
		return
	}
	w.Header().Set("Content-Type", XLSXMimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance_%s_%s.xlsx"`, report.From, report.To))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.RequestLogger(r).Debug("RangeReport: client write failed", "error", err)
	}
}
