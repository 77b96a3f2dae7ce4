package feed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/frahmantamala/attendance-management/internal"
	"github.com/frahmantamala/attendance-management/internal/auth"
	"github.com/frahmantamala/attendance-management/internal/transport"
)

const DefaultHeartbeat = 25 * time.Second

// Subscriber is the part of Hub the transports need.
type Subscriber interface {
	Subscribe(f Filter) (*Subscription, error)
}

// StreamHandler serves the live feed as server-sent events.
type StreamHandler struct {
	*transport.BaseHandler
	feed      Subscriber
	checker   auth.PermissionChecker
	heartbeat time.Duration
}

func NewStreamHandler(base *transport.BaseHandler, feed Subscriber, checker auth.PermissionChecker, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &StreamHandler{BaseHandler: base, feed: feed, checker: checker, heartbeat: heartbeat}
}

func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	filter, appErr := resolveFilter(r, h.checker)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.WriteAppError(w, internal.NewInternalError("streaming is not supported", nil))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	lg := h.RequestLogger(r)
	sub, err := h.feed.Subscribe(filter)
	if err != nil {
		lg.Warn("Stream: feed unavailable", "error", err)
		writeUnavailable(w)
		flusher.Flush()
		return
	}
	defer sub.Close()

	writeFrame(w, "", "connected", map[string]interface{}{"filter": filter})
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			writeUnavailable(w)
			flusher.Flush()
			return
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case ev := <-sub.Events():
			if err := writeFrame(w, ev.ID, "attendance", ev); err != nil {
				lg.Debug("Stream: client write failed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, id, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if id != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

func writeUnavailable(w http.ResponseWriter) {
	writeFrame(w, "", "unavailable", map[string]string{"message": ErrFeedUnavailable.Message})
}

// resolveFilter reads userId/employeeId and pins callers without report
// permissions to their own events.
func resolveFilter(r *http.Request, checker auth.PermissionChecker) (Filter, *internal.AppError) {
	var f Filter

	user, ok := auth.UserFromContext(r.Context())
	if !ok || user.ID <= 0 {
		return f, internal.ErrInvalidToken
	}

	q := r.URL.Query()
	if raw := q.Get("userId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return f, internal.NewValidationFieldError("userId", "userId must be a positive integer", internal.ErrCodeValidationFailed)
		}
		f.UserID = &id
	}
	if raw := q.Get("employeeId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return f, internal.NewValidationFieldError("employeeId", "employeeId must be a positive integer", internal.ErrCodeValidationFailed)
		}
		f.EmployeeID = &id
	}

	if checker.CanWatchAllEvents(user.Permissions) {
		return f, nil
	}
	if f.UserID != nil && *f.UserID != user.ID {
		return f, internal.ErrForbidden
	}
	own := user.ID
	f.UserID = &own
	return f, nil
}
