package middleware

import (
	"net/http"
	"strings"

	"github.com/frahmantamala/attendance-management/pkg/logger"
	"github.com/google/uuid"
)

// TraceHeader carries the per-request trace id in both directions.
const TraceHeader = "X-Trace-ID"

const maxTraceIDLength = 128

// RequestID reuses a caller supplied trace id or mints one, echoes it on the
// response and binds it to the request logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := strings.TrimSpace(r.Header.Get(TraceHeader))
		if traceID == "" || len(traceID) > maxTraceIDLength {
			traceID = uuid.NewString()
		}
		r.Header.Set(TraceHeader, traceID)
		w.Header().Set(TraceHeader, traceID)

		ctx := logger.With(r.Context(), "traceID", traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
