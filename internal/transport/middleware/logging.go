package middleware

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	filtered     = "[FILTERED]"
	streamMarker = "[STREAM]"
	// maxLoggedBody caps how much of a body ends up in a log line.
	maxLoggedBody = 4 << 10
)

// Key fragments that mark a header or JSON field as sensitive. Matching is
// case-insensitive and by substring.
var sensitiveFragments = []string{
	"password",
	"token",
	"authorization",
	"secret",
	"key",
	"session",
	"credential",
	"auth",
	"facedata",
	"fingerprintdata",
	"barcodedata",
	"descriptor",
	"template",
	"image",
}

// Request bodies also hide these keys, matched whole. Response bodies keep
// them so error codes stay readable.
var sensitiveRequestKeys = map[string]bool{
	"code":    true,
	"payload": true,
}

func isSensitiveKey(key string, request bool) bool {
	key = strings.ToLower(key)
	if request && sensitiveRequestKeys[key] {
		return true
	}
	for _, fragment := range sensitiveFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

// LoggingMiddleware logs every request and its response with credentials,
// biometric captures and scanned codes masked.
func LoggingMiddleware(lg *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			traceID := r.Header.Get(TraceHeader)

			var reqBody []byte
			if r.Body != nil {
				reqBody, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(reqBody))
			}
			lg.Info("incoming request",
				"trace_id", traceID,
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"headers", filterSensitiveHeaders(r.Header),
				"body", filterSensitiveBody(reqBody, true),
			)

			cw := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(cw, r)

			body := filterSensitiveBody(cw.body.Bytes(), false)
			if cw.streamed > 0 {
				body = streamMarker
			}
			lg.Log(context.Background(), levelFor(cw.status()), "response",
				"trace_id", traceID,
				"status_code", cw.status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"response_size", cw.body.Len()+cw.streamed,
				"body", body,
			)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// captureWriter records the status and body of a response. Event streams
// are counted but not buffered, and Flush/Hijack reach the underlying
// writer so SSE and websocket upgrades keep working behind it.
type captureWriter struct {
	http.ResponseWriter
	code     int
	body     bytes.Buffer
	streamed int
}

func (cw *captureWriter) status() int {
	if cw.code == 0 {
		return http.StatusOK
	}
	return cw.code
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.code = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	switch {
	case strings.HasPrefix(cw.Header().Get("Content-Type"), "text/event-stream"):
		cw.streamed += len(b)
	case cw.body.Len() < maxLoggedBody:
		cw.body.Write(b)
	}
	return cw.ResponseWriter.Write(b)
}

func (cw *captureWriter) Flush() {
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (cw *captureWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := cw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (cw *captureWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

func filterSensitiveHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitiveKey(name, false) {
			out[name] = filtered
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// filterSensitiveBody renders body for a log line. request selects the
// stricter key set used for incoming payloads.
func filterSensitiveBody(body []byte, request bool) string {
	if len(body) == 0 {
		return ""
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		lower := strings.ToLower(string(body))
		for _, fragment := range sensitiveFragments {
			if strings.Contains(lower, fragment) {
				return "[FILTERED - Contains sensitive data]"
			}
		}
		if len(body) > maxLoggedBody {
			return string(body[:maxLoggedBody]) + "...(truncated)"
		}
		return string(body)
	}

	out, err := json.Marshal(redact(doc, request))
	if err != nil {
		return "[ERROR - Failed to marshal filtered JSON]"
	}
	return string(out)
}

func redact(doc interface{}, request bool) interface{} {
	switch v := doc.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitiveKey(key, request) {
				out[key] = filtered
				continue
			}
			out[key] = redact(value, request)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = redact(item, request)
		}
		return out
	default:
		return v
	}
}
