package attendance_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/frahmantamala/attendance-management/internal"
	"github.com/frahmantamala/attendance-management/internal/attendance"
	"github.com/frahmantamala/attendance-management/internal/identity"
	"github.com/frahmantamala/attendance-management/internal/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var _ = Describe("Attendance Handler", func() {
	var (
		handler *attendance.Handler
		store   *MockStore
		clock   time.Time
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		store = NewMockStore()
		employeeID := int64(7)
		resolver := &MockResolver{barcodes: map[string]identity.Identity{"BC-42": {UserID: 42, EmployeeID: &employeeID}}}
		clock = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
		service := attendance.NewService(store, resolver, &MockPublisher{}, attendance.Options{
			Location: time.UTC,
			Now:      func() time.Time { return clock },
		}, logger)
		handler = attendance.NewHandler(&transport.BaseHandler{Logger: logger}, service)
	})

	do := func(h http.HandlerFunc, method, target, body string, userID int64) (*httptest.ResponseRecorder, envelope) {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if userID != 0 {
			req = req.WithContext(internal.ContextWithUserID(context.Background(), userID))
		}
		w := httptest.NewRecorder()
		h(w, req)

		var env envelope
		Expect(json.Unmarshal(w.Body.Bytes(), &env)).To(Succeed())
		return w, env
	}

	Describe("POST /attendance/check-in", func() {
		It("should check in with a face payload", func() {
			w, env := do(handler.CheckIn, http.MethodPost, "/attendance/check-in",
				`{"method":"face","faceData":{"image":"aGk="},"location":{"latitude":-6.2,"longitude":106.8}}`, 42)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(env.Success).To(BeTrue())
			var data attendance.TransitionResponse
			Expect(json.Unmarshal(env.Data, &data)).To(Succeed())
			Expect(data.Status).To(Equal(attendance.ResponseCheckedIn))
			Expect(data.WorkDate).To(Equal("2025-03-10"))
			Expect(data.Sessions).To(Equal(1))
		})

		It("should reject an unknown method with 400", func() {
			w, env := do(handler.CheckIn, http.MethodPost, "/attendance/check-in", `{"method":"retina"}`, 42)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(env.Error.Code).To(Equal(string(internal.ErrCodeInvalidMethod)))
			Expect(store.upsertCalls).To(BeZero())
		})

		It("should reject a payload for another method", func() {
			w, _ := do(handler.CheckIn, http.MethodPost, "/attendance/check-in", `{"method":"face","barcodeData":{"code":"X"}}`, 42)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should reject an out-of-range latitude", func() {
			w, _ := do(handler.CheckIn, http.MethodPost, "/attendance/check-in", `{"method":"face","location":{"latitude":123}}`, 42)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should require an authenticated user", func() {
			w, _ := do(handler.CheckIn, http.MethodPost, "/attendance/check-in", `{"method":"face"}`, 0)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("should return 409 for a non-barcode check-in while open", func() {
			do(handler.CheckIn, http.MethodPost, "/attendance/check-in", `{"method":"face"}`, 42)
			w, env := do(handler.CheckIn, http.MethodPost, "/attendance/check-in", `{"method":"fingerprint"}`, 42)

			Expect(w.Code).To(Equal(http.StatusConflict))
			Expect(env.Error.Code).To(Equal(string(internal.ErrCodeCheckoutRequiresBarcode)))
		})
	})

	Describe("POST /attendance/check-out", func() {
		It("should return 404 without a check-in", func() {
			w, env := do(handler.CheckOut, http.MethodPost, "/attendance/check-out", `{"method":"face"}`, 42)
			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(env.Error.Code).To(Equal(string(internal.ErrCodeNoCheckInFound)))
		})
	})

	Describe("POST /public/barcode-scan", func() {
		It("should toggle through the linked user", func() {
			w, env := do(handler.BarcodeToggle, http.MethodPost, "/public/barcode-scan", `{"code":"BC-42","deviceInfo":{"deviceId":"kiosk"}}`, 0)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(env.Message).To(Equal("Checked in successfully"))
			Expect(store.devices).To(HaveLen(1))

			clock = clock.Add(time.Hour)
			_, env = do(handler.BarcodeToggle, http.MethodPost, "/public/barcode-scan", `{"code":"BC-42"}`, 0)
			Expect(env.Message).To(Equal("Checked out successfully"))
		})

		It("should return 403 for an unlinked barcode", func() {
			w, env := do(handler.BarcodeToggle, http.MethodPost, "/public/barcode-scan", `{"code":"UNLINKED"}`, 0)
			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(env.Error.Code).To(Equal(string(internal.ErrCodeIdentityNotLinked)))
		})

		It("should require a code", func() {
			w, _ := do(handler.BarcodeToggle, http.MethodPost, "/public/barcode-scan", `{}`, 0)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("personal views", func() {
		It("should return today's state", func() {
			do(handler.CheckIn, http.MethodPost, "/attendance/check-in", `{"method":"manual","manualData":{"reason":"forgot badge"}}`, 42)

			w, env := do(handler.Today, http.MethodGet, "/attendance/today", "", 42)
			Expect(w.Code).To(Equal(http.StatusOK))
			var view attendance.TodayView
			Expect(json.Unmarshal(env.Data, &view)).To(Succeed())
			Expect(view.State).To(Equal(attendance.StateOpen))
		})

		It("should reject a malformed history date", func() {
			w, _ := do(handler.History, http.MethodGet, "/attendance/history?from=10-03-2025", "", 42)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should return stats", func() {
			w, env := do(handler.Stats, http.MethodGet, "/attendance/stats?from=2025-03-01&to=2025-03-10", "", 42)
			Expect(w.Code).To(Equal(http.StatusOK))
			var st attendance.Stats
			Expect(json.Unmarshal(env.Data, &st)).To(Succeed())
			Expect(st.From).To(Equal("2025-03-01"))
		})
	})
})
