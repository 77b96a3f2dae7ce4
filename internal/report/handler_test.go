package report_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/frahmantamala/attendance-management/internal/report"
	"github.com/frahmantamala/attendance-management/internal/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Type string `json:"type"`
		Code string `json:"code"`
	} `json:"error"`
}

var _ = Describe("Report Handler", func() {
	var handler *report.Handler

	BeforeEach(func() {
		service := report.NewService(fixture(), nil, report.Options{
			Location:  time.UTC,
			LateAfter: 9 * time.Hour,
			Now:       func() time.Time { return *at("2024-03-05", "10:00") },
		}, quietLogger())
		handler = report.NewHandler(transport.NewBaseHandler(quietLogger()), service)
	})

	get := func(h http.HandlerFunc, target string) (*httptest.ResponseRecorder, envelope) {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, target, nil))
		var env envelope
		if w.Header().Get("Content-Type") == "application/json" {
			Expect(json.Unmarshal(w.Body.Bytes(), &env)).To(Succeed())
		}
		return w, env
	}

	It("serves the daily summary", func() {
		w, env := get(handler.TodaySummary, "/attendance/admin/today-summary?date=2024-03-04")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(env.Success).To(BeTrue())

		var s report.DailySummary
		Expect(json.Unmarshal(env.Data, &s)).To(Succeed())
		Expect(s.Absent).To(Equal(1))
	})

	It("serves the on-duty list", func() {
		w, env := get(handler.OnDuty, "/attendance/admin/on-duty")
		Expect(w.Code).To(Equal(http.StatusOK))
		var entries []report.OnDutyEntry
		Expect(json.Unmarshal(env.Data, &entries)).To(Succeed())
		Expect(entries).To(HaveLen(2))
	})

	It("serves absentees", func() {
		w, env := get(handler.Absentees, "/attendance/admin/absentees?date=2024-03-04")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(string(env.Data)).To(ContainSubstring(`"employeeCode":"E003"`))
	})

	It("serves late arrivals with a threshold", func() {
		w, env := get(handler.LateArrivals, "/attendance/admin/late?date=2024-03-04&threshold=09:30")
		Expect(w.Code).To(Equal(http.StatusOK))
		var late report.LateReport
		Expect(json.Unmarshal(env.Data, &late)).To(Succeed())
		Expect(late.Total).To(Equal(1))
	})

	It("rejects a bad late threshold with 400", func() {
		w, env := get(handler.LateArrivals, "/attendance/admin/late?threshold=late")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(env.Success).To(BeFalse())
	})

	It("pages records by date", func() {
		w, env := get(handler.ListByDate, "/attendance/list-by-date?date=2024-03-04&limit=1&offset=1")
		Expect(w.Code).To(Equal(http.StatusOK))
		var page report.DatePage
		Expect(json.Unmarshal(env.Data, &page)).To(Succeed())
		Expect(page.Total).To(Equal(int64(3)))
		Expect(page.Items).To(HaveLen(1))
		Expect(page.Limit).To(Equal(1))
		Expect(page.Offset).To(Equal(1))
	})

	It("serves the range report as JSON by default", func() {
		w, env := get(handler.RangeReport, "/attendance/range-report?from=2024-03-04&to=2024-03-05")
		Expect(w.Code).To(Equal(http.StatusOK))
		var r report.RangeReport
		Expect(json.Unmarshal(env.Data, &r)).To(Succeed())
		Expect(r.Days).To(HaveLen(2))
	})

	It("serves the range report as a workbook", func() {
		w, _ := get(handler.RangeReport, "/attendance/range-report?from=2024-03-04&to=2024-03-05&format=xlsx")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(Equal(report.XLSXMimeType))
		Expect(w.Header().Get("Content-Disposition")).To(ContainSubstring("attendance_2024-03-04_2024-03-05.xlsx"))
		Expect(w.Body.Len()).To(BeNumerically(">", 0))
	})

	It("rejects an unknown format", func() {
		w, env := get(handler.RangeReport, "/attendance/range-report?from=2024-03-04&to=2024-03-05&format=csv")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(env.Error.Code).To(Equal("VALIDATION_FAILED"))
	})

	It("rejects a missing range", func() {
		w, env := get(handler.RangeReport, "/attendance/range-report")
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(env.Error.Code).To(Equal("INVALID_RANGE"))
	})
})
