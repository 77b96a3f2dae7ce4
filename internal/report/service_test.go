package report_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/attendance-management/internal"
	"github.com/frahmantamala/attendance-management/internal/attendance"
	"github.com/frahmantamala/attendance-management/internal/report"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestReport(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Report Suite")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func int64Ptr(v int64) *int64 { return &v }

func at(day, clock string) *time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", day+" "+clock, time.UTC)
	Expect(err).NotTo(HaveOccurred())
	return &t
}

type MockRepository struct {
	employees  []report.Employee
	rows       []report.Row
	shouldFail bool
	failError  error
	rangeCalls int
	lastSearch string
}

func (m *MockRepository) fail() error {
	if m.failError != nil {
		return m.failError
	}
	return errors.New("database unavailable")
}

func (m *MockRepository) ActiveEmployees(context.Context) ([]report.Employee, error) {
	if m.shouldFail {
		return nil, m.fail()
	}
	return m.employees, nil
}

func (m *MockRepository) RecordsBetween(_ context.Context, from, to string) ([]report.Row, error) {
	m.rangeCalls++
	if m.shouldFail {
		return nil, m.fail()
	}
	var out []report.Row
	for _, r := range m.rows {
		if r.WorkDate >= from && r.WorkDate <= to {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockRepository) RecordsByDate(_ context.Context, day, search string, limit, offset int) ([]report.Row, int64, error) {
	m.lastSearch = search
	if m.shouldFail {
		return nil, 0, m.fail()
	}
	var out []report.Row
	for _, r := range m.rows {
		if r.WorkDate == day {
			out = append(out, r)
		}
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

// MemoryCache is a map-backed report.Cache.
type MemoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *MemoryCache) Get(_ context.Context, key string, dst interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

func (c *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = data
	c.ttls[key] = ttl
	return nil
}

// fixture: three active employees on 2024-03-04, "now" is 2024-03-05 10:00 UTC.
func fixture() *MockRepository {
	return &MockRepository{
		employees: []report.Employee{
			{EmployeeID: 1, EmployeeCode: "E001", Name: "Ana", Department: "Ops"},
			{EmployeeID: 2, EmployeeCode: "E002", Name: "Budi", Department: "Eng"},
			{EmployeeID: 3, EmployeeCode: "E003", Name: "Citra", Department: ""},
		},
		rows: []report.Row{
			{
				RecordID: 10, UserID: 100, EmployeeID: int64Ptr(1), EmployeeCode: "E001", EmployeeName: "Ana", Department: "Ops",
				WorkDate: "2024-03-04", FirstCheckInTime: at("2024-03-04", "08:50"), CheckInTime: at("2024-03-04", "08:50"),
				CheckOutTime: at("2024-03-04", "17:20"), TotalHours: 8.5, Sessions: 1, Status: attendance.StatusPresent, CheckInMethod: "barcode",
			},
			{
				RecordID: 11, UserID: 200, EmployeeID: int64Ptr(2), EmployeeCode: "E002", EmployeeName: "Budi", Department: "Eng",
				WorkDate: "2024-03-04", FirstCheckInTime: at("2024-03-04", "09:40"), CheckInTime: at("2024-03-04", "13:00"),
				TotalHours: 3, Sessions: 2, Status: attendance.StatusLate, CheckInMethod: "face",
			},
			{
				RecordID: 12, UserID: 300, WorkDate: "2024-03-04", FirstCheckInTime: at("2024-03-04", "09:05"),
				CheckInTime: at("2024-03-04", "09:05"), Sessions: 1, Status: attendance.StatusLate, CheckInMethod: "manual",
			},
			{
				RecordID: 13, UserID: 100, EmployeeID: int64Ptr(1), EmployeeCode: "E001", EmployeeName: "Ana", Department: "Ops",
				WorkDate: "2024-03-05", FirstCheckInTime: at("2024-03-05", "08:00"), CheckInTime: at("2024-03-05", "08:00"),
				Sessions: 1, Status: attendance.StatusPresent, CheckInMethod: "barcode",
			},
			{
				RecordID: 14, UserID: 200, EmployeeID: int64Ptr(2), EmployeeCode: "E002", EmployeeName: "Budi", Department: "Eng",
				WorkDate: "2024-03-05", FirstCheckInTime: at("2024-03-05", "07:30"), CheckInTime: at("2024-03-05", "07:30"),
				Sessions: 1, Status: attendance.StatusPresent, CheckInMethod: "face",
			},
		},
	}
}

var _ = Describe("Report Service", func() {
	var (
		repo    *MockRepository
		cache   *MemoryCache
		service *report.Service
		ctx     context.Context
	)

	BeforeEach(func() {
		repo = fixture()
		cache = NewMemoryCache()
		service = report.NewService(repo, cache, report.Options{
			Location:     time.UTC,
			LateAfter:    9 * time.Hour,
			MaxRangeDays: 31,
			CacheTTL:     time.Hour,
			Now:          func() time.Time { return *at("2024-03-05", "10:00") },
		}, quietLogger())
		ctx = context.Background()
	})

	Describe("DailySummary", func() {
		It("totals a day", func() {
			s, err := service.DailySummary(ctx, "2024-03-04")
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(Equal(&report.DailySummary{
				Date:            "2024-03-04",
				ActiveEmployees: 3,
				Present:         3,
				Absent:          1,
				Late:            2,
				OnDuty:          2,
				CheckedOut:      1,
				TotalHours:      11.5,
			}))
		})

		It("defaults to today and never caches it", func() {
			s, err := service.DailySummary(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Date).To(Equal("2024-03-05"))
			Expect(s.OnDuty).To(Equal(2))
			Expect(cache.data).To(BeEmpty())
		})

		It("serves past days from the cache after the first read", func() {
			_, err := service.DailySummary(ctx, "2024-03-04")
			Expect(err).NotTo(HaveOccurred())
			Expect(cache.ttls).To(HaveKeyWithValue("report:daily-summary:2024-03-04", time.Hour))

			calls := repo.rangeCalls
			repo.rows = nil
			s, err := service.DailySummary(ctx, "2024-03-04")
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.rangeCalls).To(Equal(calls))
			Expect(s.Present).To(Equal(3))
		})

		It("rejects a malformed date", func() {
			_, err := service.DailySummary(ctx, "04-03-2024")
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(400))
		})

		It("wraps storage failures", func() {
			repo.shouldFail = true
			_, err := service.DailySummary(ctx, "2024-03-04")
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInternal))
		})
	})

	Describe("WarmDailySummary", func() {
		It("stores a fresh summary even when one is cached", func() {
			Expect(cache.Set(ctx, "report:daily-summary:2024-03-04", report.DailySummary{Date: "stale"}, time.Minute)).To(Succeed())

			Expect(service.WarmDailySummary(ctx, "2024-03-04")).To(Succeed())

			var got report.DailySummary
			found, err := cache.Get(ctx, "report:daily-summary:2024-03-04", &got)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(got.Date).To(Equal("2024-03-04"))
			Expect(got.Present).To(Equal(3))
		})
	})

	Describe("Absentees", func() {
		It("lists active employees without any record", func() {
			list, err := service.Absentees(ctx, "2024-03-04")
			Expect(err).NotTo(HaveOccurred())
			Expect(list.Total).To(Equal(1))
			Expect(list.Employees[0].EmployeeCode).To(Equal("E003"))
			Expect(list.Employees[0].Department).To(Equal(""))
		})

		It("returns an empty list, not null, when everyone is in", func() {
			repo.employees = repo.employees[:2]
			list, err := service.Absentees(ctx, "2024-03-04")
			Expect(err).NotTo(HaveOccurred())
			Expect(list.Employees).NotTo(BeNil())
			Expect(list.Employees).To(BeEmpty())
		})
	})

	Describe("LateArrivals", func() {
		It("uses the configured late time and groups by department", func() {
			late, err := service.LateArrivals(ctx, "2024-03-04", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(late.Threshold).To(Equal("09:00"))
			Expect(late.Total).To(Equal(2))

			Expect(late.Departments).To(HaveLen(2))
			Expect(late.Departments[0].Department).To(Equal(""))
			Expect(late.Departments[0].Arrivals[0].RecordID).To(Equal(int64(12)))
			Expect(late.Departments[0].Arrivals[0].MinutesLate).To(Equal(5))
			Expect(late.Departments[1].Department).To(Equal("Eng"))
			Expect(late.Departments[1].Arrivals[0].MinutesLate).To(Equal(40))
		})

		It("judges lateness by the first check-in, not the current session", func() {
			late, err := service.LateArrivals(ctx, "2024-03-04", "10:00")
			Expect(err).NotTo(HaveOccurred())
			Expect(late.Total).To(Equal(0))
		})

		It("accepts an explicit threshold", func() {
			late, err := service.LateArrivals(ctx, "2024-03-04", "08:30")
			Expect(err).NotTo(HaveOccurred())
			Expect(late.Total).To(Equal(3))
		})

		It("measures the threshold on the local clock across a DST change", func() {
			loc, err := time.LoadLocation("America/New_York")
			Expect(err).NotTo(HaveOccurred())
			arrive := func(clock string) *time.Time {
				t, err := time.ParseInLocation("2006-01-02 15:04", "2024-03-10 "+clock, loc)
				Expect(err).NotTo(HaveOccurred())
				return &t
			}
			repo.rows = []report.Row{
				{RecordID: 20, UserID: 100, WorkDate: "2024-03-10", FirstCheckInTime: arrive("08:30"), Sessions: 1},
				{RecordID: 21, UserID: 200, WorkDate: "2024-03-10", FirstCheckInTime: arrive("09:10"), Sessions: 1},
			}
			dst := report.NewService(repo, nil, report.Options{
				Location:  loc,
				LateAfter: 9 * time.Hour,
				Now:       func() time.Time { return *arrive("12:00") },
			}, quietLogger())

			late, err := dst.LateArrivals(ctx, "2024-03-10", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(late.Total).To(Equal(1))
			Expect(late.Departments[0].Arrivals[0].RecordID).To(Equal(int64(21)))
			Expect(late.Departments[0].Arrivals[0].MinutesLate).To(Equal(10))
		})

		It("rejects a malformed threshold", func() {
			_, err := service.LateArrivals(ctx, "2024-03-04", "9am")
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})
	})

	Describe("OnDuty", func() {
		It("lists today's open sessions by check-in time", func() {
			entries, err := service.OnDuty(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].EmployeeCode).To(Equal("E002"))
			Expect(entries[1].EmployeeCode).To(Equal("E001"))
		})
	})

	Describe("ListByDate", func() {
		It("pages through a day", func() {
			page, err := service.ListByDate(ctx, "2024-03-04", "  ana ", 2, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.lastSearch).To(Equal("ana"))
			Expect(page.Total).To(Equal(int64(3)))
			Expect(page.Items).To(HaveLen(2))
			Expect(page.Items[0].State).To(Equal(attendance.StateClosed))
			Expect(page.Items[1].State).To(Equal(attendance.StateOpen))
		})
	})

	Describe("RangeReport", func() {
		It("builds one row per identity with a cell per day", func() {
			r, err := service.RangeReport(ctx, "2024-03-04", "2024-03-06")
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Days).To(Equal([]string{"2024-03-04", "2024-03-05", "2024-03-06"}))
			Expect(r.Rows).To(HaveLen(4))

			byCode := map[string]report.RangeRow{}
			for _, row := range r.Rows {
				if row.UserID != nil {
					byCode["user"] = row
					continue
				}
				byCode[row.EmployeeCode] = row
			}

			ana := byCode["E001"]
			Expect(ana.Cells[0].In.Format("15:04")).To(Equal("08:50"))
			Expect(ana.Cells[0].Out.Format("15:04")).To(Equal("17:20"))
			Expect(ana.Cells[0].Hours).To(Equal(8.5))
			Expect(ana.Cells[1].Out).To(BeNil())
			Expect(ana.Cells[2].Status).To(Equal(""))
			Expect(ana.DaysPresent).To(Equal(2))

			budi := byCode["E002"]
			Expect(budi.Cells[0].In.Format("15:04")).To(Equal("09:40"))
			Expect(budi.Cells[0].Out).To(BeNil())

			citra := byCode["E003"]
			Expect(citra.Cells[0].Status).To(Equal(attendance.StatusAbsent))
			Expect(citra.Cells[1].Status).To(Equal(attendance.StatusAbsent))
			Expect(citra.DaysPresent).To(Equal(0))

			Expect(*byCode["user"].UserID).To(Equal(int64(300)))
		})

		It("requires both ends", func() {
			_, err := service.RangeReport(ctx, "", "2024-03-06")
			Expect(err).To(HaveOccurred())
		})

		It("rejects an inverted range", func() {
			_, err := service.RangeReport(ctx, "2024-03-06", "2024-03-04")
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidRange))
		})

		It("limits the span", func() {
			_, err := service.RangeReport(ctx, "2024-01-01", "2024-03-01")
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidRange))
		})
	})
})
