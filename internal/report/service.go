package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/attendance-management/internal"
	"github.com/frahmantamala/attendance-management/internal/attendance"
)

// RepositoryAPI is the read side of the attendance tables.
type RepositoryAPI interface {
	ActiveEmployees(ctx context.Context) ([]Employee, error)
	// RecordsBetween returns active records with from <= work_date <= to.
	RecordsBetween(ctx context.Context, from, to string) ([]Row, error)
	RecordsByDate(ctx context.Context, day, search string, limit, offset int) ([]Row, int64, error)
}

// Cache stores computed reports. Get reports whether key was found.
type Cache interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type Options struct {
	Location     *time.Location
	LateAfter    time.Duration
	MaxRangeDays int
	CacheTTL     time.Duration
	Now          func() time.Time
}

const (
	DefaultMaxRangeDays = 62
	DefaultCacheTTL     = 24 * time.Hour
)

type Service struct {
	repo   RepositoryAPI
	cache  Cache
	opts   Options
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, cache Cache, opts Options, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = DefaultMaxRangeDays
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{repo: repo, cache: cache, opts: opts, logger: logger}
}

func (s *Service) today() string {
	return attendance.DayOf(s.opts.Now(), s.opts.Location)
}

// day normalises an optional YYYY-MM-DD parameter, defaulting to today.
func (s *Service) day(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return s.today(), nil
	}
	t, err := attendance.ParseDay(raw, s.opts.Location)
	if err != nil {
		return "", err
	}
	return t.Format(attendance.DayLayout), nil
}

func dailySummaryKey(day string) string {
	return "report:daily-summary:" + day
}

// DailySummary totals one day. Past days are served from the cache when
// present since their records no longer change.
func (s *Service) DailySummary(ctx context.Context, date string) (*DailySummary, error) {
	day, err := s.day(date)
	if err != nil {
		return nil, err
	}

	cacheable := day < s.today()
	if cacheable {
		var cached DailySummary
		found, err := s.cache.Get(ctx, dailySummaryKey(day), &cached)
		if err != nil {
			s.logger.Warn("failed to read report cache", "key", dailySummaryKey(day), "error", err)
		}
		if found {
			return &cached, nil
		}
	}

	summary, err := s.computeDailySummary(ctx, day)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := s.cache.Set(ctx, dailySummaryKey(day), summary, s.opts.CacheTTL); err != nil {
			s.logger.Warn("failed to write report cache", "key", dailySummaryKey(day), "error", err)
		}
	}
	return summary, nil
}

// WarmDailySummary recomputes day and stores it in the cache.
func (s *Service) WarmDailySummary(ctx context.Context, day string) error {
	summary, err := s.computeDailySummary(ctx, day)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, dailySummaryKey(day), summary, s.opts.CacheTTL); err != nil {
		return fmt.Errorf("cache daily summary %s: %w", day, err)
	}
	return nil
}

func (s *Service) computeDailySummary(ctx context.Context, day string) (*DailySummary, error) {
	employees, err := s.repo.ActiveEmployees(ctx)
	if err != nil {
		s.logger.Error("failed to list active employees", "error", err)
		return nil, internal.NewInternalError("failed to build daily summary", err)
	}
	rows, err := s.repo.RecordsBetween(ctx, day, day)
	if err != nil {
		s.logger.Error("failed to list records", "date", day, "error", err)
		return nil, internal.NewInternalError("failed to build daily summary", err)
	}

	summary := &DailySummary{Date: day, ActiveEmployees: len(employees)}
	seen := make(map[int64]bool, len(rows))
	for _, r := range rows {
		switch r.State() {
		case attendance.StateOpen:
			summary.OnDuty++
		case attendance.StateClosed:
			summary.CheckedOut++
		}
		if r.State() != attendance.StateNone {
			summary.Present++
		}
		if r.Status == attendance.StatusLate {
			summary.Late++
		}
		summary.TotalHours += r.TotalHours
		if r.EmployeeID != nil {
			seen[*r.EmployeeID] = true
		}
	}
	for _, e := range employees {
		if !seen[e.EmployeeID] {
			summary.Absent++
		}
	}
	summary.TotalHours = attendance.RoundHours(summary.TotalHours)
	return summary, nil
}

// Absentees lists active employees with no active record on the day.
func (s *Service) Absentees(ctx context.Context, date string) (*AbsenteeList, error) {
	day, err := s.day(date)
	if err != nil {
		return nil, err
	}

	employees, err := s.repo.ActiveEmployees(ctx)
	if err != nil {
		s.logger.Error("failed to list active employees", "error", err)
		return nil, internal.NewInternalError("failed to list absentees", err)
	}
	rows, err := s.repo.RecordsBetween(ctx, day, day)
	if err != nil {
		s.logger.Error("failed to list records", "date", day, "error", err)
		return nil, internal.NewInternalError("failed to list absentees", err)
	}

	present := make(map[int64]bool, len(rows))
	for _, r := range rows {
		if r.EmployeeID != nil {
			present[*r.EmployeeID] = true
		}
	}

	list := &AbsenteeList{Date: day, Employees: []Employee{}}
	for _, e := range employees {
		if !present[e.EmployeeID] {
			list.Employees = append(list.Employees, e)
		}
	}
	sort.SliceStable(list.Employees, func(i, j int) bool {
		a, b := list.Employees[i], list.Employees[j]
		if a.Department != b.Department {
			return a.Department < b.Department
		}
		return a.Name < b.Name
	})
	list.Total = len(list.Employees)
	return list, nil
}

// LateArrivals lists first check-ins after threshold ("HH:MM", defaulting
// to the configured late time), grouped by department.
func (s *Service) LateArrivals(ctx context.Context, date, threshold string) (*LateReport, error) {
	day, err := s.day(date)
	if err != nil {
		return nil, err
	}

	after := s.opts.LateAfter
	if strings.TrimSpace(threshold) != "" {
		after, err = internal.ParseClock(threshold)
		if err != nil {
			return nil, internal.NewValidationFieldError("threshold", "threshold must be a time in HH:MM format", internal.ErrCodeValidationFailed)
		}
	}

	rows, err := s.repo.RecordsBetween(ctx, day, day)
	if err != nil {
		s.logger.Error("failed to list records", "date", day, "error", err)
		return nil, internal.NewInternalError("failed to list late arrivals", err)
	}

	start, _ := attendance.ParseDay(day, s.opts.Location)
	cutoff := attendance.ClockOn(start, after)

	byDept := make(map[string][]LateArrival)
	total := 0
	for _, r := range rows {
		in := r.FirstIn()
		if in == nil || !in.After(cutoff) {
			continue
		}
		byDept[r.Department] = append(byDept[r.Department], LateArrival{
			RecordID:     r.RecordID,
			UserID:       r.UserID,
			EmployeeID:   r.EmployeeID,
			EmployeeCode: r.EmployeeCode,
			Name:         r.EmployeeName,
			CheckInTime:  in.In(s.opts.Location),
			MinutesLate:  int(in.Sub(cutoff) / time.Minute),
		})
		total++
	}

	report := &LateReport{
		Date:        day,
		Threshold:   formatClock(after),
		Total:       total,
		Departments: make([]DepartmentLate, 0, len(byDept)),
	}
	for dept, arrivals := range byDept {
		sort.SliceStable(arrivals, func(i, j int) bool {
			return arrivals[i].CheckInTime.Before(arrivals[j].CheckInTime)
		})
		report.Departments = append(report.Departments, DepartmentLate{Department: dept, Arrivals: arrivals})
	}
	sort.Slice(report.Departments, func(i, j int) bool {
		return report.Departments[i].Department < report.Departments[j].Department
	})
	return report, nil
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// OnDuty lists today's open sessions, earliest check-in first.
func (s *Service) OnDuty(ctx context.Context) ([]OnDutyEntry, error) {
	day := s.today()
	rows, err := s.repo.RecordsBetween(ctx, day, day)
	if err != nil {
		s.logger.Error("failed to list records", "date", day, "error", err)
		return nil, internal.NewInternalError("failed to list on-duty employees", err)
	}

	entries := []OnDutyEntry{}
	for _, r := range rows {
		if r.State() != attendance.StateOpen {
			continue
		}
		entries = append(entries, OnDutyEntry{
			RecordID:     r.RecordID,
			UserID:       r.UserID,
			EmployeeID:   r.EmployeeID,
			EmployeeCode: r.EmployeeCode,
			Name:         r.EmployeeName,
			Department:   r.Department,
			CheckInTime:  r.CheckInTime.In(s.opts.Location),
			Method:       r.CheckInMethod,
			Sessions:     r.Sessions,
			TotalHours:   r.TotalHours,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CheckInTime.Before(entries[j].CheckInTime)
	})
	return entries, nil
}

// ListByDate pages through a day's records, optionally filtered by an
// employee name or code fragment.
func (s *Service) ListByDate(ctx context.Context, date, search string, limit, offset int) (*DatePage, error) {
	day, err := s.day(date)
	if err != nil {
		return nil, err
	}
	search = strings.TrimSpace(search)

	rows, total, err := s.repo.RecordsByDate(ctx, day, search, limit, offset)
	if err != nil {
		s.logger.Error("failed to list records by date", "date", day, "error", err)
		return nil, internal.NewInternalError("failed to list attendance records", err)
	}

	page := &DatePage{Date: day, Search: search, Total: total, Limit: limit, Offset: offset, Items: make([]DateEntry, 0, len(rows))}
	for _, r := range rows {
		page.Items = append(page.Items, DateEntry{
			RecordID:     r.RecordID,
			UserID:       r.UserID,
			EmployeeID:   r.EmployeeID,
			EmployeeCode: r.EmployeeCode,
			Name:         r.EmployeeName,
			Department:   r.Department,
			FirstCheckIn: s.local(r.FirstIn()),
			CheckInTime:  s.local(r.CheckInTime),
			CheckOutTime: s.local(r.CheckOutTime),
			TotalHours:   r.TotalHours,
			Sessions:     r.Sessions,
			Status:       r.Status,
			State:        r.State(),
		})
	}
	return page, nil
}

func (s *Service) local(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	l := t.In(s.opts.Location)
	return &l
}

type rangeKey struct {
	employee bool
	id       int64
}

// RangeReport builds the employee by day grid for [from, to]. Days up to
// today without a record are marked absent; later days carry no status.
func (s *Service) RangeReport(ctx context.Context, from, to string) (*RangeReport, error) {
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return nil, internal.NewValidationError("from and to are required", internal.ErrCodeInvalidRange)
	}
	start, err := attendance.ParseDay(from, s.opts.Location)
	if err != nil {
		return nil, err
	}
	end, err := attendance.ParseDay(to, s.opts.Location)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, internal.NewValidationError(fmt.Sprintf("from %s is after to %s", from, to), internal.ErrCodeInvalidRange)
	}

	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(attendance.DayLayout))
		if len(days) > s.opts.MaxRangeDays {
			return nil, internal.NewValidationError(fmt.Sprintf("range may span at most %d days", s.opts.MaxRangeDays), internal.ErrCodeInvalidRange)
		}
	}
	fromDay, toDay := days[0], days[len(days)-1]

	employees, err := s.repo.ActiveEmployees(ctx)
	if err != nil {
		s.logger.Error("failed to list active employees", "error", err)
		return nil, internal.NewInternalError("failed to build range report", err)
	}
	rows, err := s.repo.RecordsBetween(ctx, fromDay, toDay)
	if err != nil {
		s.logger.Error("failed to list records", "from", fromDay, "to", toDay, "error", err)
		return nil, internal.NewInternalError("failed to build range report", err)
	}

	dayIndex := make(map[string]int, len(days))
	for i, d := range days {
		dayIndex[d] = i
	}

	var order []rangeKey
	grid := make(map[rangeKey]*RangeRow)
	addRow := func(k rangeKey, row *RangeRow) *RangeRow {
		if existing, ok := grid[k]; ok {
			return existing
		}
		row.Cells = make([]Cell, len(days))
		for i, d := range days {
			row.Cells[i] = Cell{Date: d}
		}
		grid[k] = row
		order = append(order, k)
		return row
	}

	for _, e := range employees {
		id := e.EmployeeID
		addRow(rangeKey{employee: true, id: id}, &RangeRow{
			EmployeeID:   &id,
			EmployeeCode: e.EmployeeCode,
			Name:         e.Name,
			Department:   e.Department,
		})
	}

	for _, r := range rows {
		i, ok := dayIndex[r.WorkDate]
		if !ok {
			continue
		}
		var row *RangeRow
		if r.EmployeeID != nil {
			id := *r.EmployeeID
			row = addRow(rangeKey{employee: true, id: id}, &RangeRow{
				EmployeeID:   &id,
				EmployeeCode: r.EmployeeCode,
				Name:         r.EmployeeName,
				Department:   r.Department,
			})
		} else {
			uid := r.UserID
			row = addRow(rangeKey{id: uid}, &RangeRow{UserID: &uid})
		}

		cell := &row.Cells[i]
		cell.In = s.local(r.FirstIn())
		if r.State() == attendance.StateClosed {
			cell.Out = s.local(r.CheckOutTime)
		}
		cell.Hours = r.TotalHours
		cell.Status = r.Status
	}

	today := s.today()
	report := &RangeReport{From: fromDay, To: toDay, Days: days, Rows: make([]RangeRow, 0, len(order))}
	for _, k := range order {
		row := grid[k]
		for i := range row.Cells {
			c := &row.Cells[i]
			switch {
			case c.Status != "":
				if c.In != nil {
					row.DaysPresent++
				}
				row.TotalHours += c.Hours
			case c.Date <= today:
				c.Status = attendance.StatusAbsent
			}
		}
		row.TotalHours = attendance.RoundHours(row.TotalHours)
		report.Rows = append(report.Rows, *row)
	}
	sort.SliceStable(report.Rows, func(i, j int) bool {
		a, b := report.Rows[i], report.Rows[j]
		if a.Department != b.Department {
			return a.Department < b.Department
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.EmployeeCode < b.EmployeeCode
	})
	return report, nil
}
