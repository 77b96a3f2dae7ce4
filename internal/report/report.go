package report

import (
	"time"

	"github.com/frahmantamala/attendance-management/internal/attendance"
)

// Row is one active attendance record joined with its employee master data.
// Missing employee fields come back as empty strings.
type Row struct {
	RecordID         int64      `db:"record_id"`
	UserID           int64      `db:"user_id"`
	EmployeeID       *int64     `db:"employee_id"`
	EmployeeCode     string     `db:"employee_code"`
	EmployeeName     string     `db:"employee_name"`
	Department       string     `db:"department"`
	WorkDate         string     `db:"work_date"`
	FirstCheckInTime *time.Time `db:"first_check_in_time"`
	CheckInTime      *time.Time `db:"check_in_time"`
	CheckInMethod    string     `db:"check_in_method"`
	CheckOutTime     *time.Time `db:"check_out_time"`
	TotalHours       float64    `db:"total_hours"`
	Sessions         int        `db:"sessions"`
	Status           string     `db:"status"`
}

func (r Row) State() attendance.State {
	switch {
	case r.CheckInTime == nil:
		return attendance.StateNone
	case r.CheckOutTime == nil:
		return attendance.StateOpen
	default:
		return attendance.StateClosed
	}
}

// FirstIn is the first check-in of the day, falling back to the current
// session start for rows written before first_check_in_time existed.
func (r Row) FirstIn() *time.Time {
	if r.FirstCheckInTime != nil {
		return r.FirstCheckInTime
	}
	return r.CheckInTime
}

type Employee struct {
	EmployeeID   int64  `db:"employee_id" json:"employeeId"`
	EmployeeCode string `db:"employee_code" json:"employeeCode"`
	Name         string `db:"employee_name" json:"name"`
	Department   string `db:"department" json:"department"`
}

type DailySummary struct {
	Date            string  `json:"date"`
	ActiveEmployees int     `json:"activeEmployees"`
	Present         int     `json:"present"`
	Absent          int     `json:"absent"`
	Late            int     `json:"late"`
	OnDuty          int     `json:"onDuty"`
	CheckedOut      int     `json:"checkedOut"`
	TotalHours      float64 `json:"totalHours"`
}

// Cell is one employee-day of the range grid.
type Cell struct {
	Date   string     `json:"date"`
	In     *time.Time `json:"in,omitempty"`
	Out    *time.Time `json:"out,omitempty"`
	Hours  float64    `json:"hours"`
	Status string     `json:"status"`
}

type RangeRow struct {
	EmployeeID   *int64  `json:"employeeId,omitempty"`
	UserID       *int64  `json:"userId,omitempty"`
	EmployeeCode string  `json:"employeeCode"`
	Name         string  `json:"name"`
	Department   string  `json:"department"`
	DaysPresent  int     `json:"daysPresent"`
	TotalHours   float64 `json:"totalHours"`
	Cells        []Cell  `json:"cells"`
}

type RangeReport struct {
	From string     `json:"from"`
	To   string     `json:"to"`
	Days []string   `json:"days"`
	Rows []RangeRow `json:"rows"`
}

type LateArrival struct {
	RecordID     int64     `json:"attendanceId"`
	UserID       int64     `json:"userId"`
	EmployeeID   *int64    `json:"employeeId,omitempty"`
	EmployeeCode string    `json:"employeeCode"`
	Name         string    `json:"name"`
	CheckInTime  time.Time `json:"checkInTime"`
	MinutesLate  int       `json:"minutesLate"`
}

type DepartmentLate struct {
	Department string        `json:"department"`
	Arrivals   []LateArrival `json:"arrivals"`
}

type LateReport struct {
	Date        string           `json:"date"`
	Threshold   string           `json:"threshold"`
	Total       int              `json:"total"`
	Departments []DepartmentLate `json:"departments"`
}

type OnDutyEntry struct {
	RecordID     int64     `json:"attendanceId"`
	UserID       int64     `json:"userId"`
	EmployeeID   *int64    `json:"employeeId,omitempty"`
	EmployeeCode string    `json:"employeeCode"`
	Name         string    `json:"name"`
	Department   string    `json:"department"`
	CheckInTime  time.Time `json:"checkInTime"`
	Method       string    `json:"method"`
	Sessions     int       `json:"sessions"`
	TotalHours   float64   `json:"totalHours"`
}

type AbsenteeList struct {
	Date      string     `json:"date"`
	Total     int        `json:"total"`
	Employees []Employee `json:"employees"`
}

type DateEntry struct {
	RecordID     int64            `json:"attendanceId"`
	UserID       int64            `json:"userId"`
	EmployeeID   *int64           `json:"employeeId,omitempty"`
	EmployeeCode string           `json:"employeeCode"`
	Name         string           `json:"name"`
	Department   string           `json:"department"`
	FirstCheckIn *time.Time       `json:"firstCheckInTime,omitempty"`
	CheckInTime  *time.Time       `json:"checkInTime,omitempty"`
	CheckOutTime *time.Time       `json:"checkOutTime,omitempty"`
	TotalHours   float64          `json:"totalHours"`
	Sessions     int              `json:"sessions"`
	Status       string           `json:"status"`
	State        attendance.State `json:"state"`
}

type DatePage struct {
	Date   string      `json:"date"`
	Search string      `json:"search,omitempty"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
	Items  []DateEntry `json:"items"`
}
