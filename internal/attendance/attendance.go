package attendance

import (
	"strings"
	"time"

	"github.com/frahmantamala/attendance-management/internal"
)

type Method string

const (
	MethodFace        Method = "face"
	MethodFingerprint Method = "fingerprint"
	MethodBarcode     Method = "barcode"
	MethodManual      Method = "manual"
)

// ParseMethod accepts the four capture methods, case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodFace, MethodFingerprint, MethodBarcode, MethodManual:
		return m, nil
	}
	return "", internal.ErrInvalidMethod
}

func (m Method) Valid() bool {
	_, err := ParseMethod(string(m))
	return err == nil
}

type Action string

const (
	ActionCheckIn       Action = "check-in"
	ActionCheckOut      Action = "check-out"
	ActionBarcodeToggle Action = "barcode-toggle"
)

// State of the day record as seen by the toggle state machine.
type State string

const (
	StateNone   State = "NONE"
	StateOpen   State = "OPEN"
	StateClosed State = "CLOSED"
)

type EventType string

const (
	EventCheckIn  EventType = "check-in"
	EventCheckOut EventType = "check-out"
)

const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusHalfDay = "half-day"
	StatusLeave   = "leave"
)

type Location struct {
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
	Address   string   `json:"address,omitempty" validate:"max=500"`
}

type DeviceInfo struct {
	DeviceID   string `json:"deviceId,omitempty" validate:"max=128"`
	Platform   string `json:"platform,omitempty" validate:"max=40"`
	Model      string `json:"model,omitempty" validate:"max=80"`
	AppVersion string `json:"appVersion,omitempty" validate:"max=40"`
}

// Capture is everything a client submits with a single punch.
type Capture struct {
	Method   Method
	Payload  Payload
	Location *Location
	Device   *DeviceInfo
}

// Validate checks the method and that any payload matches it.
func (c Capture) Validate() error {
	if !c.Method.Valid() {
		return internal.ErrInvalidMethod
	}
	if c.Payload != nil && c.Payload.Method() != c.Method {
		return internal.NewValidationFieldError("payload",
			"payload for method "+string(c.Payload.Method())+" does not match method "+string(c.Method),
			internal.ErrCodeInvalidPayload)
	}
	return nil
}

// Punch is one side of a session: when, how and where.
type Punch struct {
	Time     time.Time   `json:"time"`
	Method   Method      `json:"method"`
	Location *Location   `json:"location,omitempty"`
	Device   *DeviceInfo `json:"deviceInfo,omitempty"`
	Payload  Payload     `json:"-"`
}

// Record is the attendance of one identity on one local calendar day.
type Record struct {
	ID               int64      `json:"id"`
	UserID           int64      `json:"userId"`
	EmployeeID       *int64     `json:"employeeId,omitempty"`
	WorkDate         string     `json:"workDate"`
	FirstCheckInTime *time.Time `json:"firstCheckInTime,omitempty"`
	CheckIn          *Punch     `json:"checkIn,omitempty"`
	CheckOut         *Punch     `json:"checkOut,omitempty"`
	TotalHours       float64    `json:"totalHours"`
	Sessions         int        `json:"sessions"`
	Status           string     `json:"status"`
	IsActive         bool       `json:"isActive"`
	Version          int64      `json:"-"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// State is NONE for a nil record, OPEN while a session has no check-out.
func (r *Record) State() State {
	if r == nil || r.CheckIn == nil {
		return StateNone
	}
	if r.CheckOut == nil {
		return StateOpen
	}
	return StateClosed
}

// LastPunchTime is the most recent check-in or check-out instant.
func (r *Record) LastPunchTime() time.Time {
	if r == nil || r.CheckIn == nil {
		return time.Time{}
	}
	if r.CheckOut != nil && r.CheckOut.Time.After(r.CheckIn.Time) {
		return r.CheckOut.Time
	}
	return r.CheckIn.Time
}

func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.CheckIn != nil {
		in := *r.CheckIn
		cp.CheckIn = &in
	}
	if r.CheckOut != nil {
		out := *r.CheckOut
		cp.CheckOut = &out
	}
	return &cp
}

// Day is a local calendar date formatted YYYY-MM-DD.
const DayLayout = "2006-01-02"

func DayOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// ClockOn is the wall-clock time offset from midnight on t's local day,
// built from the offset's hours and minutes so a DST change that day does
// not shift it.
func ClockOn(t time.Time, offset time.Duration) time.Time {
	h := int(offset / time.Hour)
	m := int(offset % time.Hour / time.Minute)
	return time.Date(t.Year(), t.Month(), t.Day(), h, m, 0, 0, t.Location())
}

func ParseDay(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, internal.NewValidationFieldError("date", "date must be in YYYY-MM-DD format", internal.ErrCodeInvalidDate)
	}
	return t, nil
}
