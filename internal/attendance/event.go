package attendance

import (
	"encoding/json"
	"time"

	"github.com/frahmantamala/attendance-management/internal/core/events"
	"github.com/google/uuid"
)

// Event is the append-only trace of one successful transition. It is the
// same value that is stored, broadcast to live subscribers and relayed.
type Event struct {
	ID           string          `json:"id"`
	Seq          int64           `json:"seq,omitempty"`
	RecordID     int64           `json:"attendanceId"`
	UserID       int64           `json:"userId"`
	EmployeeID   *int64          `json:"employeeId,omitempty"`
	WorkDate     string          `json:"workDate"`
	Type         EventType       `json:"type"`
	Action       Action          `json:"action"`
	Method       Method          `json:"method"`
	Timestamp    time.Time       `json:"timestamp"`
	CheckInTime  *time.Time      `json:"checkInTime,omitempty"`
	CheckOutTime *time.Time      `json:"checkOutTime,omitempty"`
	TotalHours   float64         `json:"totalHours"`
	Location     *Location       `json:"location,omitempty"`
	Device       *DeviceInfo     `json:"deviceInfo,omitempty"`
	MethodData   json.RawMessage `json:"payload,omitempty"`
}

var _ events.Event = (*Event)(nil)

func (e *Event) EventType() string {
	if e.Type == EventCheckOut {
		return events.EventTypeAttendanceCheckedOut
	}
	return events.EventTypeAttendanceCheckedIn
}

func (e *Event) EventID() string { return e.ID }

func (e *Event) OccurredAt() time.Time { return e.Timestamp }

func (e *Event) Payload() interface{} { return e }

// NewEvent builds the event describing the transition that produced rec.
func NewEvent(rec *Record, d Decision, action Action, punch Punch) (*Event, error) {
	data, err := MarshalPayload(punch.Payload)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		data = nil
	}

	ev := &Event{
		ID:         uuid.NewString(),
		RecordID:   rec.ID,
		UserID:     rec.UserID,
		EmployeeID: rec.EmployeeID,
		WorkDate:   rec.WorkDate,
		Type:       d.Event,
		Action:     action,
		Method:     punch.Method,
		Timestamp:  punch.Time,
		TotalHours: rec.TotalHours,
		Location:   punch.Location,
		Device:     punch.Device,
		MethodData: data,
	}
	if rec.CheckIn != nil {
		t := rec.CheckIn.Time
		ev.CheckInTime = &t
	}
	if d.Event == EventCheckOut && rec.CheckOut != nil {
		t := rec.CheckOut.Time
		ev.CheckOutTime = &t
		ev.Timestamp = t
	}
	return ev, nil
}
