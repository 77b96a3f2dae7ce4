package events

const (
	EventTypeAttendanceCheckedIn  = "attendance.check-in"
	EventTypeAttendanceCheckedOut = "attendance.check-out"
)

// AttendanceEventTypes lists every event type emitted by attendance transitions.
var AttendanceEventTypes = []string{
	EventTypeAttendanceCheckedIn,
	EventTypeAttendanceCheckedOut,
}
