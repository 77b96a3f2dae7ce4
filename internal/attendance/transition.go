package attendance

import (
	"math"
	"time"

	"github.com/frahmantamala/attendance-management/internal"
)

// Decision is the outcome of the toggle table for one request.
type Decision struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	Event  EventType `json:"event"`
	Reopen bool      `json:"reopen,omitempty"`
}

var closeSession = Decision{From: StateOpen, To: StateClosed, Event: EventCheckOut}

func openSession(from State) Decision {
	return Decision{From: from, To: StateOpen, Event: EventCheckIn, Reopen: from == StateClosed}
}

// Decide applies the toggle table. A barcode check-in behaves like a
// barcode-toggle. Open sessions may only be closed by check-out or barcode.
func Decide(current State, action Action, method Method) (Decision, error) {
	if !method.Valid() {
		return Decision{}, internal.ErrInvalidMethod
	}

	if action == ActionCheckIn && method == MethodBarcode {
		action = ActionBarcodeToggle
	}

	switch action {
	case ActionCheckIn:
		switch current {
		case StateNone:
			return openSession(current), nil
		case StateOpen:
			return Decision{}, internal.ErrCheckoutRequiresBarcode
		case StateClosed:
			return Decision{}, internal.ErrAlreadyCheckedOutToday
		}
	case ActionCheckOut:
		switch current {
		case StateNone:
			return Decision{}, internal.ErrNoCheckInFound
		case StateOpen:
			return closeSession, nil
		case StateClosed:
			return Decision{}, internal.ErrAlreadyCheckedOutToday
		}
	case ActionBarcodeToggle:
		switch current {
		case StateNone, StateClosed:
			return openSession(current), nil
		case StateOpen:
			return closeSession, nil
		}
	}
	return Decision{}, internal.NewValidationError("unsupported attendance action "+string(action), internal.ErrCodeValidationFailed)
}

// Rules carry the site policy needed to apply a decision.
type Rules struct {
	Location *time.Location
	// LateAfter is the local clock time, as hours and minutes past
	// midnight, after which a first check-in is late. Zero disables late
	// marking.
	LateAfter time.Duration
}

func (r Rules) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

// StatusFor returns the status of a day whose first check-in is at t.
func (r Rules) StatusFor(t time.Time) string {
	if r.LateAfter <= 0 {
		return StatusPresent
	}
	local := t.In(r.location())
	if local.After(ClockOn(local, r.LateAfter)) {
		return StatusLate
	}
	return StatusPresent
}

// Apply returns the record after d, with punch as the new check-in or
// check-out, and the hours added by this transition. current is not
// modified. A new record has no identity or day; the caller sets them.
func Apply(current *Record, d Decision, punch Punch, rules Rules) (*Record, float64) {
	next := current.Clone()
	if next == nil {
		next = &Record{IsActive: true}
	}

	switch {
	case d.To == StateOpen && d.From == StateNone:
		first := punch.Time
		next.CheckIn = &punch
		next.CheckOut = nil
		next.FirstCheckInTime = &first
		next.Sessions = 1
		next.Status = rules.StatusFor(punch.Time)
		return next, 0

	case d.To == StateOpen:
		next.CheckIn = &punch
		next.CheckOut = nil
		next.Sessions++
		if next.FirstCheckInTime == nil {
			first := punch.Time
			next.FirstCheckInTime = &first
		}
		return next, 0

	default:
		out := punch
		if out.Time.Before(next.CheckIn.Time) {
			out.Time = next.CheckIn.Time
		}
		delta := HoursBetween(next.CheckIn.Time, out.Time)
		next.CheckOut = &out
		next.TotalHours = RoundHours(next.TotalHours + delta)
		return next, delta
	}
}

// HoursBetween is max(0, out-in) in hours, rounded to two decimals.
func HoursBetween(in, out time.Time) float64 {
	h := out.Sub(in).Hours()
	if h < 0 {
		return 0
	}
	return RoundHours(h)
}

func RoundHours(h float64) float64 {
	return math.Round(h*100) / 100
}
