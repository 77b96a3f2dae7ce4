package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/attendance-management/internal"
	"github.com/frahmantamala/attendance-management/internal/core/events"
	"github.com/frahmantamala/attendance-management/internal/identity"
)

// Mutator receives the current active record for the day (nil when there is
// none) and returns the record to persist with the event describing the
// change. It may run more than once when a write loses a race.
type Mutator func(current *Record) (*Record, *Event, error)

// Store is the only writer of attendance records and events.
type Store interface {
	GetActiveRecord(ctx context.Context, id identity.Identity, day string) (*Record, error)
	UpsertForDay(ctx context.Context, id identity.Identity, day string, mutate Mutator) (*Record, *Event, error)
	UpsertDeviceLastSeen(ctx context.Context, seen DeviceSeen) error
	ListRecords(ctx context.Context, id identity.Identity, from, to string, limit, offset int) ([]*Record, int64, error)
	ListEvents(ctx context.Context, recordID int64) ([]*Event, error)
}

type Resolver interface {
	ResolveUser(ctx context.Context, userID int64) (identity.Identity, error)
	ResolveBarcode(ctx context.Context, code string) (identity.Identity, error)
}

// Publisher hands committed events to live subscribers.
type Publisher interface {
	PublishSync(ctx context.Context, event events.Event) error
}

// DeviceSeen is the last-seen upsert for the device that made a punch.
type DeviceSeen struct {
	Device     DeviceInfo
	UserID     int64
	EmployeeID *int64
	Action     Action
	SeenAt     time.Time
}

type Options struct {
	Location  *time.Location
	LateAfter time.Duration
	// ScanDebounce rejects a barcode punch this soon after the previous
	// punch of the same record. Zero disables it.
	ScanDebounce time.Duration
	Now          func() time.Time
}

type Service struct {
	store     Store
	resolver  Resolver
	publisher Publisher
	rules     Rules
	debounce  time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func NewService(store Store, resolver Resolver, publisher Publisher, opts Options, logger *slog.Logger) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{
		store:     store,
		resolver:  resolver,
		publisher: publisher,
		rules:     Rules{Location: opts.Location, LateAfter: opts.LateAfter},
		debounce:  opts.ScanDebounce,
		now:       opts.Now,
		logger:    logger,
	}
}

func (s *Service) CheckIn(ctx context.Context, userID int64, c Capture) (*TransitionResult, error) {
	return s.transitionForUser(ctx, userID, ActionCheckIn, c)
}

func (s *Service) CheckOut(ctx context.Context, userID int64, c Capture) (*TransitionResult, error) {
	return s.transitionForUser(ctx, userID, ActionCheckOut, c)
}

// BarcodeToggle resolves the scanned code to its linked user and flips the
// day record: NONE/CLOSED open a session, OPEN closes it.
func (s *Service) BarcodeToggle(ctx context.Context, code string, c Capture) (*TransitionResult, error) {
	if c.Method == "" {
		c.Method = MethodBarcode
	}
	if c.Payload == nil {
		c.Payload = BarcodePayload{Code: code}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Method != MethodBarcode {
		return nil, internal.ErrInvalidMethod
	}

	id, err := s.resolver.ResolveBarcode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, id, ActionBarcodeToggle, c)
}

func (s *Service) transitionForUser(ctx context.Context, userID int64, action Action, c Capture) (*TransitionResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	id, err := s.resolver.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, id, action, c)
}

func (s *Service) transition(ctx context.Context, id identity.Identity, action Action, c Capture) (*TransitionResult, error) {
	now := s.now()
	day := DayOf(now, s.rules.location())
	punch := Punch{
		Time:     now,
		Method:   c.Method,
		Location: c.Location,
		Device:   c.Device,
		Payload:  c.Payload,
	}

	var decision Decision
	rec, ev, err := s.store.UpsertForDay(ctx, id, day, func(current *Record) (*Record, *Event, error) {
		d, err := Decide(current.State(), action, c.Method)
		if err != nil {
			return nil, nil, err
		}
		if s.isDuplicateScan(current, c.Method, now) {
			return nil, nil, internal.ErrDuplicateScan
		}

		next, _ := Apply(current, d, punch, s.rules)
		if current == nil {
			next.UserID = id.UserID
			next.WorkDate = day
		}
		if next.EmployeeID == nil {
			next.EmployeeID = id.EmployeeID
		}

		ev, err := NewEvent(next, d, action, punch)
		if err != nil {
			return nil, nil, err
		}
		decision = d
		return next, ev, nil
	})
	if err != nil {
		if _, ok := internal.IsAppError(err); ok {
			s.logger.Info("attendance transition rejected", "user_id", id.UserID, "action", action, "method", c.Method, "error", err)
			return nil, err
		}
		s.logger.Error("failed to record attendance", "user_id", id.UserID, "action", action, "error", err)
		return nil, internal.NewInternalError("failed to record attendance", err)
	}

	result := &TransitionResult{Record: rec, Event: ev, Decision: decision}
	result.Effects = s.afterCommit(ctx, id, action, ev, c.Device)

	s.logger.Info("attendance transition recorded",
		"user_id", id.UserID,
		"work_date", day,
		"action", action,
		"from", decision.From,
		"to", decision.To,
		"total_hours", rec.TotalHours)
	return result, nil
}

func (s *Service) isDuplicateScan(current *Record, method Method, now time.Time) bool {
	if s.debounce <= 0 || method != MethodBarcode || current.State() == StateNone {
		return false
	}
	return now.Sub(current.LastPunchTime()) < s.debounce
}

// afterCommit runs the best-effort effects. They outlive a cancelled
// request since the transition is already committed.
func (s *Service) afterCommit(ctx context.Context, id identity.Identity, action Action, ev *Event, device *DeviceInfo) Effects {
	ctx = context.WithoutCancel(ctx)
	var eff Effects

	if s.publisher != nil {
		if err := s.publisher.PublishSync(ctx, ev); err != nil {
			eff.Publish = err
			s.logger.Warn("failed to publish attendance event", "event_id", ev.ID, "error", err)
		}
	}

	if device != nil && device.DeviceID != "" {
		err := s.store.UpsertDeviceLastSeen(ctx, DeviceSeen{
			Device:     *device,
			UserID:     id.UserID,
			EmployeeID: id.EmployeeID,
			Action:     action,
			SeenAt:     ev.Timestamp,
		})
		if err != nil {
			eff.Device = err
			s.logger.Warn("failed to update device last seen", "device_id", device.DeviceID, "error", err)
		}
	}
	return eff
}

// TodayView is the caller's state for the current local day.
type TodayView struct {
	Date   string   `json:"date"`
	State  State    `json:"state"`
	Record *Record  `json:"record,omitempty"`
	Events []*Event `json:"events"`
}

func (s *Service) Today(ctx context.Context, userID int64) (*TodayView, error) {
	id, err := s.resolver.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	day := DayOf(s.now(), s.rules.location())
	rec, err := s.store.GetActiveRecord(ctx, id, day)
	if err != nil {
		s.logger.Error("failed to get today's record", "user_id", userID, "error", err)
		return nil, internal.NewInternalError("failed to get today's attendance", err)
	}

	view := &TodayView{Date: day, State: rec.State(), Record: rec, Events: []*Event{}}
	if rec != nil {
		evs, err := s.store.ListEvents(ctx, rec.ID)
		if err != nil {
			s.logger.Error("failed to list record events", "record_id", rec.ID, "error", err)
			return nil, internal.NewInternalError("failed to get today's attendance", err)
		}
		view.Events = evs
	}
	return view, nil
}

type HistoryPage struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	Total   int64     `json:"total"`
	Limit   int       `json:"limit"`
	Offset  int       `json:"offset"`
	Records []*Record `json:"records"`
}

const defaultHistoryDays = 30

// History lists the caller's records between from and to inclusive, newest
// first. Empty bounds default to the last 30 days.
func (s *Service) History(ctx context.Context, userID int64, from, to string, limit, offset int) (*HistoryPage, error) {
	from, to, err := s.dayRange(from, to)
	if err != nil {
		return nil, err
	}
	id, err := s.resolver.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, total, err := s.store.ListRecords(ctx, id, from, to, limit, offset)
	if err != nil {
		s.logger.Error("failed to list attendance history", "user_id", userID, "error", err)
		return nil, internal.NewInternalError("failed to get attendance history", err)
	}
	if records == nil {
		records = []*Record{}
	}
	return &HistoryPage{From: from, To: to, Total: total, Limit: limit, Offset: offset, Records: records}, nil
}

type Stats struct {
	From         string  `json:"from"`
	To           string  `json:"to"`
	DaysPresent  int     `json:"daysPresent"`
	LateDays     int     `json:"lateDays"`
	OpenDays     int     `json:"openDays"`
	Sessions     int     `json:"sessions"`
	TotalHours   float64 `json:"totalHours"`
	AverageHours float64 `json:"averageHours"`
}

func (s *Service) Stats(ctx context.Context, userID int64, from, to string) (*Stats, error) {
	from, to, err := s.dayRange(from, to)
	if err != nil {
		return nil, err
	}
	id, err := s.resolver.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, _, err := s.store.ListRecords(ctx, id, from, to, 0, 0)
	if err != nil {
		s.logger.Error("failed to list records for stats", "user_id", userID, "error", err)
		return nil, internal.NewInternalError("failed to get attendance stats", err)
	}

	st := &Stats{From: from, To: to}
	for _, rec := range records {
		if rec.CheckIn == nil {
			continue
		}
		st.DaysPresent++
		st.Sessions += rec.Sessions
		st.TotalHours += rec.TotalHours
		if rec.Status == StatusLate {
			st.LateDays++
		}
		if rec.State() == StateOpen {
			st.OpenDays++
		}
	}
	st.TotalHours = RoundHours(st.TotalHours)
	if st.DaysPresent > 0 {
		st.AverageHours = RoundHours(st.TotalHours / float64(st.DaysPresent))
	}
	return st, nil
}

func (s *Service) dayRange(from, to string) (string, string, error) {
	loc := s.rules.location()
	end := s.now().In(loc)
	if to != "" {
		t, err := ParseDay(to, loc)
		if err != nil {
			return "", "", err
		}
		end = t
	}
	start := end.AddDate(0, 0, -defaultHistoryDays+1)
	if from != "" {
		t, err := ParseDay(from, loc)
		if err != nil {
			return "", "", err
		}
		start = t
	}
	if start.After(end) {
		return "", "", internal.NewValidationError(fmt.Sprintf("from %s is after to %s", start.Format(DayLayout), end.Format(DayLayout)), internal.ErrCodeInvalidRange)
	}
	return start.Format(DayLayout), end.Format(DayLayout), nil
}
