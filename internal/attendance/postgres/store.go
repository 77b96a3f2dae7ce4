package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/frahmantamala/attendance-management/internal"
	"github.com/frahmantamala/attendance-management/internal/attendance"
	attendanceDatamodel "github.com/frahmantamala/attendance-management/internal/core/datamodel/attendance"
	"github.com/frahmantamala/attendance-management/internal/identity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultMaxAttempts = 3

var errStaleRecord = errors.New("attendance record version changed")

// Store persists attendance records and their event log. The gorm handle
// must be opened with TranslateError so unique violations surface as
// gorm.ErrDuplicatedKey.
type Store struct {
	db          *gorm.DB
	locks       *keyedMutex
	maxAttempts int
	logger      *slog.Logger
}

func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{
		db:          db,
		locks:       newKeyedMutex(),
		maxAttempts: defaultMaxAttempts,
		logger:      logger,
	}
}

var _ attendance.Store = (*Store)(nil)

// eventLogLock is the advisory lock key that orders event appends. Holding
// it from nextval until commit makes seq order match commit order, so log
// followers never pass a sequence number that commits later.
const eventLogLock int64 = 0x61747465

// activeKey names the single active record for an identity and day. Linked
// users share their employee's key, since several users may be linked to
// one employee and every one of them matches that employee's record.
func activeKey(id identity.Identity, day string) string {
	if id.EmployeeID != nil {
		return "employee:" + strconv.FormatInt(*id.EmployeeID, 10) + ":" + day
	}
	return "user:" + strconv.FormatInt(id.UserID, 10) + ":" + day
}

func scopeIdentity(q *gorm.DB, id identity.Identity) *gorm.DB {
	if id.EmployeeID != nil {
		return q.Where("(user_id = ? OR employee_id = ?)", id.UserID, *id.EmployeeID)
	}
	return q.Where("user_id = ?", id.UserID)
}

func (s *Store) GetActiveRecord(ctx context.Context, id identity.Identity, day string) (*attendance.Record, error) {
	var row attendanceDatamodel.Record
	q := s.db.WithContext(ctx).Where("work_date = ? AND is_active = ?", day, true)
	err := scopeIdentity(q, id).Order("id ASC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active record: %w", err)
	}
	return toDomainRecord(&row)
}

// UpsertForDay runs mutate against the active record for (id, day) and
// stores the result together with its event in one transaction. Writers
// for the same key are serialized in-process; across processes the row
// lock, the version check and the unique active key catch the loser, which
// is retried against the winner's record.
func (s *Store) UpsertForDay(ctx context.Context, id identity.Identity, day string, mutate attendance.Mutator) (*attendance.Record, *attendance.Event, error) {
	unlock := s.locks.Lock(activeKey(id, day))
	defer unlock()

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		rec, ev, err := s.upsertOnce(ctx, id, day, mutate)
		if err == nil {
			return rec, ev, nil
		}
		if !errors.Is(err, errStaleRecord) && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, err
		}
		lastErr = err
		s.logger.Warn("attendance write lost a race, retrying",
			"user_id", id.UserID,
			"work_date", day,
			"attempt", attempt,
			"error", err)
	}
	return nil, nil, internal.ErrConcurrentUpdate.WithCause(lastErr)
}

func (s *Store) upsertOnce(ctx context.Context, id identity.Identity, day string, mutate attendance.Mutator) (*attendance.Record, *attendance.Event, error) {
	var (
		outRec *attendance.Record
		outEv  *attendance.Event
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("work_date = ? AND is_active = ?", day, true)
		q = scopeIdentity(q, id).Order("id ASC")
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var rows []attendanceDatamodel.Record
		if err := q.Limit(1).Find(&rows).Error; err != nil {
			return fmt.Errorf("load active record: %w", err)
		}

		var current *attendance.Record
		if len(rows) == 1 {
			var err error
			if current, err = toDomainRecord(&rows[0]); err != nil {
				return err
			}
		}

		next, ev, err := mutate(current.Clone())
		if err != nil {
			return err
		}

		now := time.Now()
		if current != nil {
			cols, err := recordColumns(next)
			if err != nil {
				return err
			}
			cols["version"] = current.Version + 1
			cols["updated_at"] = now

			res := tx.Model(&attendanceDatamodel.Record{}).
				Where("id = ? AND version = ?", current.ID, current.Version).
				Updates(cols)
			if res.Error != nil {
				return fmt.Errorf("update record %d: %w", current.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				return errStaleRecord
			}
			next.ID = current.ID
			next.Version = current.Version + 1
			next.UpdatedAt = now
		} else {
			row, err := toModelRecord(next)
			if err != nil {
				return err
			}
			key := activeKey(id, day)
			row.ActiveKey = &key
			row.Version = 1
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("create record: %w", err)
			}
			next.ID = row.ID
			next.Version = row.Version
			next.IsActive = true
			next.CreatedAt = row.CreatedAt
			next.UpdatedAt = row.UpdatedAt
		}

		ev.RecordID = next.ID
		evRow, err := toModelEvent(ev)
		if err != nil {
			return err
		}
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", eventLogLock).Error; err != nil {
				return fmt.Errorf("lock event log: %w", err)
			}
		}
		if err := tx.Create(evRow).Error; err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		ev.Seq = evRow.Seq

		outRec, outEv = next, ev
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return outRec, outEv, nil
}

// UpsertDeviceLastSeen records the latest punch seen from a device.
func (s *Store) UpsertDeviceLastSeen(ctx context.Context, seen attendance.DeviceSeen) error {
	row := attendanceDatamodel.Device{
		DeviceID:   seen.Device.DeviceID,
		UserID:     seen.UserID,
		EmployeeID: seen.EmployeeID,
		Platform:   seen.Device.Platform,
		Model:      seen.Device.Model,
		AppVersion: seen.Device.AppVersion,
		LastAction: string(seen.Action),
		LastSeenAt: seen.SeenAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert device %s: %w", seen.Device.DeviceID, err)
	}
	return nil
}

// ListRecords returns active records between from and to inclusive, newest
// day first, and the total count. A limit of zero returns every row.
func (s *Store) ListRecords(ctx context.Context, id identity.Identity, from, to string, limit, offset int) ([]*attendance.Record, int64, error) {
	q := s.db.WithContext(ctx).Model(&attendanceDatamodel.Record{}).
		Where("work_date >= ? AND work_date <= ? AND is_active = ?", from, to, true)
	q = scopeIdentity(q, id)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	var rows []*attendanceDatamodel.Record
	q = q.Order("work_date DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}

	out := make([]*attendance.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := toDomainRecord(row)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, nil
}

func (s *Store) ListEvents(ctx context.Context, recordID int64) ([]*attendance.Event, error) {
	var rows []*attendanceDatamodel.Event
	if err := s.db.WithContext(ctx).Where("record_id = ?", recordID).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list events for record %d: %w", recordID, err)
	}
	return toDomainEvents(rows)
}

// ListEventsAfter reads the event log in append order starting after seq.
func (s *Store) ListEventsAfter(ctx context.Context, seq int64, limit int) ([]*attendance.Event, error) {
	var rows []*attendanceDatamodel.Event
	q := s.db.WithContext(ctx).Where("seq > ?", seq).Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list events after %d: %w", seq, err)
	}
	return toDomainEvents(rows)
}

// LatestEventSeq is the current head of the event log, 0 when empty.
func (s *Store) LatestEventSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.WithContext(ctx).Model(&attendanceDatamodel.Event{}).Select("COALESCE(MAX(seq), 0)").Scan(&seq).Error
	if err != nil {
		return 0, fmt.Errorf("latest event seq: %w", err)
	}
	return seq, nil
}
