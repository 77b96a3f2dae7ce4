package postgres

import (
	"context"
	"fmt"
	"time"

	attendanceDatamodel "github.com/frahmantamala/attendance-management/internal/core/datamodel/attendance"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CursorStore persists how far each named event-log follower has read.
type CursorStore struct {
	db *gorm.DB
}

func NewCursorStore(db *gorm.DB) *CursorStore {
	return &CursorStore{db: db}
}

// Load returns the saved position, or 0 for a follower that never saved one.
func (c *CursorStore) Load(ctx context.Context, name string) (int64, error) {
	var rows []attendanceDatamodel.Cursor
	if err := c.db.WithContext(ctx).Where("name = ?", name).Limit(1).Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("load cursor %s: %w", name, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].LastSeq, nil
}

func (c *CursorStore) Save(ctx context.Context, name string, seq int64) error {
	row := attendanceDatamodel.Cursor{Name: name, LastSeq: seq, UpdatedAt: time.Now()}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seq", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save cursor %s: %w", name, err)
	}
	return nil
}
