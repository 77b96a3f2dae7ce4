package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/frahmantamala/attendance-management/internal/attendance"
	attendanceDatamodel "github.com/frahmantamala/attendance-management/internal/core/datamodel/attendance"
	"gorm.io/datatypes"
)

// punchMeta is the jsonb stored next to each punch and event.
type punchMeta struct {
	Location *attendance.Location   `json:"location,omitempty"`
	Device   *attendance.DeviceInfo `json:"deviceInfo,omitempty"`
	Payload  json.RawMessage        `json:"payload,omitempty"`
}

func encodeMeta(loc *attendance.Location, dev *attendance.DeviceInfo, payload attendance.Payload) (datatypes.JSON, error) {
	meta := punchMeta{Location: loc, Device: dev}
	if payload != nil {
		raw, err := attendance.MarshalPayload(payload)
		if err != nil {
			return nil, err
		}
		meta.Payload = raw
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode punch meta: %w", err)
	}
	return datatypes.JSON(b), nil
}

func decodeMeta(raw datatypes.JSON) (punchMeta, attendance.Payload, error) {
	var meta punchMeta
	if len(raw) == 0 {
		return meta, nil, nil
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, nil, fmt.Errorf("decode punch meta: %w", err)
	}
	payload, err := attendance.UnmarshalPayload(meta.Payload)
	if err != nil {
		return meta, nil, err
	}
	return meta, payload, nil
}

func toPunch(t *time.Time, method string, raw datatypes.JSON) (*attendance.Punch, error) {
	if t == nil {
		return nil, nil
	}
	meta, payload, err := decodeMeta(raw)
	if err != nil {
		return nil, err
	}
	return &attendance.Punch{
		Time:     *t,
		Method:   attendance.Method(method),
		Location: meta.Location,
		Device:   meta.Device,
		Payload:  payload,
	}, nil
}

func toDomainRecord(m *attendanceDatamodel.Record) (*attendance.Record, error) {
	checkIn, err := toPunch(m.CheckInTime, m.CheckInMethod, m.CheckInMeta)
	if err != nil {
		return nil, fmt.Errorf("record %d check-in: %w", m.ID, err)
	}
	checkOut, err := toPunch(m.CheckOutTime, m.CheckOutMethod, m.CheckOutMeta)
	if err != nil {
		return nil, fmt.Errorf("record %d check-out: %w", m.ID, err)
	}
	return &attendance.Record{
		ID:               m.ID,
		UserID:           m.UserID,
		EmployeeID:       m.EmployeeID,
		WorkDate:         m.WorkDate,
		FirstCheckInTime: m.FirstCheckInTime,
		CheckIn:          checkIn,
		CheckOut:         checkOut,
		TotalHours:       m.TotalHours,
		Sessions:         m.Sessions,
		Status:           m.Status,
		IsActive:         m.IsActive,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}, nil
}

// recordColumns is the full column set written on every transition.
func recordColumns(r *attendance.Record) (map[string]interface{}, error) {
	cols := map[string]interface{}{
		"employee_id":         r.EmployeeID,
		"first_check_in_time": r.FirstCheckInTime,
		"check_in_time":       nil,
		"check_in_method":     "",
		"check_in_meta":       nil,
		"check_out_time":      nil,
		"check_out_method":    "",
		"check_out_meta":      nil,
		"total_hours":         r.TotalHours,
		"sessions":            r.Sessions,
		"status":              r.Status,
	}
	if p := r.CheckIn; p != nil {
		meta, err := encodeMeta(p.Location, p.Device, p.Payload)
		if err != nil {
			return nil, err
		}
		cols["check_in_time"] = p.Time
		cols["check_in_method"] = string(p.Method)
		cols["check_in_meta"] = meta
	}
	if p := r.CheckOut; p != nil {
		meta, err := encodeMeta(p.Location, p.Device, p.Payload)
		if err != nil {
			return nil, err
		}
		cols["check_out_time"] = p.Time
		cols["check_out_method"] = string(p.Method)
		cols["check_out_meta"] = meta
	}
	return cols, nil
}

func toModelRecord(r *attendance.Record) (*attendanceDatamodel.Record, error) {
	m := &attendanceDatamodel.Record{
		UserID:           r.UserID,
		EmployeeID:       r.EmployeeID,
		WorkDate:         r.WorkDate,
		FirstCheckInTime: r.FirstCheckInTime,
		TotalHours:       r.TotalHours,
		Sessions:         r.Sessions,
		Status:           r.Status,
		IsActive:         true,
	}
	if p := r.CheckIn; p != nil {
		meta, err := encodeMeta(p.Location, p.Device, p.Payload)
		if err != nil {
			return nil, err
		}
		t := p.Time
		m.CheckInTime = &t
		m.CheckInMethod = string(p.Method)
		m.CheckInMeta = meta
	}
	if p := r.CheckOut; p != nil {
		meta, err := encodeMeta(p.Location, p.Device, p.Payload)
		if err != nil {
			return nil, err
		}
		t := p.Time
		m.CheckOutTime = &t
		m.CheckOutMethod = string(p.Method)
		m.CheckOutMeta = meta
	}
	return m, nil
}

func toModelEvent(e *attendance.Event) (*attendanceDatamodel.Event, error) {
	meta, err := json.Marshal(punchMeta{Location: e.Location, Device: e.Device, Payload: e.MethodData})
	if err != nil {
		return nil, fmt.Errorf("encode event meta: %w", err)
	}
	return &attendanceDatamodel.Event{
		EventID:      e.ID,
		RecordID:     e.RecordID,
		UserID:       e.UserID,
		EmployeeID:   e.EmployeeID,
		WorkDate:     e.WorkDate,
		EventType:    string(e.Type),
		Action:       string(e.Action),
		Method:       string(e.Method),
		OccurredAt:   e.Timestamp,
		CheckInTime:  e.CheckInTime,
		CheckOutTime: e.CheckOutTime,
		TotalHours:   e.TotalHours,
		Meta:         datatypes.JSON(meta),
	}, nil
}

func toDomainEvent(m *attendanceDatamodel.Event) (*attendance.Event, error) {
	var meta punchMeta
	if len(m.Meta) > 0 {
		if err := json.Unmarshal(m.Meta, &meta); err != nil {
			return nil, fmt.Errorf("event %s meta: %w", m.EventID, err)
		}
	}
	return &attendance.Event{
		ID:           m.EventID,
		Seq:          m.Seq,
		RecordID:     m.RecordID,
		UserID:       m.UserID,
		EmployeeID:   m.EmployeeID,
		WorkDate:     m.WorkDate,
		Type:         attendance.EventType(m.EventType),
		Action:       attendance.Action(m.Action),
		Method:       attendance.Method(m.Method),
		Timestamp:    m.OccurredAt,
		CheckInTime:  m.CheckInTime,
		CheckOutTime: m.CheckOutTime,
		TotalHours:   m.TotalHours,
		Location:     meta.Location,
		Device:       meta.Device,
		MethodData:   meta.Payload,
	}, nil
}

func toDomainEvents(rows []*attendanceDatamodel.Event) ([]*attendance.Event, error) {
	out := make([]*attendance.Event, 0, len(rows))
	for _, row := range rows {
		ev, err := toDomainEvent(row)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
