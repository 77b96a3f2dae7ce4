package attendance

import (
	"time"

	"github.com/frahmantamala/attendance-management/internal"
	"github.com/frahmantamala/attendance-management/internal/core/common/validation"
)

// PunchRequest is the body of check-in and check-out. At most one of the
// method payloads may be present and it must match Method.
type PunchRequest struct {
	Method          string              `json:"method" validate:"required"`
	Location        *Location           `json:"location,omitempty"`
	DeviceInfo      *DeviceInfo         `json:"deviceInfo,omitempty"`
	FaceData        *FacePayload        `json:"faceData,omitempty"`
	FingerprintData *FingerprintPayload `json:"fingerprintData,omitempty"`
	BarcodeData     *BarcodePayload     `json:"barcodeData,omitempty"`
	ManualData      *ManualPayload      `json:"manualData,omitempty"`
}

func (r *PunchRequest) Validate() *internal.AppError {
	return validation.Struct(r)
}

// ToCapture converts the request into a Capture. The method itself is
// checked here so an unknown method never reaches the store.
func (r *PunchRequest) ToCapture() (Capture, error) {
	method, err := ParseMethod(r.Method)
	if err != nil {
		return Capture{}, err
	}

	var payloads []Payload
	if r.FaceData != nil {
		payloads = append(payloads, *r.FaceData)
	}
	if r.FingerprintData != nil {
		payloads = append(payloads, *r.FingerprintData)
	}
	if r.BarcodeData != nil {
		payloads = append(payloads, *r.BarcodeData)
	}
	if r.ManualData != nil {
		payloads = append(payloads, *r.ManualData)
	}
	if len(payloads) > 1 {
		return Capture{}, internal.NewValidationFieldError("payload", "only one method payload may be sent", internal.ErrCodeInvalidPayload)
	}

	c := Capture{Method: method, Location: r.Location, Device: r.DeviceInfo}
	if len(payloads) == 1 {
		c.Payload = payloads[0]
	}
	return c, c.Validate()
}

// BarcodeRequest is the body of the barcode toggle endpoints.
type BarcodeRequest struct {
	Code       string      `json:"code" validate:"required,max=128"`
	Location   *Location   `json:"location,omitempty"`
	DeviceInfo *DeviceInfo `json:"deviceInfo,omitempty"`
}

func (r *BarcodeRequest) Validate() *internal.AppError {
	return validation.Struct(r)
}

func (r *BarcodeRequest) ToCapture() Capture {
	return Capture{
		Method:   MethodBarcode,
		Payload:  BarcodePayload{Code: r.Code},
		Location: r.Location,
		Device:   r.DeviceInfo,
	}
}

const (
	ResponseCheckedIn  = "checked-in"
	ResponseCheckedOut = "checked-out"
)

type TransitionResponse struct {
	AttendanceID int64      `json:"attendanceId"`
	WorkDate     string     `json:"workDate"`
	Status       string     `json:"status"`
	Method       Method     `json:"method"`
	CheckInTime  *time.Time `json:"checkInTime,omitempty"`
	CheckOutTime *time.Time `json:"checkOutTime,omitempty"`
	TotalHours   float64    `json:"totalHours"`
	Sessions     int        `json:"sessions"`
	RecordStatus string     `json:"recordStatus"`
	EventID      string     `json:"eventId"`
}

func (res *TransitionResult) ToResponse() TransitionResponse {
	rec := res.Record
	out := TransitionResponse{
		AttendanceID: rec.ID,
		WorkDate:     rec.WorkDate,
		Status:       ResponseCheckedIn,
		Method:       res.Event.Method,
		TotalHours:   rec.TotalHours,
		Sessions:     rec.Sessions,
		RecordStatus: rec.Status,
		EventID:      res.Event.ID,
	}
	if res.Decision.To == StateClosed {
		out.Status = ResponseCheckedOut
	}
	if rec.CheckIn != nil {
		t := rec.CheckIn.Time
		out.CheckInTime = &t
	}
	if rec.CheckOut != nil {
		t := rec.CheckOut.Time
		out.CheckOutTime = &t
	}
	return out
}

func (res *TransitionResult) Message() string {
	switch {
	case res.Decision.To == StateClosed:
		return "Checked out successfully"
	case res.Decision.Reopen:
		return "New session started"
	default:
		return "Checked in successfully"
	}
}
