package attendance

import (
	"encoding/json"
	"fmt"

	"github.com/frahmantamala/attendance-management/internal"
)

// Payload is the method-specific capture data. Biometric payloads are
// stored opaquely and never verified here.
type Payload interface {
	Method() Method
}

type FacePayload struct {
	Image      string    `json:"image,omitempty"`
	Descriptor []float64 `json:"descriptor,omitempty"`
}

func (FacePayload) Method() Method { return MethodFace }

type FingerprintPayload struct {
	Template    string `json:"template,omitempty"`
	FingerIndex int    `json:"fingerIndex,omitempty"`
}

func (FingerprintPayload) Method() Method { return MethodFingerprint }

type BarcodePayload struct {
	Code string `json:"code"`
}

func (BarcodePayload) Method() Method { return MethodBarcode }

type ManualPayload struct {
	Reason     string `json:"reason,omitempty"`
	RecordedBy int64  `json:"recordedBy,omitempty"`
}

func (ManualPayload) Method() Method { return MethodManual }

type payloadEnvelope struct {
	Method Method          `json:"method"`
	Data   json.RawMessage `json:"data"`
}

// MarshalPayload encodes p with its method tag. A nil payload encodes as null.
func MarshalPayload(p Payload) (json.RawMessage, error) {
	if p == nil {
		return json.RawMessage("null"), nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.Method(), err)
	}
	return json.Marshal(payloadEnvelope{Method: p.Method(), Data: data})
}

// UnmarshalPayload decodes the output of MarshalPayload.
func UnmarshalPayload(raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var env payloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}
	return decodePayload(env.Method, env.Data)
}

func decodePayload(method Method, data json.RawMessage) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch method {
	case MethodFace:
		var v FacePayload
		err = json.Unmarshal(data, &v)
		p = v
	case MethodFingerprint:
		var v FingerprintPayload
		err = json.Unmarshal(data, &v)
		p = v
	case MethodBarcode:
		var v BarcodePayload
		err = json.Unmarshal(data, &v)
		p = v
	case MethodManual:
		var v ManualPayload
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, internal.ErrInvalidMethod
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", method, err)
	}
	return p, nil
}
