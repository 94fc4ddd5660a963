package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotObject is returned when a frame is valid JSON but not an object.
var ErrNotObject = errors.New("frame is not a json object")

// Envelope is one parsed inbound message. It lives only for the duration of a
// single dispatch.
type Envelope struct {
	Type       string          // Event type key, e.g. "call_status"
	Data       json.RawMessage // Payload handed to listeners
	Timestamp  string          // Server timestamp, empty if not sent
	ReceivedAt time.Time       // Local receive time
}

// wireEnvelope mirrors the JSON shape of an inbound frame.
type wireEnvelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

var nullData = []byte("null")

// ParseEnvelope decodes a raw text frame. If the frame has no "data" field, or
// it is null, the whole object becomes the payload.
func ParseEnvelope(raw []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return Envelope{}, fmt.Errorf("parse envelope: invalid json")
		}
		return Envelope{}, fmt.Errorf("parse envelope: %w", ErrNotObject)
	}

	var w wireEnvelope
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Envelope{}, fmt.Errorf("parse envelope: %w", err)
	}

	data := w.Data
	if len(data) == 0 || bytes.Equal(data, nullData) {
		data = append(json.RawMessage(nil), trimmed...)
	}

	return Envelope{
		Type:      w.Type,
		Data:      data,
		Timestamp: w.Timestamp,
	}, nil
}

// Decode unmarshals an envelope payload into T.
func Decode[T any](data json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}
