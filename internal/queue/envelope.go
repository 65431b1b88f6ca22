package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Envelope wraps a payload with routing metadata. On the wire it is a
// snappy-compressed protobuf Struct whose payload field carries the JSON
// encoded body.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into a fresh envelope
func NewEnvelope(msgType string, payload interface{}) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	return &Envelope{
		ID:        uuid.New().String(),
		Type:      msgType,
		CreatedAt: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// Encode serializes and compresses the envelope
func (e *Envelope) Encode() ([]byte, error) {
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":         structpb.NewStringValue(e.ID),
		"type":       structpb.NewStringValue(e.Type),
		"created_at": structpb.NewStringValue(e.CreatedAt.Format(time.RFC3339Nano)),
		"payload":    structpb.NewStringValue(string(e.Payload)),
	}}
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return snappy.Encode(nil, data), nil
}

// Decode unmarshals the payload into v
func (e *Envelope) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", e.Type, err)
	}
	return nil
}

// DecodeEnvelope reverses Encode
func DecodeEnvelope(data []byte) (*Envelope, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress envelope: %w", err)
	}
	var msg structpb.Struct
	if err := proto.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	field := func(name string) string {
		return msg.GetFields()[name].GetStringValue()
	}
	env := &Envelope{
		ID:      field("id"),
		Type:    field("type"),
		Payload: json.RawMessage(field("payload")),
	}
	if env.ID == "" {
		return nil, fmt.Errorf("envelope has no id")
	}
	if ts := field("created_at"); ts != "" {
		if env.CreatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("invalid envelope timestamp %q: %w", ts, err)
		}
	}
	return env, nil
}
