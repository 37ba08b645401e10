package heartbeat

import (
	"encoding/json"
	"fmt"

	"github.com/gitxandert/process-monitor/types"
)

// Message is the payload stored under a process's heartbeat key.
//
// The monitor only needs the key update itself as evidence; the payload
// carries enough context to debug a misbehaving publisher from the bucket
// contents alone (nats kv get) without correlating logs.
type Message struct {
	// ProcessID identifies the publishing process. It must match the key
	// the message is stored under.
	ProcessID string `json:"process_id"`

	// SentAt is the publisher's wall-clock send time in Unix nanoseconds.
	SentAt int64 `json:"sent_at"`

	// Seq increments by one per publish, starting at 1. Gaps indicate
	// dropped publishes, resets indicate a process restart.
	Seq uint64 `json:"seq"`

	// Meta carries optional publisher-defined labels (host, version).
	Meta map[string]string `json:"meta,omitempty"`
}

// Validate checks that the message is well-formed.
func (m *Message) Validate() error {
	if m.ProcessID == "" {
		return types.ErrEmptyProcessID
	}
	if m.Seq == 0 {
		return fmt.Errorf("heartbeat message for %q has zero sequence", m.ProcessID)
	}
	return nil
}

// Encode serializes the message for storage in the heartbeat bucket.
func (m *Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode heartbeat message: %w", err)
	}
	return data, nil
}

// DecodeMessage parses a heartbeat bucket entry value.
//
// Returns an error if the payload is not valid JSON or fails Validate.
// Watchers treat a decode failure as evidence anyway (the key was written,
// so the process is alive) but log it for operator attention.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode heartbeat message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
