// Package broadcast fans timer lifecycle events out to every other
// listener sharing a channel name. Delivery is best effort: no
// acknowledgement and no ordering beyond per-publisher FIFO.
package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned when publishing on a closed channel.
var ErrClosed = errors.New("broadcast channel closed")

// Type names a lifecycle event.
type Type string

const (
	TypeTimerStart  Type = "timer-start"
	TypeTimerUpdate Type = "timer-update"
	TypeTimerStop   Type = "timer-stop"
	TypeSessionEnd  Type = "session-end"
)

// Message is the cross-instance payload. Timestamps are unix milliseconds.
type Message struct {
	Type      Type   `json:"type"`
	Source    string `json:"source"`
	TimeLeft  *int   `json:"timeLeft,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Duration  *int   `json:"duration,omitempty"`
	StartTime *int64 `json:"startTime,omitempty"`
}

// At returns the message timestamp.
func (msg Message) At() time.Time {
	return time.UnixMilli(msg.Timestamp)
}

// Started returns the reported session start and whether it was present.
func (msg Message) Started() (time.Time, bool) {
	if msg.StartTime == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*msg.StartTime), true
}

// Validate rejects messages that cannot be acted upon.
func (msg Message) Validate() error {
	switch msg.Type {
	case TypeTimerStart, TypeTimerUpdate, TypeTimerStop, TypeSessionEnd:
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	if msg.Timestamp <= 0 {
		return errors.New("missing timestamp")
	}
	return nil
}

// Encode marshals msg to JSON.
func Encode(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode broadcast message: %w", err)
	}
	return payload, nil
}

// Decode unmarshals and validates a JSON payload.
func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, fmt.Errorf("decode broadcast message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, fmt.Errorf("decode broadcast message: %w", err)
	}
	return msg, nil
}

// Int returns a pointer to value, for the optional message fields.
func Int(value int) *int {
	return &value
}

// Millis returns a pointer to the unix millisecond form of at.
func Millis(at time.Time) *int64 {
	value := at.UnixMilli()
	return &value
}
