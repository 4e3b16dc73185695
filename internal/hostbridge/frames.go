package hostbridge

import (
	"studytimer/internal/core/countdown"
)

// Command types accepted from hosts.
const (
	CommandStart            = "start"
	CommandStop             = "stop"
	CommandSync             = "sync"
	CommandVisibilityChange = "visibility-change"
)

// FrameError is the type of frames reporting a rejected command.
const FrameError = "error"

// Command is a host request. Duration is in seconds; a start without it
// uses the configured study length.
type Command struct {
	Type     string `json:"type"`
	Duration *int   `json:"duration,omitempty"`
}

// Frame is a notification sent to the host.
type Frame struct {
	Type      string `json:"type"`
	TimeLeft  *int   `json:"timeLeft,omitempty"`
	IsRunning *bool  `json:"isRunning,omitempty"`
	IsActive  *bool  `json:"isActive,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FrameFor renders a countdown notification.
func FrameFor(event countdown.Notification) Frame {
	frame := Frame{Type: string(event.Type)}
	switch event.Type {
	case countdown.NotifyTick, countdown.NotifyStopped:
		frame.TimeLeft = intPtr(event.TimeLeft)
	case countdown.NotifySyncResponse:
		frame.TimeLeft = intPtr(event.TimeLeft)
		frame.IsRunning = boolPtr(event.IsRunning)
	case countdown.NotifyHeartbeat:
		frame.IsActive = boolPtr(event.IsActive)
		frame.Timestamp = event.Timestamp.UnixMilli()
	}
	return frame
}

func errorFrame(message string) Frame {
	return Frame{Type: FrameError, Error: message}
}

func intPtr(value int) *int {
	return &value
}

func boolPtr(value bool) *bool {
	return &value
}
