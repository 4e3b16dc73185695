package countdown

import "time"

// NotificationType defines the kind of host notification.
type NotificationType string

const (
	NotifyTick         NotificationType = "tick"
	NotifySessionEnd   NotificationType = "sessionEnd"
	NotifyStopped      NotificationType = "stopped"
	NotifySyncResponse NotificationType = "sync-response"
	NotifyHeartbeat    NotificationType = "heartbeat"
)

// Notification is a service update for the host.
type Notification struct {
	Type      NotificationType
	TimeLeft  int
	IsRunning bool
	// IsActive is set on heartbeats while a session is running.
	IsActive bool
	// Duration and StartedAt describe the finished session on
	// sessionEnd and stopped notifications.
	Duration  int
	StartedAt time.Time
	Timestamp time.Time
}

// Status is the answer to a sync query.
type Status struct {
	TimeLeft  int
	IsRunning bool
}
