package countdown

import "time"

// State is either Idle or Running.
type State interface {
	isState()
}

// Idle means no session is active.
type Idle struct{}

// Running describes the active session.
type Running struct {
	StartTime        time.Time
	ExpectedDuration int

	// offset is subtracted from the wall-clock remainder after a remote
	// instance reported a different value.
	offset     int
	generation uint64
}

func (Idle) isState()    {}
func (Running) isState() {}

// timeLeft recomputes the remaining seconds from the wall clock.
func (running Running) timeLeft(now time.Time) int {
	elapsed := int(now.Sub(running.StartTime) / time.Second)
	return clamp(running.ExpectedDuration-elapsed-running.offset, 0, running.ExpectedDuration)
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
