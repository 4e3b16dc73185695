package countdown

import (
	"time"

	"studytimer/internal/broadcast"

	"go.uber.org/zap"
)

// handleBroadcast applies a message from another instance. Nothing
// received here is re-broadcast.
func (service *Service) handleBroadcast(msg broadcast.Message) {
	if msg.Source == service.source {
		return
	}
	if err := msg.Validate(); err != nil {
		service.logger.Debug("Ignoring invalid broadcast", zap.Error(err))
		return
	}

	service.mu.Lock()
	defer service.mu.Unlock()
	if service.closed {
		return
	}

	now := service.clock.Now()
	switch msg.Type {
	case broadcast.TypeSessionEnd:
		if running, ok := service.state.(Running); ok {
			service.finishLocked(running, now, false)
		}
	case broadcast.TypeTimerStop:
		if running, ok := service.state.(Running); ok {
			service.endLocked(running)
			service.emitLocked(Notification{
				Type:      NotifyStopped,
				TimeLeft:  running.timeLeft(now),
				Duration:  running.ExpectedDuration,
				StartedAt: running.StartTime,
				Timestamp: now,
			})
		}
	case broadcast.TypeTimerStart, broadcast.TypeTimerUpdate:
		service.reconcileLocked(msg, now)
	}
}

// reconcileLocked overwrites the local remainder with a fresh remote value
// that differs by more than the drift tolerance. An idle instance joins the
// remote session when the message describes one that has not already
// ended here; a running instance switches only on a timer-start.
func (service *Service) reconcileLocked(msg broadcast.Message, now time.Time) {
	if msg.TimeLeft == nil {
		return
	}
	age := now.Sub(msg.At())
	if age < 0 {
		age = -age
	}
	if age > service.config.StaleAfter {
		service.logger.Debug("Ignoring stale broadcast",
			zap.String("type", string(msg.Type)), zap.Duration("age", age))
		return
	}

	startTime, duration, described := sessionOf(msg)
	running, isRunning := service.state.(Running)
	adopted := false
	switch {
	case !isRunning:
		if !described || service.ended.matches(startTime, duration) {
			return
		}
		running = service.adoptLocked(startTime, duration)
		adopted = true
	case described && !sameSession(running, startTime, duration):
		if msg.Type != broadcast.TypeTimerStart {
			return
		}
		running = service.adoptLocked(startTime, duration)
		adopted = true
	}

	remote := clamp(*msg.TimeLeft, 0, running.ExpectedDuration)
	local := running.timeLeft(now)
	drift := time.Duration(absInt(remote-local)) * time.Second
	if drift > service.config.DriftTolerance {
		elapsed := int(now.Sub(running.StartTime) / time.Second)
		running.offset = running.ExpectedDuration - elapsed - remote
		service.state = running
		service.logger.Debug("Adopted remote remainder",
			zap.Int("local", local), zap.Int("remote", remote))
	} else if !adopted {
		return
	}

	timeLeft := running.timeLeft(now)
	if timeLeft == 0 {
		service.finishLocked(running, now, false)
		return
	}
	service.emitLocked(Notification{Type: NotifyTick, TimeLeft: timeLeft, IsRunning: true, Timestamp: now})
}

// adoptLocked replaces local state with a remote session.
func (service *Service) adoptLocked(startTime time.Time, duration int) Running {
	service.cancelLocked()
	running := service.beginLocked(startTime, duration)
	service.logger.Debug("Joined remote session",
		zap.Int("duration", duration), zap.Time("startTime", startTime))
	return running
}

// endedSession identifies the last session that stopped or expired here.
type endedSession struct {
	startTime time.Time
	duration  int
}

func (ended endedSession) matches(startTime time.Time, duration int) bool {
	return ended.duration == duration && ended.startTime.Equal(startTime)
}

func sessionOf(msg broadcast.Message) (time.Time, int, bool) {
	startTime, ok := msg.Started()
	if !ok || msg.Duration == nil || *msg.Duration <= 0 {
		return time.Time{}, 0, false
	}
	return startTime, *msg.Duration, true
}

// sameSession compares at the millisecond precision used on the wire.
func sameSession(running Running, startTime time.Time, duration int) bool {
	return running.ExpectedDuration == duration &&
		running.StartTime.Truncate(time.Millisecond).Equal(startTime)
}

func absInt(value int) int {
	if value < 0 {
		return -value
	}
	return value
}
