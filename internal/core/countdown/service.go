package countdown

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"studytimer/internal/broadcast"
	"studytimer/internal/clock"
	"studytimer/internal/core/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrClosed is returned by commands issued after Close.
var ErrClosed = errors.New("countdown service closed")

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the wall clock and timer source.
func WithClock(source clock.Clock) Option {
	return func(service *Service) { service.clock = source }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(service *Service) { service.logger = logger }
}

// WithChannel attaches a cross-instance broadcast channel.
func WithChannel(channel broadcast.Channel) Option {
	return func(service *Service) { service.channel = channel }
}

// WithSource sets the ID stamped on outgoing broadcasts.
func WithSource(source string) Option {
	return func(service *Service) { service.source = source }
}

// WithRand sets the random source used for scheduler jitter.
func WithRand(random *rand.Rand) Option {
	return func(service *Service) { service.random = random }
}

// Service tracks one countdown session. Commands, scheduled callbacks and
// inbound broadcasts are serialised by a single mutex, so transitions never
// interleave.
type Service struct {
	mu      sync.Mutex
	config  model.CountdownConfig
	clock   clock.Clock
	logger  *zap.Logger
	channel broadcast.Channel
	source  string
	random  *rand.Rand

	state      State
	ended      endedSession
	generation uint64
	primary    clock.Timer
	corrective clock.Timer
	heartbeat  clock.Timer

	events      []chan Notification
	unsubscribe func()
	open        bool
	closed      bool
}

// New creates a Service with the provided configuration.
func New(config model.CountdownConfig, options ...Option) *Service {
	service := &Service{
		config: config.Normalized(),
		state:  Idle{},
	}
	for _, option := range options {
		option(service)
	}
	if service.clock == nil {
		service.clock = clock.Real()
	}
	if service.logger == nil {
		service.logger = zap.NewNop()
	}
	if service.channel == nil {
		service.channel = broadcast.NewNoop("")
	}
	if service.source == "" {
		service.source = uuid.NewString()
	}
	if service.random == nil {
		service.random = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	service.logger = service.logger.With(zap.String("source", service.source))
	return service
}

// Source returns the ID stamped on outgoing broadcasts.
func (service *Service) Source() string {
	return service.source
}

// Subscribe registers a new observer channel. Delivery never blocks; a
// full buffer drops the notification.
func (service *Service) Subscribe(buffer int) <-chan Notification {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Notification, buffer)
	service.mu.Lock()
	defer service.mu.Unlock()
	if service.closed {
		close(ch)
		return ch
	}
	service.events = append(service.events, ch)
	return ch
}

// Open attaches to the broadcast channel and starts the heartbeat.
func (service *Service) Open() error {
	service.mu.Lock()
	if service.closed {
		service.mu.Unlock()
		return ErrClosed
	}
	if service.open {
		service.mu.Unlock()
		return nil
	}
	service.open = true
	service.armHeartbeatLocked()
	service.mu.Unlock()

	unsubscribe := service.channel.Subscribe(service.handleBroadcast)

	service.mu.Lock()
	if service.closed {
		service.mu.Unlock()
		unsubscribe()
		return ErrClosed
	}
	service.unsubscribe = unsubscribe
	service.mu.Unlock()

	service.logger.Debug("Countdown service opened", zap.String("channel", service.channel.Name()))
	return nil
}

// Close cancels every scheduled callback, detaches from the broadcast
// channel and closes observers. The running session, if any, is dropped
// without broadcasting.
func (service *Service) Close() {
	service.mu.Lock()
	if service.closed {
		service.mu.Unlock()
		return
	}
	service.closed = true
	service.cancelLocked()
	if service.heartbeat != nil {
		service.heartbeat.Stop()
		service.heartbeat = nil
	}
	events := service.events
	service.events = nil
	unsubscribe := service.unsubscribe
	service.unsubscribe = nil
	service.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	for _, ch := range events {
		close(ch)
	}
	service.logger.Debug("Countdown service closed")
}

// UpdateConfig swaps timing configuration. It applies from the next armed
// callback.
func (service *Service) UpdateConfig(config model.CountdownConfig) {
	service.mu.Lock()
	service.config = config.Normalized()
	service.mu.Unlock()
}

// State returns a copy of the current state.
func (service *Service) State() State {
	service.mu.Lock()
	defer service.mu.Unlock()
	return service.state
}

// Start begins a session of duration seconds, replacing any running one.
func (service *Service) Start(duration int) error {
	service.mu.Lock()
	defer service.mu.Unlock()
	if service.closed {
		return ErrClosed
	}

	now := service.clock.Now()
	previous, wasRunning := service.state.(Running)
	if wasRunning {
		// The replaced session ends for the host; peers follow the new
		// timer-start instead of a timer-stop.
		service.endLocked(previous)
		service.emitLocked(Notification{
			Type:      NotifyStopped,
			TimeLeft:  previous.timeLeft(now),
			Duration:  previous.ExpectedDuration,
			StartedAt: previous.StartTime,
			Timestamp: now,
		})
	}

	if duration <= 0 {
		service.logger.Debug("Non-positive duration, ending immediately", zap.Int("duration", duration))
		service.emitLocked(Notification{Type: NotifySessionEnd, Timestamp: now})
		service.publishLocked(broadcast.Message{
			Type:      broadcast.TypeSessionEnd,
			TimeLeft:  broadcast.Int(0),
			Timestamp: now.UnixMilli(),
		})
		return nil
	}

	running := service.beginLocked(now, duration)
	service.logger.Debug("Session started", zap.Int("duration", duration), zap.Bool("replaced", wasRunning))
	service.emitLocked(Notification{Type: NotifyTick, TimeLeft: duration, IsRunning: true, Timestamp: now})
	service.publishLocked(service.sessionMessageLocked(broadcast.TypeTimerStart, running, duration, now))
	return nil
}

// Stop ends the running session. Stopping an idle service does nothing.
func (service *Service) Stop() {
	service.mu.Lock()
	defer service.mu.Unlock()

	running, ok := service.state.(Running)
	if !ok || service.closed {
		return
	}
	now := service.clock.Now()
	service.endLocked(running)
	service.logger.Debug("Session stopped", zap.Int("timeLeft", running.timeLeft(now)))
	service.emitLocked(Notification{
		Type:      NotifyStopped,
		TimeLeft:  running.timeLeft(now),
		Duration:  running.ExpectedDuration,
		StartedAt: running.StartTime,
		Timestamp: now,
	})
	service.publishLocked(broadcast.Message{Type: broadcast.TypeTimerStop, Timestamp: now.UnixMilli()})
}

// Sync reports the recomputed status without changing state. The answer is
// also delivered to observers as a sync-response.
func (service *Service) Sync() Status {
	service.mu.Lock()
	defer service.mu.Unlock()

	now := service.clock.Now()
	status := Status{}
	if running, ok := service.state.(Running); ok {
		status = Status{TimeLeft: running.timeLeft(now), IsRunning: true}
	}
	service.emitLocked(Notification{
		Type:      NotifySyncResponse,
		TimeLeft:  status.TimeLeft,
		IsRunning: status.IsRunning,
		Timestamp: now,
	})
	return status
}

// VisibilityChange recomputes the remaining time after the host became
// visible again and emits a corrective tick.
func (service *Service) VisibilityChange() {
	service.mu.Lock()
	defer service.mu.Unlock()

	running, ok := service.state.(Running)
	if !ok {
		return
	}
	now := service.clock.Now()
	timeLeft := running.timeLeft(now)
	if timeLeft == 0 {
		service.finishLocked(running, now, true)
		return
	}
	service.emitLocked(Notification{Type: NotifyTick, TimeLeft: timeLeft, IsRunning: true, Timestamp: now})
}

func (service *Service) beginLocked(startTime time.Time, duration int) Running {
	service.generation++
	running := Running{
		StartTime:        startTime,
		ExpectedDuration: duration,
		generation:       service.generation,
	}
	service.state = running
	service.armPrimaryLocked(running.generation)
	service.armCorrectiveLocked(running.generation)
	return running
}

// cancelLocked stops every session callback and returns to Idle. Callbacks
// already in flight see a stale generation and do nothing.
func (service *Service) cancelLocked() {
	if service.primary != nil {
		service.primary.Stop()
		service.primary = nil
	}
	if service.corrective != nil {
		service.corrective.Stop()
		service.corrective = nil
	}
	service.generation++
	service.state = Idle{}
}

// endLocked tears down running and remembers it so late updates for the
// same session cannot revive it.
func (service *Service) endLocked(running Running) {
	service.cancelLocked()
	service.ended = endedSession{
		startTime: running.StartTime.Truncate(time.Millisecond),
		duration:  running.ExpectedDuration,
	}
}

// finishLocked emits the final tick and session end, then tears down.
func (service *Service) finishLocked(running Running, now time.Time, announce bool) {
	service.endLocked(running)
	service.logger.Debug("Session ended", zap.Int("duration", running.ExpectedDuration), zap.Bool("announce", announce))
	service.emitLocked(Notification{Type: NotifyTick, TimeLeft: 0, Timestamp: now})
	service.emitLocked(Notification{
		Type:      NotifySessionEnd,
		Duration:  running.ExpectedDuration,
		StartedAt: running.StartTime,
		Timestamp: now,
	})
	if announce {
		service.publishLocked(broadcast.Message{
			Type:      broadcast.TypeSessionEnd,
			TimeLeft:  broadcast.Int(0),
			Timestamp: now.UnixMilli(),
		})
	}
}

func (service *Service) armPrimaryLocked(generation uint64) {
	service.primary = service.clock.AfterFunc(service.config.TickInterval, func() {
		service.onPrimary(generation)
	})
}

func (service *Service) armCorrectiveLocked(generation uint64) {
	service.corrective = service.clock.AfterFunc(service.jitterLocked(), func() {
		service.onCorrective(generation)
	})
}

func (service *Service) jitterLocked() time.Duration {
	spread := service.config.JitterMax - service.config.JitterMin
	if spread <= 0 {
		return service.config.JitterMin
	}
	return service.config.JitterMin + time.Duration(service.random.Int64N(int64(spread)+1))
}

// currentLocked returns the running state if generation is still live.
func (service *Service) currentLocked(generation uint64) (Running, bool) {
	running, ok := service.state.(Running)
	if !ok || service.closed || running.generation != generation {
		return Running{}, false
	}
	return running, true
}

func (service *Service) onPrimary(generation uint64) {
	service.mu.Lock()
	defer service.mu.Unlock()

	running, ok := service.currentLocked(generation)
	if !ok {
		return
	}
	now := service.clock.Now()
	timeLeft := running.timeLeft(now)
	if timeLeft == 0 {
		service.finishLocked(running, now, true)
		return
	}
	service.emitLocked(Notification{Type: NotifyTick, TimeLeft: timeLeft, IsRunning: true, Timestamp: now})
	service.armPrimaryLocked(generation)
}

func (service *Service) onCorrective(generation uint64) {
	service.mu.Lock()
	defer service.mu.Unlock()

	running, ok := service.currentLocked(generation)
	if !ok {
		return
	}
	now := service.clock.Now()
	timeLeft := running.timeLeft(now)
	if timeLeft == 0 {
		service.finishLocked(running, now, true)
		return
	}
	service.emitLocked(Notification{Type: NotifyTick, TimeLeft: timeLeft, IsRunning: true, Timestamp: now})
	service.publishLocked(service.sessionMessageLocked(broadcast.TypeTimerUpdate, running, timeLeft, now))
	service.armCorrectiveLocked(generation)
}

func (service *Service) armHeartbeatLocked() {
	service.heartbeat = service.clock.AfterFunc(service.config.HeartbeatInterval, service.onHeartbeat)
}

func (service *Service) onHeartbeat() {
	service.mu.Lock()
	defer service.mu.Unlock()
	if service.closed {
		return
	}
	_, running := service.state.(Running)
	service.emitLocked(Notification{
		Type:      NotifyHeartbeat,
		IsActive:  running,
		IsRunning: running,
		Timestamp: service.clock.Now(),
	})
	service.armHeartbeatLocked()
}

func (service *Service) sessionMessageLocked(kind broadcast.Type, running Running, timeLeft int, now time.Time) broadcast.Message {
	return broadcast.Message{
		Type:      kind,
		TimeLeft:  broadcast.Int(timeLeft),
		Timestamp: now.UnixMilli(),
		Duration:  broadcast.Int(running.ExpectedDuration),
		StartTime: broadcast.Millis(running.StartTime),
	}
}

// publishLocked sends msg on the broadcast channel. Failures only cost
// cross-instance convergence, so they are logged and dropped.
func (service *Service) publishLocked(msg broadcast.Message) {
	if !service.open {
		return
	}
	msg.Source = service.source
	if err := service.channel.Publish(msg); err != nil {
		service.logger.Warn("Broadcast publish failed, continuing single-instance",
			zap.String("type", string(msg.Type)), zap.Error(err))
	}
}

func (service *Service) emitLocked(event Notification) {
	for _, ch := range service.events {
		select {
		case ch <- event:
		default:
		}
	}
}
