package countdown

import (
	"testing"
	"time"

	"studytimer/internal/broadcast"
	"studytimer/internal/core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) update(timeLeft int, at time.Time) broadcast.Message {
	return broadcast.Message{
		Type:      broadcast.TypeTimerUpdate,
		TimeLeft:  broadcast.Int(timeLeft),
		Timestamp: at.UnixMilli(),
	}
}

func TestIdleTabJoinsStartedSession(t *testing.T) {
	h := newHarness(t)
	first, _ := h.service("tab-a", model.DefaultCountdownConfig())
	second, secondEvents := h.service("tab-b", model.DefaultCountdownConfig())

	require.NoError(t, first.Start(600))
	h.hub.Flush()

	state, ok := second.State().(Running)
	require.True(t, ok)
	assert.Equal(t, 600, state.ExpectedDuration)
	assert.True(t, epoch.Equal(state.StartTime))

	ticks := only(drain(secondEvents), NotifyTick)
	require.Len(t, ticks, 1)
	assert.Equal(t, 600, ticks[0].TimeLeft)

	h.advance(10)
	assert.Equal(t, 590, first.Sync().TimeLeft)
	assert.Equal(t, 590, second.Sync().TimeLeft)
}

func TestFreshRemoteUpdateOverridesLocalValue(t *testing.T) {
	h := newHarness(t)
	first, _ := h.service("tab-a", model.DefaultCountdownConfig())
	second, secondEvents := h.service("tab-b", model.DefaultCountdownConfig())
	peer := h.recorder()

	require.NoError(t, first.Start(600))
	h.advance(10)
	require.Equal(t, 590, second.Sync().TimeLeft)
	drain(secondEvents)

	peer.publish(t, h.update(550, h.clock.Now()))
	h.hub.Flush()

	assert.Equal(t, 550, second.Sync().TimeLeft)
	ticks := only(drain(secondEvents), NotifyTick)
	require.Len(t, ticks, 1)
	assert.Equal(t, 550, ticks[0].TimeLeft)

	h.advance(5)
	assert.Equal(t, 545, second.Sync().TimeLeft, "override persists across ticks")
	assert.Equal(t, 545, first.Sync().TimeLeft)
}

func TestStaleRemoteUpdateIsIgnored(t *testing.T) {
	h := newHarness(t)
	first, _ := h.service("tab-a", primaryOnly())
	second, secondEvents := h.service("tab-b", primaryOnly())
	peer := h.recorder()

	require.NoError(t, first.Start(600))
	h.advance(10)
	drain(secondEvents)

	peer.publish(t, h.update(550, h.clock.Now().Add(-5*time.Second)))
	peer.publish(t, h.update(550, h.clock.Now().Add(5*time.Second)))
	h.hub.Flush()

	assert.Equal(t, 590, second.Sync().TimeLeft)
	assert.Empty(t, only(drain(secondEvents), NotifyTick))
}

func TestNearIdenticalUpdateIsIgnored(t *testing.T) {
	h := newHarness(t)
	first, _ := h.service("tab-a", primaryOnly())
	second, secondEvents := h.service("tab-b", primaryOnly())
	peer := h.recorder()

	require.NoError(t, first.Start(600))
	h.advance(10)
	drain(secondEvents)

	peer.publish(t, h.update(589, h.clock.Now()))
	peer.publish(t, h.update(591, h.clock.Now()))
	h.hub.Flush()

	assert.Equal(t, 590, second.Sync().TimeLeft)
	assert.Empty(t, only(drain(secondEvents), NotifyTick))
}

func TestRemoteSessionEndForcesLocalEnd(t *testing.T) {
	h := newHarness(t)
	first, firstEvents := h.service("tab-a", model.DefaultCountdownConfig())
	second, secondEvents := h.service("tab-b", model.DefaultCountdownConfig())
	peer := h.recorder()

	require.NoError(t, first.Start(600))
	h.advance(3)

	peer.publish(t, broadcast.Message{
		Type:      broadcast.TypeSessionEnd,
		Timestamp: h.clock.Now().UnixMilli(),
	})
	h.hub.Flush()

	assert.Len(t, only(drain(firstEvents), NotifySessionEnd), 1)
	assert.Len(t, only(drain(secondEvents), NotifySessionEnd), 1)
	assert.Equal(t, Idle{}, first.State())
	assert.Equal(t, Idle{}, second.State())
	assert.Zero(t, peer.count(broadcast.TypeSessionEnd), "termination is not echoed")

	peer.publish(t, broadcast.Message{
		Type:      broadcast.TypeSessionEnd,
		Timestamp: h.clock.Now().UnixMilli(),
	})
	h.hub.Flush()
	assert.Empty(t, only(drain(firstEvents), NotifySessionEnd), "idle instances ignore it")
}

func TestLocalExpiryEndsEveryTab(t *testing.T) {
	h := newHarness(t)
	first, firstEvents := h.service("tab-a", model.DefaultCountdownConfig())
	_, secondEvents := h.service("tab-b", model.DefaultCountdownConfig())
	_, thirdEvents := h.service("tab-c", model.DefaultCountdownConfig())

	require.NoError(t, first.Start(20))
	h.advance(25)

	assert.Len(t, only(drain(firstEvents), NotifySessionEnd), 1)
	assert.Len(t, only(drain(secondEvents), NotifySessionEnd), 1)
	assert.Len(t, only(drain(thirdEvents), NotifySessionEnd), 1)
}

func TestRemoteStopStopsWithoutEcho(t *testing.T) {
	h := newHarness(t)
	first, _ := h.service("tab-a", model.DefaultCountdownConfig())
	second, secondEvents := h.service("tab-b", model.DefaultCountdownConfig())
	peer := h.recorder()

	require.NoError(t, first.Start(60))
	h.advance(5)
	drain(secondEvents)

	first.Stop()
	h.hub.Flush()

	assert.Equal(t, Idle{}, second.State())
	stopped := only(drain(secondEvents), NotifyStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, 55, stopped[0].TimeLeft)
	assert.Equal(t, 1, peer.count(broadcast.TypeTimerStop))
}

func TestLateUpdateCannotReviveStoppedSession(t *testing.T) {
	h := newHarness(t)
	first, _ := h.service("tab-a", primaryOnly())
	second, _ := h.service("tab-b", primaryOnly())
	peer := h.recorder()

	require.NoError(t, first.Start(60))
	h.advance(5)
	second.Stop()
	h.hub.Flush()
	require.Equal(t, Idle{}, first.State())

	late := h.update(55, h.clock.Now())
	late.Duration = broadcast.Int(60)
	late.StartTime = broadcast.Millis(epoch)
	peer.publish(t, late)
	h.hub.Flush()

	assert.Equal(t, Idle{}, first.State())
	assert.Equal(t, Idle{}, second.State())

	fresh := late
	fresh.Type = broadcast.TypeTimerStart
	fresh.StartTime = broadcast.Millis(h.clock.Now())
	fresh.TimeLeft = broadcast.Int(60)
	peer.publish(t, fresh)
	h.hub.Flush()

	assert.Equal(t, Status{TimeLeft: 60, IsRunning: true}, second.Sync())
}

func TestRemoteStartReplacesRunningSession(t *testing.T) {
	h := newHarness(t)
	first, _ := h.service("tab-a", primaryOnly())
	second, _ := h.service("tab-b", primaryOnly())

	require.NoError(t, first.Start(1500))
	h.advance(100)
	require.NoError(t, second.Start(300))
	h.hub.Flush()

	state, ok := first.State().(Running)
	require.True(t, ok)
	assert.Equal(t, 300, state.ExpectedDuration)
	assert.Equal(t, 300, first.Sync().TimeLeft)
	assert.Equal(t, 6, h.clock.Pending(), "each tab keeps one primary, one corrective and one heartbeat")
}

func TestUpdateForOtherSessionIsIgnoredWhileRunning(t *testing.T) {
	h := newHarness(t)
	first, firstEvents := h.service("tab-a", primaryOnly())
	peer := h.recorder()

	require.NoError(t, first.Start(600))
	h.advance(10)
	drain(firstEvents)

	other := h.update(100, h.clock.Now())
	other.Duration = broadcast.Int(120)
	other.StartTime = broadcast.Millis(epoch)
	peer.publish(t, other)
	h.hub.Flush()

	assert.Equal(t, 590, first.Sync().TimeLeft)
	assert.Empty(t, only(drain(firstEvents), NotifyTick))
}

func TestRemoteZeroRemainderEndsQuietly(t *testing.T) {
	h := newHarness(t)
	first, firstEvents := h.service("tab-a", primaryOnly())
	peer := h.recorder()

	require.NoError(t, first.Start(600))
	h.advance(2)
	peer.publish(t, h.update(0, h.clock.Now()))
	h.hub.Flush()

	assert.Len(t, only(drain(firstEvents), NotifySessionEnd), 1)
	assert.Zero(t, peer.count(broadcast.TypeSessionEnd))
}

func TestInvalidBroadcastIsIgnored(t *testing.T) {
	h := newHarness(t)
	first, firstEvents := h.service("tab-a", primaryOnly())
	peer := h.recorder()

	require.NoError(t, first.Start(600))
	drain(firstEvents)

	peer.publish(t, broadcast.Message{Type: "timer-pause", Timestamp: h.clock.Now().UnixMilli()})
	peer.publish(t, broadcast.Message{Type: broadcast.TypeTimerUpdate})
	peer.publish(t, broadcast.Message{Type: broadcast.TypeTimerUpdate, Timestamp: h.clock.Now().UnixMilli()})
	h.hub.Flush()

	assert.Empty(t, drain(firstEvents))
	assert.Equal(t, 600, first.Sync().TimeLeft)
}
