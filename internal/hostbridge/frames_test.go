package hostbridge

import (
	"encoding/json"
	"testing"

	"studytimer/internal/core/countdown"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameForRendersHostShapes(t *testing.T) {
	cases := []struct {
		event countdown.Notification
		want  string
	}{
		{countdown.Notification{Type: countdown.NotifyTick, TimeLeft: 0}, `{"type":"tick","timeLeft":0}`},
		{countdown.Notification{Type: countdown.NotifySessionEnd, Duration: 60}, `{"type":"sessionEnd"}`},
		{countdown.Notification{Type: countdown.NotifySyncResponse}, `{"type":"sync-response","timeLeft":0,"isRunning":false}`},
		{countdown.Notification{Type: countdown.NotifyHeartbeat, IsActive: true, Timestamp: epoch}, `{"type":"heartbeat","isActive":true,"timestamp":1792314000000}`},
	}
	for _, tc := range cases {
		encoded, err := json.Marshal(FrameFor(tc.event))
		require.NoError(t, err)
		assert.JSONEq(t, tc.want, string(encoded))
	}
}
