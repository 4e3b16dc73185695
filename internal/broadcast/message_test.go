package broadcast

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"timer-pause","timestamp":1}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"type":"timer-stop"}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncodeOmitsAbsentFields(t *testing.T) {
	payload, err := Encode(Message{Type: TypeTimerStop, Source: "a", Timestamp: 42})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"timer-stop","source":"a","timestamp":42}`, string(payload))

	started := time.UnixMilli(1_700_000_000_000)
	payload, err = Encode(Message{
		Type:      TypeTimerStart,
		Source:    "a",
		TimeLeft:  Int(0),
		Timestamp: 43,
		Duration:  Int(1500),
		StartTime: Millis(started),
	})
	require.NoError(t, err)

	msg, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, 0, *msg.TimeLeft)
	at, ok := msg.Started()
	assert.True(t, ok)
	assert.True(t, started.Equal(at))
}

func TestPortForChannelIsStableAndInRange(t *testing.T) {
	port := PortForChannel("studytimer")
	assert.Equal(t, port, PortForChannel("studytimer"))
	assert.GreaterOrEqual(t, port, 20000)
	assert.LessOrEqual(t, port, 39999)
	assert.Contains(t, DefaultListenAddr("studytimer"), "127.0.0.1:")
}

func TestFramesRoundTrip(t *testing.T) {
	var stream bytes.Buffer
	require.NoError(t, writeFrame(&stream, []byte(`{"a":1}`), 0))
	require.NoError(t, writeFrame(&stream, []byte(`{"b":2}`), 0))
	assert.Equal(t, 2*FrameSize, stream.Len())

	var payloads []string
	err := readFrames(context.Background(), &stream, func(payload []byte) {
		payloads = append(payloads, string(payload))
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`}, payloads)
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var stream bytes.Buffer
	err := writeFrame(&stream, make([]byte, FrameSize+1), 0)
	assert.Error(t, err)
	assert.Zero(t, stream.Len())
}
