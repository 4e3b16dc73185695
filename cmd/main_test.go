package main

import (
	"bytes"
	"testing"
	"time"

	"studytimer/internal/clock"
	"studytimer/internal/core/countdown"
	"studytimer/internal/core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "25:00", formatClock(1500))
	assert.Equal(t, "00:09", formatClock(9))
	assert.Equal(t, "90:01", formatClock(5401))
}

func TestHandleLine(t *testing.T) {
	settings = model.DefaultSettings()
	fake := clock.NewFake(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	service := countdown.New(settings.Countdown, countdown.WithClock(fake))
	t.Cleanup(service.Close)
	var out bytes.Buffer

	assert.False(t, handleLine(&out, service, "start"))
	assert.Equal(t, countdown.Status{TimeLeft: 1500, IsRunning: true}, service.Sync())

	assert.False(t, handleLine(&out, service, "break 2"))
	assert.Equal(t, 120, service.Sync().TimeLeft)

	assert.False(t, handleLine(&out, service, "break"))
	assert.Equal(t, 300, service.Sync().TimeLeft)

	assert.False(t, handleLine(&out, service, "stop"))
	assert.False(t, service.Sync().IsRunning)

	assert.False(t, handleLine(&out, service, "start soon"))
	assert.False(t, handleLine(&out, service, "pause"))
	require.Contains(t, out.String(), `minutes must be an integer: "soon"`)
	require.Contains(t, out.String(), `unknown command "pause"`)

	assert.False(t, handleLine(&out, service, "   "))
	assert.True(t, handleLine(&out, service, "quit"))
}
