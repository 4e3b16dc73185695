package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizedFillsDefaults(t *testing.T) {
	got := CountdownConfig{}.Normalized()
	assert.Equal(t, DefaultCountdownConfig(), got)
}

func TestNormalizedKeepsCustomValues(t *testing.T) {
	config := CountdownConfig{
		TickInterval:      500 * time.Millisecond,
		JitterMin:         2 * time.Second,
		JitterMax:         time.Second,
		HeartbeatInterval: 10 * time.Second,
		StaleAfter:        3 * time.Second,
		DriftTolerance:    500 * time.Millisecond,
	}
	got := config.Normalized()

	assert.Equal(t, 500*time.Millisecond, got.TickInterval)
	assert.Equal(t, 2*time.Second, got.JitterMin)
	assert.Equal(t, 2*time.Second, got.JitterMax, "max is raised to min")
	assert.Equal(t, 10*time.Second, got.HeartbeatInterval)
	assert.Equal(t, 500*time.Millisecond, got.DriftTolerance)
}

func TestNormalizedRaisesDefaultMaxToCustomMin(t *testing.T) {
	got := CountdownConfig{JitterMin: 3 * time.Second}.Normalized()

	assert.Equal(t, 3*time.Second, got.JitterMin)
	assert.Equal(t, 3*time.Second, got.JitterMax)
}

func TestNormalizedZeroDriftToleranceUsesDefault(t *testing.T) {
	got := CountdownConfig{JitterMin: time.Second, JitterMax: 2 * time.Second}.Normalized()

	assert.Equal(t, time.Second, got.DriftTolerance)
	assert.Equal(t, 2*time.Second, got.JitterMax)
}
