package model

import "time"

// CountdownConfig contains runtime settings for the countdown service.
type CountdownConfig struct {
	// TickInterval is the primary scheduler cadence.
	TickInterval time.Duration
	// JitterMin and JitterMax bound the corrective scheduler delay.
	JitterMin time.Duration
	JitterMax time.Duration
	// HeartbeatInterval is the liveness notification period.
	HeartbeatInterval time.Duration
	// StaleAfter is the maximum age of a remote update that is still applied.
	StaleAfter time.Duration
	// DriftTolerance is the largest local/remote difference that is ignored.
	// Zero means the default.
	DriftTolerance time.Duration
}

// DefaultCountdownConfig returns the standard timings.
func DefaultCountdownConfig() CountdownConfig {
	return CountdownConfig{
		TickInterval:      time.Second,
		JitterMin:         900 * time.Millisecond,
		JitterMax:         1100 * time.Millisecond,
		HeartbeatInterval: 5 * time.Second,
		StaleAfter:        2 * time.Second,
		DriftTolerance:    time.Second,
	}
}

// Normalized replaces non-positive or inconsistent values with defaults.
func (config CountdownConfig) Normalized() CountdownConfig {
	defaults := DefaultCountdownConfig()
	if config.TickInterval <= 0 {
		config.TickInterval = defaults.TickInterval
	}
	if config.JitterMin <= 0 {
		config.JitterMin = defaults.JitterMin
	}
	if config.JitterMax <= 0 {
		config.JitterMax = defaults.JitterMax
	}
	if config.JitterMax < config.JitterMin {
		config.JitterMax = config.JitterMin
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = defaults.StaleAfter
	}
	if config.DriftTolerance <= 0 {
		config.DriftTolerance = defaults.DriftTolerance
	}
	return config
}
