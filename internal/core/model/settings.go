package model

import "time"

// Settings defines editable user preferences.
type Settings struct {
	StudyDuration time.Duration
	BreakDuration time.Duration
	Countdown     CountdownConfig

	Channel    string
	MeshEnable bool
	MeshListen string
	MeshPeers  []string

	ServerAddr        string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	HistoryEnabled bool
	HistoryPath    string

	IdleEnabled       bool
	IdleAfter         time.Duration
	IdleCheckInterval time.Duration

	LogLevel string
}

// DefaultSettings returns default settings for the study timer.
func DefaultSettings() Settings {
	return Settings{
		StudyDuration: 25 * time.Minute,
		BreakDuration: 5 * time.Minute,
		Countdown:     DefaultCountdownConfig(),

		Channel: "studytimer",

		ServerAddr:        "127.0.0.1:8787",
		RateLimitRequests: 120,
		RateLimitWindow:   time.Minute,

		HistoryEnabled: true,

		IdleEnabled:       true,
		IdleAfter:         time.Minute,
		IdleCheckInterval: 5 * time.Second,

		LogLevel: "info",
	}
}

// StudySeconds returns the default session length in whole seconds.
func (settings Settings) StudySeconds() int {
	return int(settings.StudyDuration / time.Second)
}

// BreakSeconds returns the default break length in whole seconds.
func (settings Settings) BreakSeconds() int {
	return int(settings.BreakDuration / time.Second)
}
