package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"studytimer/internal/core/model"

	"gopkg.in/yaml.v3"
)

const settingsFileName = "settings.yaml"

type yamlSettings struct {
	Countdown yamlCountdown `yaml:"countdown"`
	Broadcast yamlBroadcast `yaml:"broadcast"`
	Server    yamlServer    `yaml:"server"`
	History   yamlHistory   `yaml:"history"`
	Idle      yamlIdle      `yaml:"idle"`
	LogLevel  string        `yaml:"log_level,omitempty"`
}

type yamlCountdown struct {
	StudyMinutes         int `yaml:"study_minutes"`
	BreakMinutes         int `yaml:"break_minutes"`
	TickMillis           int `yaml:"tick_ms"`
	JitterMinMillis      int `yaml:"jitter_min_ms"`
	JitterMaxMillis      int `yaml:"jitter_max_ms"`
	HeartbeatSeconds     int `yaml:"heartbeat_seconds"`
	StaleAfterMillis     int `yaml:"stale_after_ms"`
	DriftToleranceMillis int `yaml:"drift_tolerance_ms"`
}

type yamlBroadcast struct {
	Channel    string   `yaml:"channel"`
	Mesh       *bool    `yaml:"mesh"`
	ListenAddr string   `yaml:"listen_addr,omitempty"`
	Peers      []string `yaml:"peers,omitempty"`
}

type yamlServer struct {
	Addr                   string `yaml:"addr"`
	RateLimitRequests      int    `yaml:"rate_limit_requests"`
	RateLimitWindowSeconds int    `yaml:"rate_limit_window_seconds"`
}

type yamlHistory struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

type yamlIdle struct {
	Enabled              *bool `yaml:"enabled"`
	AfterSeconds         int   `yaml:"after_seconds"`
	CheckIntervalSeconds int   `yaml:"check_interval_seconds"`
}

// LoadSettings reads user preferences for appName from YAML.
// If the config file does not exist, default settings are returned.
func LoadSettings(appName string) (model.Settings, error) {
	configPath, err := ResolveConfigPath(appName)
	if err != nil {
		return model.DefaultSettings(), err
	}
	return LoadSettingsFile(configPath)
}

// LoadSettingsFile reads user preferences from path.
func LoadSettingsFile(path string) (model.Settings, error) {
	settings := model.DefaultSettings()

	rawData, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("read settings file: %w", err)
	}

	var fileData yamlSettings
	if err := yaml.Unmarshal(rawData, &fileData); err != nil {
		return settings, fmt.Errorf("parse settings yaml: %w", err)
	}

	applyYamlSettings(&settings, fileData)
	return settings, nil
}

// SaveSettings writes user preferences for appName to YAML.
func SaveSettings(appName string, settings model.Settings) error {
	configPath, err := ResolveConfigPath(appName)
	if err != nil {
		return err
	}
	return SaveSettingsFile(configPath, settings)
}

// SaveSettingsFile writes user preferences to path.
func SaveSettingsFile(path string, settings model.Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	serialized, err := MarshalSettings(settings)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, serialized, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}

	return nil
}

// MarshalSettings renders settings in the on-disk YAML layout.
func MarshalSettings(settings model.Settings) ([]byte, error) {
	countdown := settings.Countdown
	fileData := yamlSettings{
		Countdown: yamlCountdown{
			StudyMinutes:         int(settings.StudyDuration / time.Minute),
			BreakMinutes:         int(settings.BreakDuration / time.Minute),
			TickMillis:           int(countdown.TickInterval / time.Millisecond),
			JitterMinMillis:      int(countdown.JitterMin / time.Millisecond),
			JitterMaxMillis:      int(countdown.JitterMax / time.Millisecond),
			HeartbeatSeconds:     int(countdown.HeartbeatInterval / time.Second),
			StaleAfterMillis:     int(countdown.StaleAfter / time.Millisecond),
			DriftToleranceMillis: int(countdown.DriftTolerance / time.Millisecond),
		},
		Broadcast: yamlBroadcast{
			Channel:    settings.Channel,
			Mesh:       boolPtr(settings.MeshEnable),
			ListenAddr: settings.MeshListen,
			Peers:      settings.MeshPeers,
		},
		Server: yamlServer{
			Addr:                   settings.ServerAddr,
			RateLimitRequests:      settings.RateLimitRequests,
			RateLimitWindowSeconds: int(settings.RateLimitWindow / time.Second),
		},
		History: yamlHistory{
			Enabled: boolPtr(settings.HistoryEnabled),
			Path:    settings.HistoryPath,
		},
		Idle: yamlIdle{
			Enabled:              boolPtr(settings.IdleEnabled),
			AfterSeconds:         int(settings.IdleAfter / time.Second),
			CheckIntervalSeconds: int(settings.IdleCheckInterval / time.Second),
		},
		LogLevel: settings.LogLevel,
	}

	serialized, err := yaml.Marshal(fileData)
	if err != nil {
		return nil, fmt.Errorf("marshal settings yaml: %w", err)
	}
	return serialized, nil
}

// ResolveConfigPath returns the settings file location for appName.
func ResolveConfigPath(appName string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, appName, settingsFileName), nil
}

// DefaultHistoryPath returns the history database location next to the
// settings file.
func DefaultHistoryPath(appName string) (string, error) {
	configPath, err := ResolveConfigPath(appName)
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(configPath), "history.db"), nil
}

func applyYamlSettings(settings *model.Settings, fileData yamlSettings) {
	countdown := fileData.Countdown
	if countdown.StudyMinutes > 0 {
		settings.StudyDuration = time.Duration(countdown.StudyMinutes) * time.Minute
	}
	if countdown.BreakMinutes > 0 {
		settings.BreakDuration = time.Duration(countdown.BreakMinutes) * time.Minute
	}
	if countdown.TickMillis > 0 {
		settings.Countdown.TickInterval = time.Duration(countdown.TickMillis) * time.Millisecond
	}
	if countdown.JitterMinMillis > 0 {
		settings.Countdown.JitterMin = time.Duration(countdown.JitterMinMillis) * time.Millisecond
	}
	if countdown.JitterMaxMillis > 0 {
		settings.Countdown.JitterMax = time.Duration(countdown.JitterMaxMillis) * time.Millisecond
	}
	if countdown.HeartbeatSeconds > 0 {
		settings.Countdown.HeartbeatInterval = time.Duration(countdown.HeartbeatSeconds) * time.Second
	}
	if countdown.StaleAfterMillis > 0 {
		settings.Countdown.StaleAfter = time.Duration(countdown.StaleAfterMillis) * time.Millisecond
	}
	if countdown.DriftToleranceMillis > 0 {
		settings.Countdown.DriftTolerance = time.Duration(countdown.DriftToleranceMillis) * time.Millisecond
	}
	settings.Countdown = settings.Countdown.Normalized()

	broadcast := fileData.Broadcast
	if channel := strings.TrimSpace(broadcast.Channel); channel != "" {
		settings.Channel = channel
	}
	if broadcast.Mesh != nil {
		settings.MeshEnable = *broadcast.Mesh
	}
	settings.MeshListen = strings.TrimSpace(broadcast.ListenAddr)
	settings.MeshPeers = nil
	for _, peer := range broadcast.Peers {
		if peer = strings.TrimSpace(peer); peer != "" {
			settings.MeshPeers = append(settings.MeshPeers, peer)
		}
	}

	server := fileData.Server
	if addr := strings.TrimSpace(server.Addr); addr != "" {
		settings.ServerAddr = addr
	}
	if server.RateLimitRequests > 0 {
		settings.RateLimitRequests = server.RateLimitRequests
	}
	if server.RateLimitWindowSeconds > 0 {
		settings.RateLimitWindow = time.Duration(server.RateLimitWindowSeconds) * time.Second
	}

	if fileData.History.Enabled != nil {
		settings.HistoryEnabled = *fileData.History.Enabled
	}
	settings.HistoryPath = strings.TrimSpace(fileData.History.Path)

	idle := fileData.Idle
	if idle.Enabled != nil {
		settings.IdleEnabled = *idle.Enabled
	}
	if idle.AfterSeconds > 0 {
		settings.IdleAfter = time.Duration(idle.AfterSeconds) * time.Second
	}
	if idle.CheckIntervalSeconds > 0 {
		settings.IdleCheckInterval = time.Duration(idle.CheckIntervalSeconds) * time.Second
	}

	if level := strings.TrimSpace(fileData.LogLevel); level != "" {
		settings.LogLevel = strings.ToLower(level)
	}
}

func boolPtr(value bool) *bool {
	return &value
}
