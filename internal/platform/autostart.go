package platform

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrEmptyCommand is returned when autostart is requested without a
// command line.
var ErrEmptyCommand = errors.New("autostart command is empty")

// Service defines OS-specific helpers needed by the application.
type Service interface {
	GetConfigDir() (string, error)
	// EnableAutostart registers command (executable followed by its
	// arguments) to run at login.
	EnableAutostart(appName string, command []string) error
	DisableAutostart(appName string) error
	AutostartEnabled(appName string) (bool, error)
}

type platformService struct{}

// NewService returns a platform-specific implementation.
func NewService() Service {
	return &platformService{}
}

// GetConfigDir returns the OS-standard configuration directory.
func (service *platformService) GetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err == nil && configDir != "" {
		return configDir, nil
	}

	homeDir, homeErr := os.UserHomeDir()
	if homeErr != nil {
		if err != nil {
			return "", fmt.Errorf("get config dir: %w", err)
		}
		return "", fmt.Errorf("get config dir: %w", homeErr)
	}

	return fallbackConfigDir(homeDir), nil
}

func validateAutostart(appName string, command []string) error {
	if strings.TrimSpace(appName) == "" {
		return fmt.Errorf("enable autostart: app name is empty")
	}
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return fmt.Errorf("enable autostart: %w", ErrEmptyCommand)
	}
	return nil
}

// slug lowercases appName and replaces spaces for use in file names.
func slug(appName string) string {
	name := strings.ToLower(strings.TrimSpace(appName))
	if name == "" {
		name = "studytimer"
	}
	return strings.ReplaceAll(name, " ", "-")
}

// quoteArgs joins command for a shell-like command line, quoting
// arguments that contain spaces.
func quoteArgs(command []string) string {
	quoted := make([]string, 0, len(command))
	for _, arg := range command {
		arg = strings.Trim(arg, `"`)
		if strings.ContainsAny(arg, " \t") {
			arg = `"` + arg + `"`
		}
		quoted = append(quoted, arg)
	}
	return strings.Join(quoted, " ")
}
