package platform

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// idleProvider asks xprintidle on X11 and the Mutter idle monitor over
// D-Bus on GNOME Wayland sessions.
type idleProvider struct {
	xprintidlePath string
	gdbusPath      string
}

func newIdleProvider() IdleProvider {
	provider := &idleProvider{}
	if path, err := exec.LookPath("xprintidle"); err == nil {
		provider.xprintidlePath = path
	}
	if path, err := exec.LookPath("gdbus"); err == nil {
		provider.gdbusPath = path
	}
	return provider
}

func (provider *idleProvider) IdleDuration() (time.Duration, error) {
	wayland := strings.EqualFold(os.Getenv("XDG_SESSION_TYPE"), "wayland")
	switch {
	case wayland && provider.gdbusPath != "":
		return provider.mutterIdle()
	case !wayland && provider.xprintidlePath != "":
		return provider.xprintIdle()
	default:
		return 0, ErrIdleUnsupported
	}
}

func (provider *idleProvider) xprintIdle() (time.Duration, error) {
	output, err := exec.Command(provider.xprintidlePath).Output()
	if err != nil {
		return 0, fmt.Errorf("xprintidle: %w", err)
	}
	return parseIdleMillis(string(output))
}

func (provider *idleProvider) mutterIdle() (time.Duration, error) {
	output, err := exec.Command(provider.gdbusPath,
		"call", "--session",
		"--dest", "org.gnome.Mutter.IdleMonitor",
		"--object-path", "/org/gnome/Mutter/IdleMonitor/Core",
		"--method", "org.gnome.Mutter.IdleMonitor.GetIdletime",
	).Output()
	if err != nil {
		return 0, fmt.Errorf("%w: mutter idle monitor: %v", ErrIdleUnsupported, err)
	}
	return parseGDBusIdle(string(output))
}
