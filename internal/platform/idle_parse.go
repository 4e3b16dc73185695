package platform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	hidIdlePattern   = regexp.MustCompile(`"HIDIdleTime"\s*=\s*(\d+)`)
	gdbusIdlePattern = regexp.MustCompile(`uint64\s+(\d+)`)
)

// parseIdleMillis parses a bare millisecond count as printed by xprintidle.
func parseIdleMillis(output string) (time.Duration, error) {
	value := strings.TrimSpace(output)
	idleMillis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse idle milliseconds: %w", err)
	}
	return time.Duration(max(idleMillis, 0)) * time.Millisecond, nil
}

// parseGDBusIdle parses the "(uint64 1234,)" reply of GetIdletime.
func parseGDBusIdle(output string) (time.Duration, error) {
	match := gdbusIdlePattern.FindStringSubmatch(output)
	if match == nil {
		return 0, fmt.Errorf("parse idle monitor reply %q", strings.TrimSpace(output))
	}
	return parseIdleMillis(match[1])
}

// parseHIDIdleTime extracts the nanosecond HIDIdleTime from ioreg output.
func parseHIDIdleTime(output string) (time.Duration, error) {
	match := hidIdlePattern.FindStringSubmatch(output)
	if match == nil {
		return 0, ErrIdleUnsupported
	}
	nanos, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse HIDIdleTime: %w", err)
	}
	return time.Duration(nanos), nil
}
