package platform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAutostart(t *testing.T) {
	assert.Error(t, validateAutostart("", []string{"/usr/bin/studytimer"}))
	assert.ErrorIs(t, validateAutostart("Study Timer", nil), ErrEmptyCommand)
	assert.ErrorIs(t, validateAutostart("Study Timer", []string{"  "}), ErrEmptyCommand)
	assert.NoError(t, validateAutostart("Study Timer", []string{"/usr/bin/studytimer", "serve"}))
}

func TestDesktopEntryQuotesCommand(t *testing.T) {
	entry := buildDesktopEntry("Study Timer", []string{"/opt/Study Timer/studytimer", "serve", "--config", "/tmp/a b.yaml"})

	assert.Contains(t, entry, "Name=Study Timer\n")
	assert.Contains(t, entry, `Exec="/opt/Study Timer/studytimer" serve --config "/tmp/a b.yaml"`)
}

func TestLaunchAgentPlistListsArguments(t *testing.T) {
	plist := buildLaunchAgentPlist(launchAgentLabel("Study Timer"), []string{"/Applications/a&b/studytimer", "serve"})

	assert.Contains(t, plist, "<string>com.studytimer.study-timer</string>")
	assert.Contains(t, plist, "<string>/Applications/a&amp;b/studytimer</string>")
	assert.Equal(t, 1, strings.Count(plist, "<string>serve</string>"))
}
