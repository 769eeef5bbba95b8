package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeICSFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cal.ics")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestParseCmdTree(t *testing.T) {
	clearEnv(t)
	path := writeICSFile(t, standupICS)

	out, err := run(t, "", "parse", path)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "VCALENDAR\n"), "got %q", out)
	assert.Contains(t, out, "  VERSION = 2.0\n")
	assert.Contains(t, out, "  VEVENT\n")
	assert.Contains(t, out, "    UID = abc-1\n")
}

func TestParseCmdStdin(t *testing.T) {
	clearEnv(t)

	out, err := run(t, standupICS, "parse", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "    SUMMARY = Standup\n")
}

func TestParseCmdEvents(t *testing.T) {
	clearEnv(t)

	out, err := run(t, standupICS, "parse", "--events")
	require.NoError(t, err)
	assert.Contains(t, out, "abc-1\n")
	assert.Contains(t, out, "  summary: Standup\n")
	assert.Contains(t, out, "  start:   2024-01-01T09:00:00Z\n")
	assert.Contains(t, out, "  location: Room 1\n")
}

func TestParseCmdEncode(t *testing.T) {
	clearEnv(t)
	folded := strings.Replace(standupICS, "SUMMARY:Standup\r\n", "SUMMARY:Stand\r\n up\r\n", 1)

	out, err := run(t, folded, "parse", "--encode")
	require.NoError(t, err)
	assert.Equal(t, standupICS, out)
}

func TestParseCmdStrict(t *testing.T) {
	clearEnv(t)

	out, err := run(t, standupICS, "parse", "--strict")
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VCALENDAR\r\n")
	assert.Contains(t, out, "UID:abc-1\r\n")

	_, err = run(t, "BEGIN:VTODO\r\nUID:x\r\nEND:VTODO\r\n", "parse", "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a VCALENDAR")
}

func TestParseCmdErrors(t *testing.T) {
	clearEnv(t)

	_, err := run(t, "", "parse", filepath.Join(t.TempDir(), "missing.ics"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open")

	_, err = run(t, "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nEND:VCALENDAR\r\n", "parse")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse stdin")
}
