package config

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/hunter-screen-colors/internal/palette"
)

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

// unset clears keys for the test; t.Setenv restores them afterwards.
func unset(t *testing.T, keys ...string) {
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 150*time.Millisecond, cfg.CaptureInterval)
	assert.Equal(t, "AUTO", cfg.CaptureBackend)
	assert.Empty(t, cfg.CaptureCommand)
	assert.Equal(t, "melonDS", cfg.WindowTitle)
	assert.True(t, cfg.WindowRect.Empty())
	assert.Equal(t, 3, cfg.ConfirmCount)
	assert.Equal(t, 5, cfg.MaxCaptureFailures)
	assert.Equal(t, LightOpenRGB, cfg.LightType)
	assert.Equal(t, "localhost:6742", cfg.OpenRGBAddress)
	assert.Equal(t, time.Second, cfg.DeviceTimeout)
	assert.Equal(t, 5*time.Second, cfg.DiscoveryTimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.HubRetryBackoff)
	assert.True(t, cfg.RestoreOnExit)
	assert.Equal(t, color.RGBA{A: 0xff}, cfg.IdleColor)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnvironmentAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, "hunter.env")
	require.NoError(t, os.WriteFile(dotenv, []byte("CONFIRM_COUNT=4\nLIGHT_TYPE=lifx\nLIGHT_GROUP_NAME=DESK\n"), 0644))
	unset(t, "LIGHT_TYPE", "LIGHT_GROUP_NAME")

	t.Setenv("CONFIRM_COUNT", "6")
	t.Setenv("CAPTURE_COMMAND", "grim -t png -")
	t.Setenv("WINDOW_RECT", "100,50,768,409")
	t.Setenv("IDLE_COLOR", "#102030")
	t.Setenv("PROFILE_PATH", "~/hunter/profile.yaml")

	cfg, err := Load(dotenv)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.ConfirmCount, "environment wins over .env")
	assert.Equal(t, LightLIFX, cfg.LightType)
	assert.Equal(t, "DESK", cfg.LightGroupName)
	assert.Equal(t, []string{"grim", "-t", "png", "-"}, cfg.CaptureCommand)
	assert.Equal(t, image.Rect(100, 50, 868, 459), cfg.WindowRect)
	assert.Equal(t, color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}, cfg.IdleColor)
	assert.NotContains(t, cfg.ProfilePath, "~")
	assert.Equal(t, "profile.yaml", filepath.Base(cfg.ProfilePath))
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	for name, kv := range map[string][2]string{
		"confirm count":  {"CONFIRM_COUNT", "1"},
		"light type":     {"LIGHT_TYPE", "HUE"},
		"window rect":    {"WINDOW_RECT", "1,2,3"},
		"idle colour":    {"IDLE_COLOR", "purple"},
		"brightness":     {"MAX_BRIGHTNESS", "1.5"},
		"interval":       {"CAPTURE_INTERVAL", "soon"},
		"retry attempts": {"HUB_RETRY_ATTEMPTS", "0"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load(noEnvFile(t))
			assert.Error(t, err)
		})
	}
}

func TestParseRect(t *testing.T) {
	r, err := ParseRect(" 10, 20, 30, 40 ")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 20, 40, 60), r)

	r, err = ParseRect("")
	require.NoError(t, err)
	assert.True(t, r.Empty())

	_, err = ParseRect("0,0,0,10")
	assert.Error(t, err)
	_, err = ParseRect("a,b,c,d")
	assert.Error(t, err)
}

func TestDefaultProfileBuildsValidTable(t *testing.T) {
	p := DefaultProfile()
	require.NoError(t, p.Layout.Validate())

	table, err := p.Table(palette.MetricRGB)
	require.NoError(t, err)
	assert.Len(t, table.Entries(), 9)

	assert.Equal(t, palette.Identity("VoltDriver"), table.Match(color.RGBA{R: 5, G: 145, B: 250, A: 0xff}))
	assert.Equal(t, color.RGBA{R: 255, G: 120, A: 0xff}, table.DisplayColor("PowerBeam"))
	assert.Equal(t, color.RGBA{A: 0xff}, table.DisplayColor(palette.Unknown))
}

func TestLoadProfileMergesOverDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
layout:
  points:
    - {x: 0.25, y: 0.1}
    - {x: 0.75, y: 0.1}
tolerance: 15
weapons:
  - name: PowerBeam
    sense: "#ffc83c"
  - name: Missile
    sense: "#00c800"
    show: "#00ff00"
    tolerance: 40
`), 0644))

	p, err := LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, "MelonPrimeDS", p.Layout.Name)
	assert.Equal(t, 25, p.Layout.InsetTop)
	assert.Len(t, p.Layout.Points, 2)

	table, err := p.Table(palette.MetricRGB)
	require.NoError(t, err)
	require.Len(t, table.Entries(), 2)
	missile, ok := table.Lookup("Missile")
	require.True(t, ok)
	assert.Equal(t, 40.0, missile.Tolerance)
	assert.Equal(t, color.RGBA{G: 255, A: 0xff}, missile.DisplayColor())
	beam, _ := table.Lookup("PowerBeam")
	assert.Equal(t, 15.0, beam.Tolerance)
}

func TestLoadProfileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadProfile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("layout:\n  points: []\n"), 0644))
	_, err = LoadProfile(bad)
	assert.Error(t, err)

	p := DefaultProfile()
	p.Weapons = append(p.Weapons, Weapon{Name: "Broken", Sense: "nope"})
	_, err = p.Table(palette.MetricRGB)
	assert.Error(t, err)
}

func TestWriteProfileRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteProfile(&buf, DefaultProfile()))
	assert.Contains(t, buf.String(), "inset_top: 25")

	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), p)
}
