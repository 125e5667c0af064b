package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/hunter-screen-colors/internal/config"
	"github.com/scheerer/hunter-screen-colors/internal/lights/openrgb"
	"github.com/scheerer/hunter-screen-colors/internal/screen"
	"github.com/scheerer/hunter-screen-colors/lights"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestProfileCommandPrintsDefault(t *testing.T) {
	t.Setenv("PROFILE_PATH", "")
	t.Setenv("LOG_FILE", "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"profile", "--env-file", missingEnvFile(t)})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "name: MelonPrimeDS")
	assert.Contains(t, out.String(), "name: VoltDriver")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, version+"\n", out.String())
}

func TestExecuteFailsOnInvalidConfig(t *testing.T) {
	t.Setenv("CONFIRM_COUNT", "1")
	assert.Equal(t, 1, execute(context.Background(), []string{"profile", "--env-file", missingEnvFile(t)}))
}

func TestNewHub(t *testing.T) {
	hub, err := hubFromConfig(&config.Config{LightType: config.LightOpenRGB, OpenRGBAddress: "127.0.0.1:1"})
	require.NoError(t, err)
	assert.IsType(t, &openrgb.Hub{}, hub)
	require.NoError(t, hub.Close())

	_, err = hubFromConfig(&config.Config{LightType: "HUE"})
	assert.Error(t, err)
}

type recordingHub struct {
	mu     sync.Mutex
	setErr error
	writes []lights.Color
	closed int
}

func (h *recordingHub) ListDevices(context.Context) ([]lights.Device, error) {
	return []lights.Device{{ID: "0", Name: "Desk strip"}}, nil
}

func (h *recordingHub) SetColor(_ context.Context, _ lights.DeviceID, c lights.Color) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.setErr != nil {
		return h.setErr
	}
	h.writes = append(h.writes, c)
	return nil
}

func (h *recordingHub) Close() error {
	h.closed++
	return nil
}

// windowCapturer shows a window filled with one colour and calls stop after the given
// number of captures.
type windowCapturer struct {
	fill   color.RGBA
	err    error
	after  int
	stop   func()
	calls  int
	closed int
}

func (c *windowCapturer) Capture(context.Context) (image.Image, error) {
	c.calls++
	if c.calls == c.after && c.stop != nil {
		c.stop()
	}
	if c.err != nil {
		return nil, c.err
	}
	img := image.NewRGBA(image.Rect(0, 0, 768, 409))
	for y := 0; y < 409; y++ {
		for x := 0; x < 768; x++ {
			img.SetRGBA(x, y, c.fill)
		}
	}
	return img, nil
}

func (c *windowCapturer) Close() error {
	c.closed++
	return nil
}

func withFakes(t *testing.T, hub *recordingHub, capturer *windowCapturer) {
	t.Helper()
	origHub, origCapturer := newHub, newCapturer
	t.Cleanup(func() { newHub, newCapturer = origHub, origCapturer })
	newHub = func(*config.Config) (lights.Hub, error) { return hub, nil }
	newCapturer = func(screen.Options) (screen.Capturer, error) { return capturer, nil }

	for k, v := range map[string]string{
		"PROFILE_PATH":         "",
		"LOG_FILE":             "",
		"LIGHT_DEVICE":         "",
		"CAPTURE_INTERVAL":     "1ms",
		"MAX_CAPTURE_FAILURES": "2",
		"HUB_RETRY_ATTEMPTS":   "2",
		"HUB_RETRY_BACKOFF":    "1ms",
		"RESTORE_ON_EXIT":      "true",
		"IDLE_COLOR":           "#000000",
	} {
		t.Setenv(k, v)
	}
}

var volt = color.RGBA{R: 0, G: 0x96, B: 0xff, A: 0xff}

func TestInterruptRestoresIdleColorAndExitsZero(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := &recordingHub{}
	capturer := &windowCapturer{fill: volt, after: 6, stop: cancel}
	withFakes(t, hub, capturer)

	code := execute(ctx, []string{"run", "--env-file", missingEnvFile(t)})

	assert.Equal(t, 0, code)
	assert.Equal(t, []lights.Color{lights.ColorOf(volt), {}}, hub.writes)
	assert.Equal(t, 1, hub.closed)
	assert.Equal(t, 1, capturer.closed)
}

func TestCaptureEscalationClosesSessionAndExitsNonZero(t *testing.T) {
	hub := &recordingHub{}
	capturer := &windowCapturer{err: screen.ErrCapture}
	withFakes(t, hub, capturer)

	code := execute(context.Background(), []string{"run", "--env-file", missingEnvFile(t)})

	assert.Equal(t, 1, code)
	assert.Equal(t, 2, capturer.calls)
	assert.Equal(t, []lights.Color{{}}, hub.writes, "idle colour still written on the way out")
	assert.Equal(t, 1, hub.closed)
	assert.Equal(t, 1, capturer.closed)
}

func TestHubEscalationExitsNonZero(t *testing.T) {
	hub := &recordingHub{setErr: lights.ErrHubUnavailable}
	capturer := &windowCapturer{fill: volt}
	withFakes(t, hub, capturer)

	code := execute(context.Background(), []string{"run", "--env-file", missingEnvFile(t)})

	assert.Equal(t, 1, code)
	assert.Empty(t, hub.writes)
	assert.Equal(t, 1, hub.closed)
}
