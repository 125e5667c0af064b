package lifx

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pdf/golifx"
	"github.com/pdf/golifx/common"
	"github.com/pdf/golifx/protocol"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/scheerer/hunter-screen-colors/internal/logging"
	"github.com/scheerer/hunter-screen-colors/internal/util"
	"github.com/scheerer/hunter-screen-colors/lights"
)

var logger = logging.New("lifx")

const groupPrefix = "group:"

type Config struct {
	// GroupName addresses a whole LIFX group as one device. Empty lists individual lights.
	GroupName     string
	MaxBrightness float64
	MinBrightness float64
	Transition    time.Duration
}

type client interface {
	GetLights() ([]common.Light, error)
	GetLightByID(id uint64) (common.Light, error)
	GetGroupByLabel(label string) (common.Group, error)
	Close() error
}

// Hub drives LIFX bulbs on the local network. golifx discovers in the background, so
// ListDevices polls until something shows up or the context ends.
type Hub struct {
	config Config
	client client
}

func NewHub(config Config) (*Hub, error) {
	c, err := golifx.NewClient(&protocol.V2{})
	if err != nil {
		return nil, errors.Wrap(lights.ErrHubUnavailable, err.Error())
	}
	c.SetDiscoveryInterval(15 * time.Second)
	return &Hub{config: config, client: c}, nil
}

func (h *Hub) ListDevices(ctx context.Context) ([]lights.Device, error) {
	logger.With(zap.String("group", h.config.GroupName)).Info("LIFX discovery starting...")

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		devices, err := h.discover(ctx)
		if err != nil {
			return nil, err
		}
		if len(devices) > 0 {
			logger.With(zap.Int("devices", len(devices))).Info("LIFX discovery complete")
			return devices, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			logger.With(zap.Error(ctx.Err())).Warn("LIFX discovery timed out.")
			return nil, nil
		}
	}
}

func (h *Hub) discover(ctx context.Context) ([]lights.Device, error) {
	if h.config.GroupName != "" {
		g, err := call(ctx, func() (common.Group, error) { return h.client.GetGroupByLabel(h.config.GroupName) })
		if errors.Is(err, common.ErrNotFound) || g == nil {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []lights.Device{{ID: lights.DeviceID(groupPrefix + g.GetLabel()), Name: g.GetLabel()}}, nil
	}

	found, err := call(ctx, h.client.GetLights)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	devices := make([]lights.Device, 0, len(found))
	for _, l := range found {
		label, err := l.GetLabel()
		if err != nil {
			logger.With(zap.Uint64("id", l.ID()), zap.Error(err)).Debug("Failed to get LIFX label")
		}
		devices = append(devices, lights.Device{ID: lights.DeviceID(strconv.FormatUint(l.ID(), 10)), Name: label})
	}
	return devices, nil
}

func (h *Hub) SetColor(ctx context.Context, id lights.DeviceID, color lights.Color) error {
	lifxColor := adjustColor(newLifxColor(color), h.config)

	logger.With(zap.Stringer("color", color),
		zap.Any("lifxColor", lifxColor)).
		Debug("Setting LIFX device color")

	_, err := call(ctx, func() (struct{}, error) {
		if label, ok := strings.CutPrefix(string(id), groupPrefix); ok {
			g, err := h.client.GetGroupByLabel(label)
			if err != nil {
				return struct{}{}, err
			}
			return struct{}{}, g.SetColor(lifxColor, h.config.Transition)
		}

		n, err := strconv.ParseUint(string(id), 10, 64)
		if err != nil {
			return struct{}{}, errors.Errorf("invalid LIFX device id %q", id)
		}
		l, err := h.client.GetLightByID(n)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, l.SetColor(lifxColor, h.config.Transition)
	})
	if err != nil {
		logger.With(zap.Error(err)).Warn("Failed to set color for LIFX device")
		return errors.Wrap(lights.ErrHubUnavailable, err.Error())
	}
	return nil
}

func (h *Hub) Close() error {
	return h.client.Close()
}

// call runs a blocking golifx call, giving up when ctx ends. The call itself keeps running.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func newLifxColor(color lights.Color) common.Color {
	hue, saturation, brightness := util.RgbToHsb(color.Red, color.Green, color.Blue)

	return common.Color{
		Hue:        hue,
		Saturation: saturation,
		Brightness: brightness,
		Kelvin:     3500,
	}
}

func adjustColor(color common.Color, config Config) common.Color {
	blackThreshold := 0.015 * 0xFFFF
	if color.Brightness <= uint16(blackThreshold) && color.Saturation <= uint16(blackThreshold) {
		// blackish color - turn off the light
		return common.Color{
			Hue:        0,
			Saturation: 0,
			Brightness: 0,
			Kelvin:     3500,
		}
	}

	color.Brightness = uint16(math.Min(config.MaxBrightness*0xFFFF, math.Max(config.MinBrightness*0xFFFF, float64(color.Brightness))))

	return color
}
