package openrgb

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/scheerer/hunter-screen-colors/lights"
)

type Config struct {
	Address    string
	ClientName string
}

// Hub exposes OpenRGB controllers as lighting devices. The connection is opened lazily
// and dropped after any I/O failure, so the next call reconnects.
type Hub struct {
	config Config
	dial   func(ctx context.Context, address, name string) (*Client, error)

	mu     sync.Mutex
	client *Client
	leds   map[uint32]int
	custom map[uint32]bool
}

func NewHub(config Config) *Hub {
	if config.Address == "" {
		config.Address = DefaultAddress
	}
	return &Hub{
		config: config,
		dial:   Dial,
		leds:   make(map[uint32]int),
		custom: make(map[uint32]bool),
	}
}

func (h *Hub) connect(ctx context.Context) (*Client, error) {
	if h.client != nil {
		return h.client, nil
	}
	client, err := h.dial(ctx, h.config.Address, h.config.ClientName)
	if err != nil {
		return nil, errors.Wrap(lights.ErrHubUnavailable, err.Error())
	}
	h.client = client
	h.custom = make(map[uint32]bool)
	return client, nil
}

// drop closes a failed connection and marks err as a hub failure.
func (h *Hub) drop(err error) error {
	if h.client != nil {
		_ = h.client.Close()
		h.client = nil
	}
	logger.With(zap.Error(err)).Warn("OpenRGB connection lost")
	return errors.Wrap(lights.ErrHubUnavailable, err.Error())
}

func (h *Hub) ListDevices(ctx context.Context) ([]lights.Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, err := h.connect(ctx)
	if err != nil {
		return nil, err
	}
	controllers, err := client.Controllers(ctx)
	if err != nil {
		return nil, h.drop(err)
	}

	devices := make([]lights.Device, 0, len(controllers))
	for i, c := range controllers {
		h.leds[uint32(i)] = ledCount(c)
		devices = append(devices, lights.Device{ID: lights.DeviceID(strconv.Itoa(i)), Name: c.Name})
	}
	return devices, nil
}

func ledCount(c Controller) int {
	if len(c.Colors) > 0 {
		return len(c.Colors)
	}
	return len(c.LEDs)
}

// SetColor switches the controller to its custom mode on first use and sets every LED to c.
func (h *Hub) SetColor(ctx context.Context, id lights.DeviceID, c lights.Color) error {
	index, err := strconv.ParseUint(string(id), 10, 32)
	if err != nil {
		return errors.Errorf("invalid OpenRGB device id %q", id)
	}
	idx := uint32(index)

	h.mu.Lock()
	defer h.mu.Unlock()

	client, err := h.connect(ctx)
	if err != nil {
		return err
	}

	n, ok := h.leds[idx]
	if !ok {
		controller, err := client.Controller(ctx, idx)
		if err != nil {
			return h.drop(err)
		}
		n = ledCount(controller)
		h.leds[idx] = n
	}
	if n == 0 {
		return errors.Errorf("OpenRGB device %d has no LEDs", idx)
	}

	if !h.custom[idx] {
		if err := client.SetCustomMode(ctx, idx); err != nil {
			return h.drop(err)
		}
		h.custom[idx] = true
	}

	colors := make([]RGB, n)
	for i := range colors {
		colors[i] = RGB{R: c.Red, G: c.Green, B: c.Blue}
	}
	if err := client.UpdateLEDs(ctx, idx, colors); err != nil {
		return h.drop(err)
	}
	return nil
}

func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil
	}
	err := h.client.Close()
	h.client = nil
	return err
}
