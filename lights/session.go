package lights

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/scheerer/hunter-screen-colors/internal/palette"
)

type SessionOptions struct {
	// Preference is a device ID or name substring, see SelectDevice.
	Preference string
	// Timeout bounds each device write. Zero means no bound.
	Timeout time.Duration
	// DiscoveryTimeout bounds listing devices at startup, not the selection prompt.
	DiscoveryTimeout time.Duration

	IdleColor     Color
	RestoreOnExit bool
}

// State is what the session last wrote to the device. Written is false until the first
// confirmed write.
type State struct {
	Applied  Color
	Identity palette.Identity
	Written  bool
}

// Session owns the hub connection and the selected device for one run.
type Session struct {
	hub    Hub
	device Device
	table  *palette.Table
	opts   SessionOptions

	mu     sync.Mutex
	state  State
	closed bool
}

// OpenSession enumerates the hub's devices and selects one, asking selector only when the
// preference does not decide. The session owns hub from here on: it is closed if opening
// fails.
func OpenSession(ctx context.Context, hub Hub, selector Selector, table *palette.Table, opts SessionOptions) (*Session, error) {
	if table == nil {
		_ = hub.Close()
		return nil, errors.New("session needs a palette")
	}

	device, err := selectFromHub(ctx, hub, selector, opts)
	if err != nil {
		if cerr := hub.Close(); cerr != nil {
			logger.With(zap.Error(cerr)).Warn("Failed to close lighting hub")
		}
		return nil, err
	}

	logger.With(zap.Stringer("device", device)).Info("Lighting device selected")
	return &Session{
		hub:    hub,
		device: device,
		table:  table,
		opts:   opts,
	}, nil
}

func selectFromHub(ctx context.Context, hub Hub, selector Selector, opts SessionOptions) (Device, error) {
	listCtx, cancel := withTimeout(ctx, opts.DiscoveryTimeout)
	devices, err := hub.ListDevices(listCtx)
	cancel()
	if err != nil {
		if errors.Is(err, ErrHubUnavailable) {
			return Device{}, err
		}
		return Device{}, errors.Wrapf(ErrHubUnavailable, "listing devices: %v", err)
	}

	device, err := SelectDevice(devices, opts.Preference)
	if err == nil {
		return device, nil
	}
	if !errors.Is(err, ErrNoSelection) || selector == nil {
		return Device{}, err
	}

	logger.With(zap.Error(err), zap.Int("devices", len(devices))).Info("Device selection required")
	return selector.Select(ctx, devices)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Session) Device() Device {
	return s.device
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EnsureColor makes the device show the colour for id. The device is only written when
// that colour differs from the last confirmed write; wrote reports whether a write
// happened. State is left untouched when the write fails.
func (s *Session) EnsureColor(ctx context.Context, id palette.Identity) (bool, error) {
	return s.ensure(ctx, id, ColorOf(s.table.DisplayColor(id)))
}

func (s *Session) ensure(ctx context.Context, id palette.Identity, target Color) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, errors.New("lighting session closed")
	}
	if s.state.Written && s.state.Applied == target {
		s.state.Identity = id
		return false, nil
	}

	writeCtx, cancel := withTimeout(ctx, s.opts.Timeout)
	defer cancel()
	start := time.Now()
	if err := s.hub.SetColor(writeCtx, s.device.ID, target); err != nil {
		return false, errors.Wrapf(err, "setting %s to %s", s.device.Name, target)
	}

	logger.With(
		zap.Stringer("identity", id),
		zap.Stringer("color", target),
		zap.Duration("took", time.Since(start))).
		Info("Lighting updated")
	s.state = State{Applied: target, Identity: id, Written: true}
	return true, nil
}

// Close writes the idle colour when RestoreOnExit is set and releases the hub. It is safe
// to call more than once; only the first call does anything.
func (s *Session) Close(ctx context.Context) error {
	var err error
	if s.opts.RestoreOnExit {
		if _, rerr := s.ensure(ctx, palette.Unknown, s.opts.IdleColor); rerr != nil {
			err = multierr.Append(err, errors.Wrap(rerr, "restoring idle colour"))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return multierr.Append(err, s.hub.Close())
}
