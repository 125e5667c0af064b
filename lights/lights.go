package lights

import (
	"context"
	"fmt"
	"image/color"

	"github.com/pkg/errors"

	"github.com/scheerer/hunter-screen-colors/internal/logging"
)

var logger = logging.New("lights")

var (
	// ErrHubUnavailable means the lighting hub could not be reached or dropped the connection.
	ErrHubUnavailable = errors.New("lighting hub unavailable")
	// ErrNoDevices means the hub reported no controllable devices.
	ErrNoDevices = errors.New("no lighting devices found")
	// ErrNoSelection means no single device could be chosen from the candidates.
	ErrNoSelection = errors.New("no lighting device selected")
)

type Color struct {
	Red   uint8
	Green uint8
	Blue  uint8
}

func ColorOf(c color.RGBA) Color {
	return Color{Red: c.R, Green: c.G, Blue: c.B}
}

func (c Color) RGBA() color.RGBA {
	return color.RGBA{R: c.Red, G: c.Green, B: c.Blue, A: 0xff}
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.Red, c.Green, c.Blue)
}

type DeviceID string

type Device struct {
	ID   DeviceID
	Name string
}

func (d Device) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.ID)
}

// Hub is a connection to a lighting controller that can enumerate devices and set a
// single colour across all of a device's LEDs.
type Hub interface {
	ListDevices(ctx context.Context) ([]Device, error)
	SetColor(ctx context.Context, id DeviceID, c Color) error
	Close() error
}
