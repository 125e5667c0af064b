package screen

import (
	"context"
	"image"
	"io"
	"sync/atomic"
	"time"

	"github.com/kbinani/screenshot"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/scheerer/hunter-screen-colors/internal/logging"
)

var logger = logging.New("screen")

var (
	// ErrCapture marks a failed capture attempt. Recoverable for one cycle.
	ErrCapture = errors.New("screen capture failed")
	// ErrWindowNotFound marks a target window that is missing, unmapped or not fully on screen.
	ErrWindowNotFound = errors.New("window not found")
	// ErrNoBackend means no capture mechanism could be resolved at startup.
	ErrNoBackend = errors.New("no capture backend available")
)

// Capturer produces an image of the target window. The returned image's Bounds() is the
// window's bounding box; backends that know the window position report it in screen
// coordinates, others report it with a zero origin.
type Capturer interface {
	Capture(ctx context.Context) (image.Image, error)
}

// Finder locates the target window on screen.
type Finder interface {
	Find(ctx context.Context) (image.Rectangle, error)
}

// StaticFinder always reports the same rectangle.
type StaticFinder struct {
	Rect image.Rectangle
}

func (f StaticFinder) Find(context.Context) (image.Rectangle, error) {
	if f.Rect.Empty() {
		return image.Rectangle{}, errors.Wrap(ErrWindowNotFound, "configured window rect is empty")
	}
	return f.Rect, nil
}

// DisplayFinder reports the bounds of a whole display.
type DisplayFinder struct {
	Screen int
}

func (f DisplayFinder) Find(context.Context) (image.Rectangle, error) {
	if n := screenshot.NumActiveDisplays(); f.Screen < 0 || f.Screen >= n {
		return image.Rectangle{}, errors.Wrapf(ErrWindowNotFound, "display %d not active (%d displays)", f.Screen, n)
	}
	return screenshot.GetDisplayBounds(f.Screen), nil
}

// DisplayCapturer grabs the window's box from the screen with kbinani/screenshot.
type DisplayCapturer struct {
	finder  Finder
	timeout time.Duration

	grab    func(image.Rectangle) (*image.RGBA, error)
	desktop func() image.Rectangle

	inflight atomic.Bool
}

func NewDisplayCapturer(finder Finder, timeout time.Duration) *DisplayCapturer {
	return &DisplayCapturer{
		finder:  finder,
		timeout: timeout,
		grab:    screenshot.CaptureRect,
		desktop: desktopBounds,
	}
}

// Close releases the finder when it holds a connection, such as the X11 finder's.
func (c *DisplayCapturer) Close() error {
	if closer, ok := c.finder.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func desktopBounds() image.Rectangle {
	var all image.Rectangle
	for i := 0; i < screenshot.NumActiveDisplays(); i++ {
		all = all.Union(screenshot.GetDisplayBounds(i))
	}
	return all
}

type grabResult struct {
	img *image.RGBA
	err error
}

func (c *DisplayCapturer) Capture(ctx context.Context) (image.Image, error) {
	rect, err := c.finder.Find(ctx)
	if err != nil {
		return nil, err
	}
	if desktop := c.desktop(); !rect.In(desktop) {
		return nil, errors.Wrapf(ErrWindowNotFound, "window %v is not fully visible on desktop %v", rect, desktop)
	}

	// a grab abandoned by a timeout may still be running; never start a second one
	if !c.inflight.CompareAndSwap(false, true) {
		return nil, errors.Wrap(ErrCapture, "previous capture still in progress")
	}

	done := make(chan grabResult, 1)
	go func() {
		img, err := c.grab(rect)
		c.inflight.Store(false)
		done <- grabResult{img: img, err: err}
	}()

	var timeout <-chan time.Time
	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-done:
		if res.err != nil {
			return nil, errors.Wrapf(ErrCapture, "capturing %v: %v", rect, res.err)
		}
		// report pixels in screen coordinates so sample points can be absolute
		res.img.Rect = res.img.Rect.Add(rect.Min.Sub(res.img.Rect.Min))
		return res.img, nil
	case <-timeout:
		logger.With(zap.Stringer("rect", rect), zap.Duration("timeout", c.timeout)).Warn("Screen capture timed out")
		return nil, errors.Wrapf(ErrCapture, "capturing %v: timed out after %v", rect, c.timeout)
	case <-ctx.Done():
		return nil, errors.Wrap(ErrCapture, ctx.Err().Error())
	}
}
