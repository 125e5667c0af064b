package screen

import (
	"image"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	BackendAuto    = "AUTO"
	BackendX11     = "X11"
	BackendCommand = "COMMAND"
)

type Options struct {
	Backend      string
	Command      []string
	WindowTitle  string
	WindowRect   image.Rectangle
	ScreenNumber int
	Timeout      time.Duration
}

var (
	lookPath  = exec.LookPath
	newFinder = func(title string) (Finder, error) { return NewX11Finder(title) }
)

// NewCapturer resolves the capture mechanism for the current session. AUTO prefers a
// configured rectangle, then X11, then an external command (explicit or Spectacle).
func NewCapturer(opts Options) (Capturer, error) {
	backend := strings.ToUpper(strings.TrimSpace(opts.Backend))
	if backend == "" {
		backend = BackendAuto
	}

	switch backend {
	case BackendX11:
		return newDisplayCapturer(opts)
	case BackendCommand:
		return newCommandCapturer(opts)
	case BackendAuto:
		if !opts.WindowRect.Empty() {
			return newDisplayCapturer(opts)
		}
		if os.Getenv("DISPLAY") != "" && os.Getenv("WAYLAND_DISPLAY") == "" {
			c, err := newDisplayCapturer(opts)
			if err == nil {
				return c, nil
			}
			logger.With(zap.Error(err)).Warn("X11 capture unavailable, trying capture command")
		}
		return newCommandCapturer(opts)
	default:
		return nil, errors.Errorf("unknown capture backend: %v, valid values are [AUTO, X11, COMMAND]", opts.Backend)
	}
}

func newDisplayCapturer(opts Options) (Capturer, error) {
	var finder Finder
	switch {
	case !opts.WindowRect.Empty():
		finder = StaticFinder{Rect: opts.WindowRect}
	case opts.WindowTitle != "":
		f, err := newFinder(opts.WindowTitle)
		if err != nil {
			return nil, errors.Wrapf(ErrNoBackend, "X11 window lookup: %v", err)
		}
		finder = f
	default:
		finder = DisplayFinder{Screen: opts.ScreenNumber}
	}
	logger.With(zap.Any("finder", finder)).Info("Using display capture")
	return NewDisplayCapturer(finder, opts.Timeout), nil
}

func newCommandCapturer(opts Options) (Capturer, error) {
	args := opts.Command
	if len(args) == 0 {
		if _, err := lookPath(SpectacleCommand[0]); err != nil {
			return nil, errors.Wrap(ErrNoBackend, "no CAPTURE_COMMAND configured and spectacle not found")
		}
		args = SpectacleCommand
	} else if _, err := lookPath(args[0]); err != nil {
		return nil, errors.Wrapf(ErrNoBackend, "capture command %q: %v", args[0], err)
	}
	logger.With(zap.Strings("command", args)).Info("Using capture command")
	return NewCommandCapturer(args, opts.Timeout)
}
