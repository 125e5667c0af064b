package screen

import (
	"bytes"
	"context"
	"image"
	_ "image/png"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SpectacleCommand captures the active window with KDE Spectacle and writes a PNG to stdout.
var SpectacleCommand = []string{"spectacle", "-abne", "-d", "0", "-o", "/proc/self/fd/1"}

// CommandCapturer runs an external screenshot tool that prints an image of the target
// window to stdout. The window position is unknown, so the image keeps a zero origin.
type CommandCapturer struct {
	args    []string
	timeout time.Duration
}

func NewCommandCapturer(args []string, timeout time.Duration) (*CommandCapturer, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return nil, errors.Wrap(ErrNoBackend, "empty capture command")
	}
	return &CommandCapturer{args: args, timeout: timeout}, nil
}

func (c *CommandCapturer) Args() []string {
	return append([]string(nil), c.args...)
}

func (c *CommandCapturer) Capture(ctx context.Context) (image.Image, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.args[0], c.args[1:]...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		logger.With(zap.Strings("args", c.args), zap.String("stderr", stderr.String()), zap.Error(err)).
			Debug("Capture command failed")
		return nil, errors.Wrapf(ErrCapture, "running %s: %v", c.args[0], err)
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, errors.Wrapf(ErrCapture, "decoding output of %s: %v", c.args[0], err)
	}
	if img.Bounds().Empty() {
		return nil, errors.Wrapf(ErrWindowNotFound, "%s returned an empty image", c.args[0])
	}
	return img, nil
}
