// Package weaponsync runs the poll loop that keeps the lights in step with the weapon
// shown on screen.
package weaponsync

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/scheerer/hunter-screen-colors/internal/classifier"
	"github.com/scheerer/hunter-screen-colors/internal/layout"
	"github.com/scheerer/hunter-screen-colors/internal/logging"
	"github.com/scheerer/hunter-screen-colors/internal/palette"
	"github.com/scheerer/hunter-screen-colors/internal/screen"
)

var logger = logging.New("weaponsync")

var (
	// ErrCaptureEscalated ends the loop after too many consecutive capture or window failures.
	ErrCaptureEscalated = errors.New("too many consecutive capture failures")
	// ErrHubEscalated ends the loop when a device write keeps failing after all retries.
	ErrHubEscalated = errors.New("lighting hub did not recover")
)

// StartupError is a fatal condition found before the loop starts.
type StartupError struct {
	Collaborator string
	Err          error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Collaborator, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// Startup wraps err as a StartupError for collaborator, or returns nil.
func Startup(collaborator string, err error) error {
	if err == nil {
		return nil
	}
	return &StartupError{Collaborator: collaborator, Err: err}
}

// Session is the part of lights.Session the loop drives.
type Session interface {
	EnsureColor(ctx context.Context, id palette.Identity) (bool, error)
}

type Config struct {
	Interval           time.Duration
	MaxCaptureFailures int
	RetryAttempts      int
	RetryBackoff       time.Duration
}

type Stats struct {
	Cycles          int
	Writes          int
	CaptureFailures int
}

type timings struct {
	capture time.Duration
	sample  time.Duration
	apply   time.Duration
}

type Loop struct {
	config     Config
	capturer   screen.Capturer
	layout     layout.Profile
	sampler    *screen.Sampler
	classifier *classifier.Classifier
	session    Session

	sleep func(ctx context.Context, d time.Duration) error

	stats   Stats
	timings timings
}

func New(config Config, capturer screen.Capturer, profile layout.Profile, sampler *screen.Sampler,
	c *classifier.Classifier, session Session) (*Loop, error) {
	switch {
	case config.Interval <= 0:
		return nil, errors.Errorf("capture interval must be positive, got %v", config.Interval)
	case config.MaxCaptureFailures < 1:
		return nil, errors.Errorf("capture failure threshold must be at least 1, got %d", config.MaxCaptureFailures)
	case config.RetryAttempts < 1:
		return nil, errors.Errorf("hub retry attempts must be at least 1, got %d", config.RetryAttempts)
	case capturer == nil || sampler == nil || c == nil || session == nil:
		return nil, errors.New("sync loop is missing a collaborator")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	return &Loop{
		config:     config,
		capturer:   capturer,
		layout:     profile,
		sampler:    sampler,
		classifier: c,
		session:    session,
		sleep:      sleep,
	}, nil
}

func (l *Loop) Stats() Stats {
	return l.stats
}

// Run polls at the configured interval until ctx is cancelled, which returns nil, or a
// failure escalates, which returns the error. Cycles never overlap.
func (l *Loop) Run(ctx context.Context) error {
	logger.With(zap.Duration("interval", l.config.Interval), zap.String("layout", l.layout.Name)).
		Info("Weapon sync started")

	var lastWarning time.Time
	for {
		if ctx.Err() != nil {
			logger.With(zap.Int("cycles", l.stats.Cycles), zap.Int("writes", l.stats.Writes)).
				Info("Weapon sync stopped")
			return nil
		}

		startTime := time.Now()
		if err := l.Cycle(ctx); err != nil {
			return err
		}

		totalDuration := time.Since(startTime)
		if totalDuration > l.config.Interval {
			if time.Since(lastWarning) > 10*time.Second {
				logger.With(
					zap.Stringer("captureDuration", l.timings.capture),
					zap.Stringer("sampleDuration", l.timings.sample),
					zap.Stringer("setColorDuration", l.timings.apply),
					zap.Stringer("totalDuration", totalDuration)).
					Warn("Cannot keep up with CAPTURE_INTERVAL. Consider increasing CAPTURE_INTERVAL or reducing SAMPLE_RADIUS.")
				lastWarning = time.Now()
			}
			continue
		}
		_ = l.sleep(ctx, l.config.Interval-totalDuration)
	}
}

// Cycle runs one capture, locate, sample, classify and apply pass. Recoverable failures
// are counted and swallowed; only escalations are returned.
func (l *Loop) Cycle(ctx context.Context) error {
	l.stats.Cycles++
	l.timings = timings{}

	startTime := time.Now()
	img, err := l.capturer.Capture(ctx)
	l.timings.capture = time.Since(startTime)
	if err != nil {
		return l.captureFailed(ctx, err)
	}

	sampleStart := time.Now()
	placement, err := layout.Locate(img.Bounds(), l.layout)
	if err != nil {
		return l.captureFailed(ctx, err)
	}
	sample, err := l.sampler.Sample(img, placement.Points)
	l.timings.sample = time.Since(sampleStart)
	if err != nil {
		return l.captureFailed(ctx, err)
	}

	if l.stats.CaptureFailures > 0 {
		logger.With(zap.Int("failures", l.stats.CaptureFailures)).Info("Capture recovered")
		l.stats.CaptureFailures = 0
	}

	current, defined, changed := l.classifier.Observe(sample)
	if changed {
		logger.With(zap.Stringer("weapon", current), zap.String("sample", palette.Hex(sample))).
			Info("New weapon detected")
	}
	if !defined {
		return nil
	}

	applyStart := time.Now()
	err = l.apply(ctx, current)
	l.timings.apply = time.Since(applyStart)
	return err
}

func (l *Loop) captureFailed(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}

	l.stats.CaptureFailures++
	n := l.stats.CaptureFailures
	logger.With(zap.Error(err), zap.Int("consecutive", n), zap.Int("limit", l.config.MaxCaptureFailures)).
		Warn("Failed to capture weapon region")
	if n >= l.config.MaxCaptureFailures {
		return errors.Wrapf(ErrCaptureEscalated, "%d in a row, last: %v", n, err)
	}
	return nil
}

// apply makes the lights show id, retrying failed writes with exponential backoff.
func (l *Loop) apply(ctx context.Context, id palette.Identity) error {
	backoff := l.config.RetryBackoff
	for attempt := 1; ; attempt++ {
		wrote, err := l.session.EnsureColor(ctx, id)
		if err == nil {
			if wrote {
				l.stats.Writes++
			}
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		if attempt >= l.config.RetryAttempts {
			return errors.Wrapf(ErrHubEscalated, "%d attempts, last: %v", attempt, err)
		}

		logger.With(zap.Error(err), zap.Int("attempt", attempt), zap.Duration("backoff", backoff)).
			Warn("Failed to set lighting color, retrying")
		if err := l.sleep(ctx, backoff); err != nil {
			return nil
		}
		backoff *= 2
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
