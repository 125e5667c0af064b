// Package classifier turns a stream of colour samples into a stable weapon identity.
package classifier

import (
	"image/color"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/scheerer/hunter-screen-colors/internal/logging"
	"github.com/scheerer/hunter-screen-colors/internal/palette"
)

var logger = logging.New("classifier")

const DefaultConfirmCount = 3

// State is the hysteresis state. Current is meaningless until Defined is true.
type State struct {
	Current palette.Identity
	Defined bool
	Pending palette.Identity
	Count   int
}

type Classifier struct {
	table   *palette.Table
	confirm int

	mu    sync.Mutex
	state State
}

// New builds a classifier that adopts a candidate after confirm consecutive polls.
func New(table *palette.Table, confirm int) (*Classifier, error) {
	if table == nil {
		return nil, errors.New("classifier needs a palette")
	}
	if confirm < 2 {
		return nil, errors.Errorf("confirmation count must be at least 2, got %d", confirm)
	}
	return &Classifier{table: table, confirm: confirm}, nil
}

// Classify matches a single sample without touching the hysteresis state.
func (c *Classifier) Classify(sample color.RGBA) palette.Identity {
	return c.table.Match(sample)
}

// Observe feeds one sample through the hysteresis. It returns the confirmed identity,
// whether one has been confirmed yet, and whether this sample changed it.
func (c *Classifier) Observe(sample color.RGBA) (palette.Identity, bool, bool) {
	candidate := c.Classify(sample)

	c.mu.Lock()
	defer c.mu.Unlock()

	s := &c.state
	if s.Count > 0 && candidate == s.Pending {
		s.Count++
	} else {
		s.Pending = candidate
		s.Count = 1
	}

	changed := false
	if s.Count >= c.confirm && (!s.Defined || candidate != s.Current) {
		logger.With(
			zap.Stringer("from", s.Current),
			zap.Stringer("to", candidate),
			zap.Int("polls", s.Count)).
			Debug("Identity confirmed")
		s.Current = candidate
		s.Defined = true
		changed = true
	}
	return s.Current, s.Defined, changed
}

func (c *Classifier) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reset forgets the confirmed identity and any pending candidate.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{}
}

func (c *Classifier) ConfirmCount() int {
	return c.confirm
}
