// Package palette maps weapon identities to the HUD colours they are recognised by and the
// colours shown on the lights while they are equipped.
package palette

import (
	"fmt"
	"image/color"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// Identity names a weapon. Unknown and Unarmed are reserved.
type Identity string

const (
	Unknown Identity = "Unknown"
	Unarmed Identity = "Unarmed"
)

func (i Identity) String() string {
	return string(i)
}

// Entry is one row of the palette. Display defaults to Reference when left zero-valued
// and HasDisplay is false.
type Entry struct {
	Identity   Identity
	Reference  color.RGBA
	Tolerance  float64
	Display    color.RGBA
	HasDisplay bool
}

func (e Entry) DisplayColor() color.RGBA {
	if e.HasDisplay {
		return e.Display
	}
	return e.Reference
}

type Table struct {
	entries  []Entry
	metric   Metric
	distance DistanceFunc

	unknownColor color.RGBA
	unarmedColor color.RGBA
}

type Option func(*Table)

func WithMetric(metric Metric) Option {
	return func(t *Table) {
		t.metric = metric
	}
}

// WithDefaultColors sets the display colours used for Unknown and for Unarmed when the
// palette has no Unarmed entry of its own.
func WithDefaultColors(unknown, unarmed color.RGBA) Option {
	return func(t *Table) {
		t.unknownColor = unknown
		t.unarmedColor = unarmed
	}
}

// NewTable validates entries and builds a table. Entries keep their declaration order,
// which breaks exact distance ties.
func NewTable(entries []Entry, opts ...Option) (*Table, error) {
	t := &Table{
		entries:      append([]Entry(nil), entries...),
		metric:       MetricRGB,
		unknownColor: color.RGBA{A: 0xff},
		unarmedColor: color.RGBA{A: 0xff},
	}
	for _, opt := range opts {
		opt(t)
	}

	distance, err := t.metric.Func()
	if err != nil {
		return nil, err
	}
	t.distance = distance

	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) validate() error {
	if len(t.entries) == 0 {
		return errors.New("palette has no entries")
	}

	seen := make(map[Identity]bool, len(t.entries))
	for _, e := range t.entries {
		switch {
		case strings.TrimSpace(string(e.Identity)) == "":
			return errors.New("palette entry has an empty name")
		case e.Identity == Unknown:
			return errors.Errorf("palette entry name %q is reserved", e.Identity)
		case seen[e.Identity]:
			return errors.Errorf("palette entry %q is declared twice", e.Identity)
		case e.Tolerance <= 0:
			return errors.Errorf("palette entry %q needs a positive tolerance, got %v", e.Identity, e.Tolerance)
		}
		seen[e.Identity] = true
	}

	// a reference colour inside another entry's radius would make that centre ambiguous
	for i, a := range t.entries {
		for j, b := range t.entries {
			if i == j {
				continue
			}
			if d := t.distance(a.Reference, b.Reference); d <= b.Tolerance {
				return errors.Errorf("palette entry %q reference colour lies within %q tolerance (distance %.2f <= %.2f)",
					a.Identity, b.Identity, d, b.Tolerance)
			}
		}
	}
	return nil
}

func (t *Table) Metric() Metric {
	return t.metric
}

func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Identities lists every identity the table can produce, Unknown and Unarmed included.
func (t *Table) Identities() []Identity {
	ids := make([]Identity, 0, len(t.entries)+2)
	hasUnarmed := false
	for _, e := range t.entries {
		ids = append(ids, e.Identity)
		if e.Identity == Unarmed {
			hasUnarmed = true
		}
	}
	if !hasUnarmed {
		ids = append(ids, Unarmed)
	}
	return append(ids, Unknown)
}

func (t *Table) Lookup(id Identity) (Entry, bool) {
	for _, e := range t.entries {
		if e.Identity == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Nearest returns the entry whose reference colour is closest to sample. Ties go to the
// entry declared first.
func (t *Table) Nearest(sample color.RGBA) (Entry, float64) {
	best := t.entries[0]
	bestDistance := t.distance(sample, best.Reference)
	for _, e := range t.entries[1:] {
		if d := t.distance(sample, e.Reference); d < bestDistance {
			best = e
			bestDistance = d
		}
	}
	return best, bestDistance
}

// Match classifies a single colour sample. A sample outside the nearest entry's
// tolerance is Unknown.
func (t *Table) Match(sample color.RGBA) Identity {
	e, d := t.Nearest(sample)
	if d <= e.Tolerance {
		return e.Identity
	}
	return Unknown
}

// DisplayColor resolves the colour the lights should show for id.
func (t *Table) DisplayColor(id Identity) color.RGBA {
	if e, ok := t.Lookup(id); ok {
		return e.DisplayColor()
	}
	if id == Unarmed {
		return t.unarmedColor
	}
	return t.unknownColor
}

// ParseHex parses "#rrggbb" (or "#rgb") into an opaque colour.
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, errors.Wrapf(err, "invalid colour %q", s)
	}
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
