package config

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/scheerer/hunter-screen-colors/internal/layout"
	"github.com/scheerer/hunter-screen-colors/internal/palette"
)

// Weapon is one palette row in a profile. Sense is the HUD colour that identifies the
// weapon, Show the colour put on the lights (Sense when empty).
type Weapon struct {
	Name      string  `yaml:"name"`
	Sense     string  `yaml:"sense"`
	Show      string  `yaml:"show,omitempty"`
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// Profile ties a window layout to the weapon palette shown in it.
type Profile struct {
	Layout       layout.Profile `yaml:"layout"`
	Tolerance    float64        `yaml:"tolerance"`
	UnknownColor string         `yaml:"unknown_color"`
	UnarmedColor string         `yaml:"unarmed_color"`
	Weapons      []Weapon       `yaml:"weapons"`
}

// DefaultProfile is MelonPrimeDS in its hybrid layout: the 25px menu bar on top, the main
// screen on the left two thirds, the touch screen HUD in the bottom right third.
func DefaultProfile() Profile {
	return Profile{
		Layout: layout.Profile{
			Name:     "MelonPrimeDS",
			InsetTop: 25,
			Content:  layout.Size{Width: 768, Height: 384},
			Region:   layout.Rect{X: 2.0 / 3.0, Y: 0.5, Width: 1.0 / 3.0, Height: 0.5},
			Points:   []layout.Point{{X: 0.5, Y: 0.12}},
		},
		Tolerance:    30,
		UnknownColor: "#000000",
		UnarmedColor: "#000000",
		Weapons: []Weapon{
			{Name: "PowerBeam", Sense: "#ffc83c", Show: "#ff7800"},
			{Name: "Missile", Sense: "#00c800"},
			{Name: "VoltDriver", Sense: "#0096ff"},
			{Name: "BattleHammer", Sense: "#28dc64"},
			{Name: "Imperialist", Sense: "#ff2828"},
			{Name: "Judicator", Sense: "#8ce6ff"},
			{Name: "Magmaul", Sense: "#ff5a00"},
			{Name: "ShockCoil", Sense: "#aaff28"},
			{Name: "OmegaCannon", Sense: "#c878ff"},
		},
	}
}

// LoadProfile returns the default profile with the YAML file at path merged over it.
// Lists in the file replace the defaults. An empty path returns the default.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}
	path, err := expand(path)
	if err != nil {
		return Profile{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, errors.Wrap(err, "reading profile")
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, errors.Wrapf(err, "parsing profile %s", path)
	}
	if err := p.Layout.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func WriteProfile(w io.Writer, p Profile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}

// Table builds the palette the classifier matches against.
func (p Profile) Table(metric palette.Metric) (*palette.Table, error) {
	unknown, err := palette.ParseHex(or(p.UnknownColor, "#000000"))
	if err != nil {
		return nil, errors.Wrap(err, "unknown_color")
	}
	unarmed, err := palette.ParseHex(or(p.UnarmedColor, "#000000"))
	if err != nil {
		return nil, errors.Wrap(err, "unarmed_color")
	}

	entries := make([]palette.Entry, 0, len(p.Weapons))
	for _, w := range p.Weapons {
		sense, err := palette.ParseHex(w.Sense)
		if err != nil {
			return nil, errors.Wrapf(err, "weapon %q sense", w.Name)
		}
		e := palette.Entry{
			Identity:  palette.Identity(w.Name),
			Reference: sense,
			Tolerance: w.Tolerance,
		}
		if e.Tolerance == 0 {
			e.Tolerance = p.Tolerance
		}
		if w.Show != "" {
			if e.Display, err = palette.ParseHex(w.Show); err != nil {
				return nil, errors.Wrapf(err, "weapon %q show", w.Name)
			}
			e.HasDisplay = true
		}
		entries = append(entries, e)
	}

	return palette.NewTable(entries,
		palette.WithMetric(metric),
		palette.WithDefaultColors(unknown, unarmed))
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
