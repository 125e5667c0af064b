// Package config reads process settings from the environment and the weapon/layout
// profile from YAML.
package config

import (
	"image"
	"image/color"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"

	"github.com/scheerer/hunter-screen-colors/internal/palette"
)

const (
	LightOpenRGB = "OPENRGB"
	LightLIFX    = "LIFX"
)

type Config struct {
	CaptureInterval time.Duration   `env:"CAPTURE_INTERVAL" envDefault:"150ms"`
	CaptureBackend  string          `env:"CAPTURE_BACKEND" envDefault:"AUTO"`
	CaptureCommand  []string        `env:"CAPTURE_COMMAND" envSeparator:" "`
	CaptureTimeout  time.Duration   `env:"CAPTURE_TIMEOUT" envDefault:"2s"`
	WindowTitle     string          `env:"WINDOW_TITLE" envDefault:"melonDS"`
	WindowRect      image.Rectangle `env:"WINDOW_RECT"`
	ScreenNumber    int             `env:"SCREEN_NUMBER" envDefault:"0"`

	ProfilePath  string `env:"PROFILE_PATH"`
	SampleAlgo   string `env:"SAMPLE_ALGO" envDefault:"AVERAGE"`
	SampleRadius int    `env:"SAMPLE_RADIUS" envDefault:"2"`
	ColorMetric  string `env:"COLOR_METRIC" envDefault:"RGB"`

	ConfirmCount       int `env:"CONFIRM_COUNT" envDefault:"3"`
	MaxCaptureFailures int `env:"MAX_CAPTURE_FAILURES" envDefault:"5"`

	LightType         string        `env:"LIGHT_TYPE" envDefault:"OPENRGB"`
	OpenRGBAddress    string        `env:"OPENRGB_ADDRESS" envDefault:"localhost:6742"`
	OpenRGBClientName string        `env:"OPENRGB_CLIENT_NAME" envDefault:"hunter-screen-colors"`
	LightDevice       string        `env:"LIGHT_DEVICE"`
	LightGroupName    string        `env:"LIGHT_GROUP_NAME"`
	MinBrightness     float64       `env:"MIN_BRIGHTNESS" envDefault:"0"`
	MaxBrightness     float64       `env:"MAX_BRIGHTNESS" envDefault:"1"`
	DeviceTimeout     time.Duration `env:"DEVICE_TIMEOUT" envDefault:"1s"`
	DiscoveryTimeout  time.Duration `env:"DISCOVERY_TIMEOUT" envDefault:"5s"`
	HubRetryAttempts  int           `env:"HUB_RETRY_ATTEMPTS" envDefault:"5"`
	HubRetryBackoff   time.Duration `env:"HUB_RETRY_BACKOFF" envDefault:"200ms"`
	RestoreOnExit     bool          `env:"RESTORE_ON_EXIT" envDefault:"true"`
	IdleColor         color.RGBA    `env:"IDLE_COLOR" envDefault:"#000000"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

var parsers = env.CustomParsers{
	reflect.TypeOf(image.Rectangle{}): func(v string) (interface{}, error) { return ParseRect(v) },
	reflect.TypeOf(color.RGBA{}):      func(v string) (interface{}, error) { return palette.ParseHex(v) },
}

// Load reads the given .env files (default ".env", missing files are ignored), then the
// environment. Variables already set in the environment win over .env entries.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !isNotExist(err) {
			return nil, errors.Wrapf(err, "loading %s", f)
		}
	}

	cfg := &Config{}
	if err := env.ParseWithFuncs(cfg, parsers); err != nil {
		return nil, errors.Wrap(err, "parsing environment")
	}

	var err error
	if cfg.ProfilePath, err = expand(cfg.ProfilePath); err != nil {
		return nil, err
	}
	if cfg.LogFile, err = expand(cfg.LogFile); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.CaptureInterval <= 0:
		return errors.Errorf("CAPTURE_INTERVAL must be positive, got %v", c.CaptureInterval)
	case c.ConfirmCount < 2:
		return errors.Errorf("CONFIRM_COUNT must be at least 2, got %d", c.ConfirmCount)
	case c.MaxCaptureFailures < 1:
		return errors.Errorf("MAX_CAPTURE_FAILURES must be at least 1, got %d", c.MaxCaptureFailures)
	case c.HubRetryAttempts < 1:
		return errors.Errorf("HUB_RETRY_ATTEMPTS must be at least 1, got %d", c.HubRetryAttempts)
	case c.SampleRadius < 0:
		return errors.Errorf("SAMPLE_RADIUS must not be negative, got %d", c.SampleRadius)
	case c.MinBrightness < 0 || c.MaxBrightness > 1 || c.MinBrightness > c.MaxBrightness:
		return errors.Errorf("brightness range %v-%v must lie within 0-1", c.MinBrightness, c.MaxBrightness)
	}

	c.LightType = strings.ToUpper(strings.TrimSpace(c.LightType))
	if c.LightType != LightOpenRGB && c.LightType != LightLIFX {
		return errors.Errorf("unknown light type: %v, valid values are [OPENRGB, LIFX]", c.LightType)
	}
	return nil
}

// ParseRect parses "x,y,w,h" into a rectangle. An empty string is the zero rectangle.
func ParseRect(s string) (image.Rectangle, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return image.Rectangle{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, errors.Errorf("window rect %q must be x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, errors.Wrapf(err, "window rect %q", s)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, errors.Errorf("window rect %q needs a positive width and height", s)
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	p, err := homedir.Expand(path)
	if err != nil {
		return "", errors.Wrapf(err, "expanding %s", path)
	}
	return p, nil
}
