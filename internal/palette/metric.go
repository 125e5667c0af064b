package palette

import (
	"image/color"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// Metric selects how distance between two colours is measured. Tolerances are expressed
// in the metric's own unit: 0-255 Euclidean for RGB, delta E (x100) for LAB and CIEDE2000.
type Metric string

const (
	MetricRGB       Metric = "RGB"
	MetricLab       Metric = "LAB"
	MetricCIEDE2000 Metric = "CIEDE2000"
)

type DistanceFunc func(a, b color.RGBA) float64

func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToUpper(strings.TrimSpace(s)))
	if _, err := m.Func(); err != nil {
		return "", err
	}
	return m, nil
}

func (m Metric) Func() (DistanceFunc, error) {
	switch m {
	case MetricRGB:
		return RGBDistance, nil
	case MetricLab:
		return func(a, b color.RGBA) float64 {
			return toColorful(a).DistanceLab(toColorful(b)) * 100
		}, nil
	case MetricCIEDE2000:
		return func(a, b color.RGBA) float64 {
			return toColorful(a).DistanceCIEDE2000(toColorful(b)) * 100
		}, nil
	default:
		return nil, errors.Errorf("unknown colour metric %q, valid values are [RGB, LAB, CIEDE2000]", string(m))
	}
}

// RGBDistance is the Euclidean distance between two colours on the 0-255 scale.
func RGBDistance(a, b color.RGBA) float64 {
	return toColorful(a).DistanceRgb(toColorful(b)) * 255
}

func toColorful(c color.RGBA) colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}
