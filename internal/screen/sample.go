package screen

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Sampler reads one colour per call from a captured window image. Each point is reduced
// over a (2*Radius+1)² patch and the per-point colours are averaged.
type Sampler struct {
	Reduce   ReduceFunc
	Radius   int
	GridSize int
}

func NewSampler(algorithm string, radius int) (*Sampler, error) {
	reduce, err := ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	if radius < 0 {
		return nil, errors.Errorf("sample radius must not be negative, got %d", radius)
	}
	return &Sampler{Reduce: reduce, Radius: radius, GridSize: 1}, nil
}

// Patch is the area reduced for point p, clipped to bounds.
func (s *Sampler) Patch(p image.Point, bounds image.Rectangle) image.Rectangle {
	return image.Rect(p.X-s.Radius, p.Y-s.Radius, p.X+s.Radius+1, p.Y+s.Radius+1).Intersect(bounds)
}

// SamplePoints returns the reduced colour of every point, in order.
func (s *Sampler) SamplePoints(img image.Image, points []image.Point) ([]color.RGBA, error) {
	if len(points) == 0 {
		return nil, errors.New("no sample points")
	}

	colors := make([]color.RGBA, 0, len(points))
	for _, p := range points {
		patch := s.Patch(p, img.Bounds())
		if patch.Empty() {
			return nil, errors.Wrapf(ErrWindowNotFound, "sample point %v outside captured image %v", p, img.Bounds())
		}
		colors = append(colors, s.Reduce(img, patch, s.GridSize))
	}
	return colors, nil
}

func (s *Sampler) Sample(img image.Image, points []image.Point) (color.RGBA, error) {
	colors, err := s.SamplePoints(img, points)
	if err != nil {
		return color.RGBA{}, err
	}
	return Mean(colors), nil
}

func Mean(colors []color.RGBA) color.RGBA {
	if len(colors) == 0 {
		return color.RGBA{}
	}
	var r, g, b, a int
	for _, c := range colors {
		r += int(c.R)
		g += int(c.G)
		b += int(c.B)
		a += int(c.A)
	}
	n := len(colors)
	return color.RGBA{
		R: uint8((r + n/2) / n),
		G: uint8((g + n/2) / n),
		B: uint8((b + n/2) / n),
		A: uint8((a + n/2) / n),
	}
}
