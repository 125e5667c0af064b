// Package layout turns a window's bounding box into the absolute pixel coordinates to
// sample, using proportional coordinates so the result follows window moves and resizes.
package layout

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

var ErrWindowNotFound = errors.New("window not found")

// Size is the native resolution of the rendered content, used only for its aspect ratio.
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Rect is a sub-rectangle expressed as fractions (0-1) of its parent.
type Rect struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

func (r Rect) IsZero() bool {
	return r == Rect{}
}

// Point is a position expressed as fractions (0-1) of the region.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Profile describes where to sample within a known window arrangement.
//
// InsetTop pixels of window chrome (a menu bar) are dropped first. When Content is set the
// remaining area is fitted to Content's aspect ratio and centred, which strips letterbox
// margins. Region then selects part of the content and Points are placed inside Region.
type Profile struct {
	Name     string  `yaml:"name"`
	InsetTop int     `yaml:"inset_top"`
	Content  Size    `yaml:"content"`
	Region   Rect    `yaml:"region"`
	Points   []Point `yaml:"points"`
}

func (p Profile) Validate() error {
	if p.InsetTop < 0 {
		return errors.Errorf("layout %q: inset_top must not be negative", p.Name)
	}
	if (p.Content.Width == 0) != (p.Content.Height == 0) || p.Content.Width < 0 || p.Content.Height < 0 {
		return errors.Errorf("layout %q: content needs both a positive width and height, or neither", p.Name)
	}
	if !p.Region.IsZero() {
		r := p.Region
		if r.X < 0 || r.Y < 0 || r.Width <= 0 || r.Height <= 0 || r.X+r.Width > 1 || r.Y+r.Height > 1 {
			return errors.Errorf("layout %q: region %+v must lie within 0-1", p.Name, r)
		}
	}
	if len(p.Points) == 0 {
		return errors.Errorf("layout %q: at least one sample point is required", p.Name)
	}
	for i, pt := range p.Points {
		if pt.X < 0 || pt.X > 1 || pt.Y < 0 || pt.Y > 1 {
			return errors.Errorf("layout %q: point %d %+v must lie within 0-1", p.Name, i, pt)
		}
	}
	return nil
}

// Placement is the result of locating a profile inside one window box.
type Placement struct {
	Window  image.Rectangle
	Content image.Rectangle
	Region  image.Rectangle
	Points  []image.Point
}

// Locate computes absolute sample coordinates for window. Nothing is cached: callers pass
// the window box observed in the current cycle.
func Locate(window image.Rectangle, p Profile) (Placement, error) {
	if window.Empty() {
		return Placement{}, errors.Wrapf(ErrWindowNotFound, "empty window box %v", window)
	}

	area := window
	area.Min.Y += p.InsetTop
	if area.Empty() {
		return Placement{}, errors.Wrapf(ErrWindowNotFound, "window %v shorter than inset %d", window, p.InsetTop)
	}

	content := fit(area, p.Content)
	region := content
	if !p.Region.IsZero() {
		region = subRect(content, p.Region)
	}
	if region.Empty() {
		return Placement{}, errors.Wrapf(ErrWindowNotFound, "window %v too small for layout %q", window, p.Name)
	}

	points := make([]image.Point, 0, len(p.Points))
	for _, pt := range p.Points {
		points = append(points, image.Point{
			X: clampInt(region.Min.X+round(pt.X*float64(region.Dx())), region.Min.X, region.Max.X-1),
			Y: clampInt(region.Min.Y+round(pt.Y*float64(region.Dy())), region.Min.Y, region.Max.Y-1),
		})
	}

	return Placement{
		Window:  window,
		Content: content,
		Region:  region,
		Points:  points,
	}, nil
}

// fit returns the largest rectangle with size's aspect ratio centred in area.
func fit(area image.Rectangle, size Size) image.Rectangle {
	if size.Width == 0 || size.Height == 0 {
		return area
	}

	factor := math.Min(float64(area.Dx())/float64(size.Width), float64(area.Dy())/float64(size.Height))
	w := float64(size.Width) * factor
	h := float64(size.Height) * factor
	marginX := math.Max(float64(area.Dx())-w, 0) / 2
	marginY := math.Max(float64(area.Dy())-h, 0) / 2

	return image.Rect(
		area.Min.X+round(marginX),
		area.Min.Y+round(marginY),
		area.Max.X-round(marginX),
		area.Max.Y-round(marginY),
	)
}

func subRect(parent image.Rectangle, r Rect) image.Rectangle {
	w := float64(parent.Dx())
	h := float64(parent.Dy())
	return image.Rect(
		parent.Min.X+round(r.X*w),
		parent.Min.Y+round(r.Y*h),
		parent.Min.X+round((r.X+r.Width)*w),
		parent.Min.Y+round((r.Y+r.Height)*h),
	)
}

func round(v float64) int {
	return int(math.Floor(v + 0.5))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
