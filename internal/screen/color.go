package screen

import (
	"image"
	"image/color"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ReduceFunc reduces the pixels of rect, visiting every gridSize-th pixel on both axes,
// to a single colour.
type ReduceFunc func(img image.Image, rect image.Rectangle, gridSize int) color.RGBA

func ParseAlgorithm(name string) (ReduceFunc, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "AVERAGE":
		return AverageColor, nil
	case "SQUARED_AVERAGE":
		return SquaredAverageColor, nil
	case "MEDIAN":
		return MedianColor, nil
	case "MODE":
		return ModeColor, nil
	default:
		return nil, errors.Errorf("unknown color algorithm: %v, valid values are [AVERAGE, SQUARED_AVERAGE, MEDIAN, MODE]", name)
	}
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func walk(rect image.Rectangle, gridSize int, visit func(x, y int)) {
	if gridSize < 1 {
		gridSize = 1
	}
	for y := rect.Min.Y; y < rect.Max.Y; y += gridSize {
		for x := rect.Min.X; x < rect.Max.X; x += gridSize {
			visit(x, y)
		}
	}
}

func AverageColor(img image.Image, rect image.Rectangle, gridSize int) color.RGBA {
	var sumR, sumG, sumB, sumA, totalPixels uint64
	walk(rect, gridSize, func(x, y int) {
		c := rgbaAt(img, x, y)
		sumR += uint64(c.R)
		sumG += uint64(c.G)
		sumB += uint64(c.B)
		sumA += uint64(c.A)
		totalPixels++
	})
	if totalPixels == 0 {
		return color.RGBA{}
	}

	return color.RGBA{
		R: uint8(sumR / totalPixels),
		G: uint8(sumG / totalPixels),
		B: uint8(sumB / totalPixels),
		A: uint8(sumA / totalPixels),
	}
}

// SquaredAverageColor calculates the root mean square of each channel
func SquaredAverageColor(img image.Image, rect image.Rectangle, gridSize int) color.RGBA {
	var sumR, sumG, sumB, sumA, totalPixels uint64
	walk(rect, gridSize, func(x, y int) {
		c := rgbaAt(img, x, y)
		sumR += uint64(c.R) * uint64(c.R)
		sumG += uint64(c.G) * uint64(c.G)
		sumB += uint64(c.B) * uint64(c.B)
		sumA += uint64(c.A) * uint64(c.A)
		totalPixels++
	})
	if totalPixels == 0 {
		return color.RGBA{}
	}

	return color.RGBA{
		R: uint8(math.Sqrt(float64(sumR) / float64(totalPixels))),
		G: uint8(math.Sqrt(float64(sumG) / float64(totalPixels))),
		B: uint8(math.Sqrt(float64(sumB) / float64(totalPixels))),
		A: uint8(math.Sqrt(float64(sumA) / float64(totalPixels))),
	}
}

// MedianColor calculates the per-channel median
func MedianColor(img image.Image, rect image.Rectangle, gridSize int) color.RGBA {
	var reds, greens, blues, alphas []uint8
	walk(rect, gridSize, func(x, y int) {
		c := rgbaAt(img, x, y)
		reds = append(reds, c.R)
		greens = append(greens, c.G)
		blues = append(blues, c.B)
		alphas = append(alphas, c.A)
	})
	if len(reds) == 0 {
		return color.RGBA{}
	}

	sort.Slice(reds, func(i, j int) bool { return reds[i] < reds[j] })
	sort.Slice(greens, func(i, j int) bool { return greens[i] < greens[j] })
	sort.Slice(blues, func(i, j int) bool { return blues[i] < blues[j] })
	sort.Slice(alphas, func(i, j int) bool { return alphas[i] < alphas[j] })

	median := func(values []uint8) uint8 {
		n := len(values)
		if n%2 == 0 {
			return uint8((int(values[n/2-1]) + int(values[n/2])) / 2)
		}
		return values[n/2]
	}

	return color.RGBA{
		R: median(reds),
		G: median(greens),
		B: median(blues),
		A: median(alphas),
	}
}

// ModeColor returns the most frequent colour. Ties go to the colour seen first.
func ModeColor(img image.Image, rect image.Rectangle, gridSize int) color.RGBA {
	colorCount := make(map[color.RGBA]int)
	var order []color.RGBA
	walk(rect, gridSize, func(x, y int) {
		c := rgbaAt(img, x, y)
		if colorCount[c] == 0 {
			order = append(order, c)
		}
		colorCount[c]++
	})

	var modeColor color.RGBA
	maxCount := 0
	for _, c := range order {
		if count := colorCount[c]; count > maxCount {
			maxCount = count
			modeColor = c
		}
	}

	return modeColor
}
