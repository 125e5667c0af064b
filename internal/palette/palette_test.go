package palette

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

func voltDriverTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable([]Entry{
		{Identity: "VoltDriver", Reference: rgb(0, 150, 255), Tolerance: 20},
	})
	require.NoError(t, err)
	return table
}

func TestMatchVoltDriverScenario(t *testing.T) {
	table := voltDriverTable(t)

	assert.Equal(t, Identity("VoltDriver"), table.Match(rgb(5, 145, 250)))
	assert.Equal(t, Unknown, table.Match(rgb(255, 255, 255)))
}

func TestMatchEverythingInsideToleranceMatches(t *testing.T) {
	table := voltDriverTable(t)
	ref := rgb(0, 150, 255)

	// walk a grid around the reference; anything within radius 20 must match
	for dr := -20; dr <= 20; dr += 4 {
		for dg := -20; dg <= 20; dg += 4 {
			for db := -20; db <= 0; db += 4 {
				sample := rgb(clamp(int(ref.R)+dr), clamp(int(ref.G)+dg), clamp(int(ref.B)+db))
				d := RGBDistance(sample, ref)
				if d <= 20 {
					assert.Equal(t, Identity("VoltDriver"), table.Match(sample), "sample %v at distance %.2f", sample, d)
				} else {
					assert.Equal(t, Unknown, table.Match(sample), "sample %v at distance %.2f", sample, d)
				}
			}
		}
	}
}

func clamp(v int) uint8 {
	return uint8(math.Max(0, math.Min(255, float64(v))))
}

func TestMatchOverlapResolvesToNearest(t *testing.T) {
	table, err := NewTable([]Entry{
		{Identity: "Left", Reference: rgb(100, 0, 0), Tolerance: 40},
		{Identity: "Right", Reference: rgb(160, 0, 0), Tolerance: 40},
	})
	require.NoError(t, err)

	// both spheres contain 120 and 140
	assert.Equal(t, Identity("Left"), table.Match(rgb(120, 0, 0)))
	assert.Equal(t, Identity("Right"), table.Match(rgb(140, 0, 0)))
	// exact tie goes to the first declared entry
	assert.Equal(t, Identity("Left"), table.Match(rgb(130, 0, 0)))
}

func TestNewTableRejectsInvalidPalettes(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
	}{
		{name: "empty", entries: nil},
		{name: "blank name", entries: []Entry{{Identity: " ", Reference: rgb(1, 2, 3), Tolerance: 5}}},
		{name: "reserved name", entries: []Entry{{Identity: Unknown, Reference: rgb(1, 2, 3), Tolerance: 5}}},
		{name: "zero tolerance", entries: []Entry{{Identity: "A", Reference: rgb(1, 2, 3)}}},
		{name: "duplicate", entries: []Entry{
			{Identity: "A", Reference: rgb(0, 0, 0), Tolerance: 5},
			{Identity: "A", Reference: rgb(200, 0, 0), Tolerance: 5},
		}},
		{name: "centres overlap", entries: []Entry{
			{Identity: "A", Reference: rgb(100, 100, 100), Tolerance: 10},
			{Identity: "B", Reference: rgb(105, 100, 100), Tolerance: 10},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.entries)
			assert.Error(t, err)
		})
	}
}

func TestDisplayColor(t *testing.T) {
	table, err := NewTable([]Entry{
		{Identity: "PowerBeam", Reference: rgb(255, 200, 60), Tolerance: 30, Display: rgb(255, 120, 0), HasDisplay: true},
		{Identity: "Missile", Reference: rgb(0, 200, 0), Tolerance: 30},
	}, WithDefaultColors(rgb(1, 1, 1), rgb(2, 2, 2)))
	require.NoError(t, err)

	assert.Equal(t, rgb(255, 120, 0), table.DisplayColor("PowerBeam"))
	assert.Equal(t, rgb(0, 200, 0), table.DisplayColor("Missile"))
	assert.Equal(t, rgb(1, 1, 1), table.DisplayColor(Unknown))
	assert.Equal(t, rgb(2, 2, 2), table.DisplayColor(Unarmed))
	assert.Equal(t, []Identity{"PowerBeam", "Missile", Unarmed, Unknown}, table.Identities())
}

func TestUnarmedEntryIsMatchable(t *testing.T) {
	table, err := NewTable([]Entry{
		{Identity: Unarmed, Reference: rgb(20, 20, 40), Tolerance: 15, Display: rgb(10, 10, 10), HasDisplay: true},
		{Identity: "Missile", Reference: rgb(0, 200, 0), Tolerance: 30},
	})
	require.NoError(t, err)

	assert.Equal(t, Unarmed, table.Match(rgb(22, 18, 44)))
	assert.Equal(t, rgb(10, 10, 10), table.DisplayColor(Unarmed))
	assert.Equal(t, []Identity{Unarmed, "Missile", Unknown}, table.Identities())
}

func TestMetrics(t *testing.T) {
	for _, m := range []Metric{MetricRGB, MetricLab, MetricCIEDE2000} {
		t.Run(string(m), func(t *testing.T) {
			f, err := m.Func()
			require.NoError(t, err)
			assert.InDelta(t, 0, f(rgb(10, 20, 30), rgb(10, 20, 30)), 1e-9)
			assert.Greater(t, f(rgb(0, 0, 0), rgb(255, 255, 255)), f(rgb(0, 0, 0), rgb(10, 10, 10)))
		})
	}

	m, err := ParseMetric(" lab ")
	require.NoError(t, err)
	assert.Equal(t, MetricLab, m)

	_, err = ParseMetric("HSV")
	assert.Error(t, err)

	assert.InDelta(t, 8.66, RGBDistance(rgb(5, 145, 250), rgb(0, 150, 255)), 0.01)
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#0096ff")
	require.NoError(t, err)
	assert.Equal(t, rgb(0, 150, 255), c)

	c, err = ParseHex("ff8000")
	require.NoError(t, err)
	assert.Equal(t, rgb(255, 128, 0), c)
	assert.Equal(t, "#ff8000", Hex(c))

	_, err = ParseHex("not-a-colour")
	assert.Error(t, err)
}
