package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRgbToHsb(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		h, s, v uint16
	}{
		{name: "black", h: 0, s: 0, v: 0},
		{name: "white", r: 255, g: 255, b: 255, h: 0, s: 0, v: 0xFFFF},
		{name: "red", r: 255, h: 0, s: 0xFFFF, v: 0xFFFF},
		{name: "green", g: 255, h: 21845, s: 0xFFFF, v: 0xFFFF},
		{name: "blue", b: 255, h: 43690, s: 0xFFFF, v: 0xFFFF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, s, v := RgbToHsb(tt.r, tt.g, tt.b)
			assert.Equal(t, tt.h, h)
			assert.Equal(t, tt.s, s)
			assert.Equal(t, tt.v, v)
		})
	}
}

func TestIsColorGreyish(t *testing.T) {
	_, s, _ := RgbToHsb(120, 120, 130)
	assert.True(t, IsColorGreyish(s))

	_, s, _ = RgbToHsb(0, 150, 255)
	assert.False(t, IsColorGreyish(s))
}
