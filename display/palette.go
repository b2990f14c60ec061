package display

import (
	"image/color"
)

// Palette maps the 256 colour indexes to RGB colours.
type Palette struct {
	Color [256]color.RGBA
}

var vga16 = [16][3]uint8{
	{0x00, 0x00, 0x00},
	{0x00, 0x00, 0xAA},
	{0x00, 0xAA, 0x00},
	{0x00, 0xAA, 0xAA},
	{0xAA, 0x00, 0x00},
	{0xAA, 0x00, 0xAA},
	{0xAA, 0x55, 0x00},
	{0xAA, 0xAA, 0xAA},
	{0x55, 0x55, 0x55},
	{0x55, 0x55, 0xFF},
	{0x55, 0xFF, 0x55},
	{0x55, 0xFF, 0xFF},
	{0xFF, 0x55, 0x55},
	{0xFF, 0x55, 0xFF},
	{0xFF, 0xFF, 0x55},
	{0xFF, 0xFF, 0xFF},
}

// NewPalette creates the VGA style palette:
//   - 0x00-0x0f: the standard 16 colours.
//   - 0x10-0x1f: a dark grey ramp.
//   - 0x20-0xf7: a 6x6x6 colour cube.
//
// The remaining entries are black.
func NewPalette() (palette *Palette) {
	palette = &Palette{}

	for n, rgb := range vga16 {
		palette.Color[n] = color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xff}
	}

	for n := 0x10; n < 0x20; n++ {
		palette.Color[n] = color.RGBA{R: uint8(n), G: uint8(n), B: uint8(n), A: 0xff}
	}

	for r := range 6 {
		for g := range 6 {
			for b := range 6 {
				n := 0x20 + r*36 + g*6 + b
				palette.Color[n] = color.RGBA{R: uint8(r * 51), G: uint8(g * 51), B: uint8(b * 51), A: 0xff}
			}
		}
	}

	for n := 0x20 + 216; n < len(palette.Color); n++ {
		palette.Color[n] = color.RGBA{A: 0xff}
	}

	return
}

// Colors returns the palette as a color.Palette.
func (palette *Palette) Colors() (colors color.Palette) {
	colors = make(color.Palette, len(palette.Color))
	for n, rgba := range palette.Color {
		colors[n] = rgba
	}
	return
}
