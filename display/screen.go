// Package display holds the pixel buffers a machine draws into and the
// palette used to turn their colour indexes into real colours.
package display

import (
	"image"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
)

const (
	WIDTH  = 400 // Default screen width.
	HEIGHT = 300 // Default screen height.
	SCALE  = 2   // Default presentation scale.
)

// Screen is a fixed size buffer of one byte colour indexes, row-major.
type Screen struct {
	Width  int
	Height int
	Buffer []byte
}

// NewScreen creates a screen of width by height pixels, all colour 0.
func NewScreen(width, height int) (screen *Screen) {
	screen = &Screen{
		Width:  width,
		Height: height,
		Buffer: make([]byte, width*height),
	}
	return
}

// Contains reports whether x, y lies on the screen.
func (screen *Screen) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < screen.Width && y < screen.Height
}

// Set writes a colour index at x, y. The caller checks bounds.
func (screen *Screen) Set(x, y int, color byte) {
	screen.Buffer[y*screen.Width+x] = color
}

// At reads the colour index at x, y.
func (screen *Screen) At(x, y int) byte {
	return screen.Buffer[y*screen.Width+x]
}

// Fill sets every pixel to color.
func (screen *Screen) Fill(color byte) {
	for n := range screen.Buffer {
		screen.Buffer[n] = color
	}
}

// Image returns a paletted image sharing the screen's buffer.
func (screen *Screen) Image(palette *Palette) *image.Paletted {
	return &image.Paletted{
		Pix:     screen.Buffer,
		Stride:  screen.Width,
		Rect:    image.Rect(0, 0, screen.Width, screen.Height),
		Palette: palette.Colors(),
	}
}

// WritePNG encodes the screen as a PNG, each pixel scaled to a scale by
// scale block.
func (screen *Screen) WritePNG(w io.Writer, palette *Palette, scale int) (err error) {
	src := screen.Image(palette)
	if scale <= 1 {
		err = png.Encode(w, src)
		return
	}

	dst := image.NewPaletted(image.Rect(0, 0, screen.Width*scale, screen.Height*scale), src.Palette)
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	err = png.Encode(w, dst)
	return
}
