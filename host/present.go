package host

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ezrec/fakeos/display"
)

// Presenter shows a flushed screen. Returning quit halts the program.
type Presenter interface {
	Present(frame int, screen *display.Screen) (quit bool, err error)
}

// PresenterFunc adapts a function to a Presenter.
type PresenterFunc func(frame int, screen *display.Screen) (quit bool, err error)

func (fn PresenterFunc) Present(frame int, screen *display.Screen) (quit bool, err error) {
	return fn(frame, screen)
}

// FrameWriter presents each frame as a numbered PNG file in Dir.
type FrameWriter struct {
	Dir     string
	Palette *display.Palette
	Scale   int
	Limit   int // Quit after this many frames, if non-zero.
}

var _ Presenter = &FrameWriter{}

// Path of the PNG for frame.
func (fw *FrameWriter) Path(frame int) string {
	return filepath.Join(fw.Dir, fmt.Sprintf("frame-%04d.png", frame))
}

func (fw *FrameWriter) Present(frame int, screen *display.Screen) (quit bool, err error) {
	ouf, err := os.Create(fw.Path(frame))
	if err != nil {
		return
	}
	defer func() {
		cerr := ouf.Close()
		if err == nil {
			err = cerr
		}
	}()

	err = screen.WritePNG(ouf, fw.Palette, fw.Scale)
	if err != nil {
		return
	}

	quit = fw.Limit > 0 && frame >= fw.Limit
	return
}
