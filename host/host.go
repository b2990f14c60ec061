// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package host embeds a fakeos machine: two screens, a palette, a console
// and the standard system calls.
package host

import (
	"fmt"
	"io"
	"iter"
	"maps"

	"go.uber.org/zap"

	"github.com/ezrec/fakeos/chunk"
	"github.com/ezrec/fakeos/config"
	"github.com/ezrec/fakeos/display"
	"github.com/ezrec/fakeos/internal"
	"github.com/ezrec/fakeos/vm"
)

// Standard system call ordinals.
const (
	SYS_EXIT  = 0 // Halt cleanly.
	SYS_PRINT = 1 // Print the registers to the console.
	SYS_FLUSH = 2 // Present the screen being drawn, then draw on the other.
	SYS_DUMP  = 3 // Print the full machine state to the console.
)

var _host_defines = map[string]string{
	"SYS_EXIT":  fmt.Sprintf("#%d", SYS_EXIT),
	"SYS_PRINT": fmt.Sprintf("#%d", SYS_PRINT),
	"SYS_FLUSH": fmt.Sprintf("#%d", SYS_FLUSH),
	"SYS_DUMP":  fmt.Sprintf("#%d", SYS_DUMP),
}

// Host state. Machine + screens + console.
type Host struct {
	Verbose bool // If set, enables verbose logging.
	*vm.VM       // Reference to the machine.

	Palette   *display.Palette // Palette used to present screens.
	Console   io.Writer        // Output of the print and dump calls.
	Logger    *zap.Logger      // Host event log.
	Presenter Presenter        // Optional, called on every flush.

	Strict   bool // Assemble in strict mode.
	MaxSteps int  // Step limit of Run, 0 for none.
	Scale    int  // PNG export scale.

	Frames    int           // Frames flushed since the last Load.
	Assembler *vm.Assembler // Last assembly, for source line lookup.
}

// New creates a host from a configuration.
func New(cfg *config.Config) (host *Host, err error) {
	err = cfg.Validate()
	if err != nil {
		return
	}

	host = &Host{
		VM:       vm.NewVM(cfg.ArenaSize()),
		Palette:  display.NewPalette(),
		Console:  io.Discard,
		Logger:   zap.NewNop(),
		Strict:   cfg.Assembler.Strict,
		MaxSteps: cfg.Run.MaxSteps,
		Scale:    cfg.Display.Scale,
	}

	host.VM.SetScreens(
		display.NewScreen(cfg.Display.Width, cfg.Display.Height),
		display.NewScreen(cfg.Display.Width, cfg.Display.Height),
	)

	for expected, handler := range []vm.Syscall{
		SYS_EXIT:  host.sysExit,
		SYS_PRINT: host.sysPrint,
		SYS_FLUSH: host.sysFlush,
		SYS_DUMP:  host.sysDump,
	} {
		var ordinal int
		ordinal, err = host.VM.Syscalls.Register(handler)
		if err != nil {
			host = nil
			return
		}
		if ordinal != expected {
			host = nil
			err = ErrOrdinalSkew
			return
		}
	}

	return
}

// Defines returns an iterator over all of the defines.
func (host *Host) Defines() iter.Seq2[string, string] {
	screen := host.VM.Screen[0]
	geometry := map[string]string{
		"SCREEN_WIDTH":  fmt.Sprintf("#%d", screen.Width),
		"SCREEN_HEIGHT": fmt.Sprintf("#%d", screen.Height),
	}
	return internal.IterSeq2Concat(maps.All(_host_defines),
		maps.All(geometry),
		host.VM.Defines(),
	)
}

// AddSyscall registers a system call after the standard ones.
func (host *Host) AddSyscall(name string, handler vm.Syscall) (ordinal int, err error) {
	ordinal, err = host.VM.Syscalls.Register(handler)
	if err != nil {
		return
	}
	host.Logger.Debug("syscall registered", zap.String("name", name), zap.Int("ordinal", ordinal))
	return
}

// Assemble source text with the host's defines.
func (host *Host) Assemble(input io.Reader) (prog *chunk.Chunk, err error) {
	asm := &vm.Assembler{
		Verbose: host.Verbose,
		Strict:  host.Strict,
	}
	for key, value := range host.Defines() {
		asm.Predefine(key, value)
	}

	prog, err = asm.Parse(input)
	if err != nil {
		return
	}

	host.Assembler = asm
	host.Logger.Debug("assembled", zap.Int("bytes", prog.Len()), zap.Int("labels", len(asm.Label)))
	return
}

// Load a program image.
func (host *Host) Load(prog *chunk.Chunk) (err error) {
	host.VM.Verbose = host.Verbose
	host.VM.Arena.Verbose = host.Verbose
	host.Frames = 0

	err = host.VM.Load(prog.Bytes())
	return
}

// LineNo returns the source line of the byte at ip, or 0 if unknown.
func (host *Host) LineNo(ip int) int {
	if host.Assembler == nil {
		return 0
	}
	return host.Assembler.LineNo(ip)
}

// Step performs a single instruction.
func (host *Host) Step() (done bool, err error) {
	done, err = host.VM.Step()
	if err != nil {
		ip := host.VM.Ip
		err = &ErrRuntime{Ip: ip, LineNo: host.LineNo(ip), Err: err}
	}
	return
}

// Run until the program halts, faults, or reaches MaxSteps.
func (host *Host) Run() (result int16, err error) {
	steps := 0
	for {
		var done bool
		done, err = host.Step()
		if done {
			break
		}
		steps++
		if host.MaxSteps > 0 && steps >= host.MaxSteps {
			err = ErrStepLimit
			break
		}
	}

	result = int16(host.VM.Register[0])

	switch {
	case err == nil:
		host.Logger.Info("halt",
			zap.Int16("result", result),
			zap.Int("ticks", host.VM.Ticks),
			zap.Int("frames", host.Frames))
	default:
		host.Logger.Error("stopped",
			zap.Int("ip", host.VM.Ip),
			zap.Int("line", host.LineNo(host.VM.Ip)),
			zap.Int("ticks", host.VM.Ticks),
			zap.Error(err))
	}

	return
}

// Visible returns the screen last presented, or the screen being drawn if
// nothing has been flushed yet.
func (host *Host) Visible() *display.Screen {
	if host.Frames == 0 {
		return host.VM.Screen[host.VM.Active]
	}
	return host.VM.Screen[host.VM.Active^1]
}

// WritePNG exports the visible screen.
func (host *Host) WritePNG(w io.Writer) (err error) {
	err = host.Visible().WritePNG(w, host.Palette, host.Scale)
	return
}

func (host *Host) sysExit(machine *vm.VM) (status int, err error) {
	status = 1
	return
}

func (host *Host) sysPrint(machine *vm.VM) (status int, err error) {
	for n := 0; n < vm.REGISTER_COUNT; n += 4 {
		_, err = fmt.Fprintf(host.Console, "R%d: %d\tR%d: %d\tR%d: %d\tR%d: %d\n",
			n, int16(machine.Register[n]),
			n+1, int16(machine.Register[n+1]),
			n+2, int16(machine.Register[n+2]),
			n+3, int16(machine.Register[n+3]))
		if err != nil {
			return
		}
	}
	_, err = fmt.Fprintln(host.Console)
	return
}

func (host *Host) sysFlush(machine *vm.VM) (status int, err error) {
	screen := machine.Screen[machine.Active]
	host.Frames++

	host.Logger.Debug("flush", zap.Int("frame", host.Frames), zap.Int("screen", machine.Active))

	if host.Presenter != nil {
		var quit bool
		quit, err = host.Presenter.Present(host.Frames, screen)
		if err != nil {
			return
		}
		if quit {
			status = 1
		}
	}

	err = machine.SelectScreen(machine.Active ^ 1)
	return
}

func (host *Host) sysDump(machine *vm.VM) (status int, err error) {
	_, err = fmt.Fprintf(host.Console, "%v", machine.String())
	return
}
