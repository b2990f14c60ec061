// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/ezrec/fakeos/chunk"
	"github.com/ezrec/fakeos/config"
	"github.com/ezrec/fakeos/host"
	"github.com/ezrec/fakeos/translate"
	"github.com/ezrec/fakeos/vm"
)

// tracer prints the machine state before every instruction.
type tracer struct {
	out  io.Writer
	home bool // Redraw in place.
}

func (tr *tracer) Observe(view vm.View) {
	if tr.home {
		fmt.Fprint(tr.out, "\033[H")
	}
	fmt.Fprintf(tr.out, "IP: %d\nCMP: %v\nOpcode: %v\n", view.Ip(), view.Flags(), view.Opcode())
	regs := view.Registers()
	for n := 0; n < vm.REGISTER_COUNT; n += 4 {
		fmt.Fprintf(tr.out, "R%d: %d\tR%d: %d\tR%d: %d\tR%d: %d\n",
			n, int16(regs[n]), n+1, int16(regs[n+1]), n+2, int16(regs[n+2]), n+3, int16(regs[n+3]))
	}
}

// load installs a program image. An empty image halts at once.
func load(emu *host.Host, prog *chunk.Chunk) (err error) {
	err = emu.Load(prog)
	if errors.Is(err, vm.ErrProgramEmpty) {
		err = nil
	}
	return
}

func main() {
	var compile string
	var input string
	var output string
	var save bool
	var configFile string
	var strict bool
	var maxSteps int
	var trace bool
	var disasm bool
	var pngFile string
	var frames string
	var lang string
	var verbose bool

	flag.StringVar(&compile, "c", "", ".asm file to assemble")
	flag.StringVar(&input, "i", "", ".bin program image to load")
	flag.StringVar(&output, "o", "", ".bin file to save the assembled image to")
	flag.BoolVar(&save, "s", false, "Save only, do not execute")
	flag.StringVar(&configFile, "config", "", ".toml configuration file")
	flag.BoolVar(&strict, "strict", false, "Unknown assembler words are errors")
	flag.IntVar(&maxSteps, "max", -1, "Maximum instructions to run (0 for unlimited)")
	flag.BoolVar(&trace, "t", false, "Trace every instruction to stderr")
	flag.BoolVar(&disasm, "d", false, "Disassemble the program image to stdout")
	flag.StringVar(&pngFile, "png", "", "Export the visible screen to a .png after the run")
	flag.StringVar(&frames, "frames", "", "Directory to write every flushed frame to")
	flag.StringVar(&lang, "lang", "", "Message language, such as de-DE (default: system locale)")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	if len(lang) != 0 {
		err := translate.SetLanguage(lang)
		if err != nil {
			log.Fatalf("%v: %v", lang, err)
		}
	}

	if (len(compile) == 0) == (len(input) == 0) {
		log.Fatalf("%v: exactly one of -c or -i is required", os.Args[0])
	}

	cfg := config.Default()
	if len(configFile) != 0 {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			log.Fatalf("%v", err)
		}
	}
	if strict {
		cfg.Assembler.Strict = true
	}
	if maxSteps >= 0 {
		cfg.Run.MaxSteps = maxSteps
	}

	emu, err := host.New(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	emu.Verbose = verbose
	emu.Console = os.Stdout

	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			log.Fatalf("%v", err)
		}
		emu.Logger = logger
	}

	var prog *chunk.Chunk

	// Assemble a new program image.
	if len(compile) != 0 {
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		prog, err = emu.Assemble(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
	}

	// Load an existing program image.
	if len(input) != 0 {
		data, err := os.ReadFile(input)
		if err != nil {
			log.Fatalf("%v: %v", input, err)
		}
		prog = chunk.FromBytes(data)
	}

	if len(output) != 0 {
		ouf, err := os.Create(output)
		if err != nil {
			log.Fatalf("%v: %v", output, err)
		}
		_, err = prog.WriteTo(ouf)
		if err == nil {
			err = ouf.Close()
		}
		if err != nil {
			log.Fatalf("%v: %v", output, err)
		}
	}

	if disasm {
		for ip, inst := range vm.Disassemble(prog.Bytes()) {
			lineno := emu.LineNo(ip)
			if lineno != 0 {
				fmt.Printf("%04x: %-24v ; line %d\n", ip, inst, lineno)
			} else {
				fmt.Printf("%04x: %v\n", ip, inst)
			}
		}
	}

	if save {
		return
	}

	err = load(emu, prog)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if trace {
		fd := int(os.Stderr.Fd())
		emu.VM.Observer = &tracer{out: os.Stderr, home: term.IsTerminal(fd)}
	}

	if len(frames) != 0 {
		emu.Presenter = &host.FrameWriter{Dir: frames, Palette: emu.Palette, Scale: emu.Scale}
	}

	result, err := emu.Run()

	if len(pngFile) != 0 {
		ouf, perr := os.Create(pngFile)
		if perr == nil {
			perr = emu.WritePNG(ouf)
			cerr := ouf.Close()
			if perr == nil {
				perr = cerr
			}
		}
		if perr != nil {
			log.Printf("%v: %v", pngFile, perr)
		}
	}

	emu.Logger.Sync()

	if err != nil {
		var runtime *host.ErrRuntime
		if errors.As(err, &runtime) && runtime.LineNo == 0 {
			log.Fatalf("Error: %v\n    at byte: %d", runtime.Err, runtime.Ip)
		}
		log.Fatalf("%v", err)
	}

	fmt.Printf("Program exited with code %d\n", result)
	os.Exit(int(uint8(result)))
}
