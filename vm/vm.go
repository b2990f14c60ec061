package vm

import (
	"fmt"
	"iter"
	"log"
	"maps"
	"slices"

	"github.com/ezrec/fakeos/display"
	"github.com/ezrec/fakeos/memory"
)

const (
	REGISTER_COUNT = 16                   // Number of general purpose registers.
	ARENA_SIZE     = memory.SIZE_DESKTOP // Default arena size.
)

// Flags is the comparison state set by cmp.
type Flags uint8

const (
	CMP_EQUAL   = Flags(1)
	CMP_LESS    = Flags(2)
	CMP_GREATER = Flags(4)
)

// String returns the flags as "ELG", with '-' for clear bits.
func (flags Flags) String() string {
	out := []byte("---")
	if flags&CMP_EQUAL != 0 {
		out[0] = 'E'
	}
	if flags&CMP_LESS != 0 {
		out[1] = 'L'
	}
	if flags&CMP_GREATER != 0 {
		out[2] = 'G'
	}
	return string(out)
}

// State of the machine's run.
type State int

const (
	STATE_READY   = State(0) // ready
	STATE_RUNNING = State(1) // running
	STATE_HALTED  = State(2) // halted
	STATE_FAULTED = State(3) // faulted
)

func (state State) String() string {
	switch state {
	case STATE_READY:
		return "ready"
	case STATE_RUNNING:
		return "running"
	case STATE_HALTED:
		return "halted"
	case STATE_FAULTED:
		return "faulted"
	}
	return fmt.Sprintf("state(%d)", int(state))
}

var _vm_defines = map[string]string{
	"REGISTER_COUNT": fmt.Sprintf("#%d", REGISTER_COUNT),
	"STACK_LIMIT":    fmt.Sprintf("#%d", STACK_LIMIT),
	"SCREEN_FRONT":   "#0",
	"SCREEN_BACK":    "#1",
}

// VM is the execution context of one machine.
type VM struct {
	Verbose bool // Set to enable verbose logging.

	Ip        int                    // Offset of the next byte to decode.
	Register  [REGISTER_COUNT]uint16 // Register file.
	Flags     Flags                  // Comparison flags.
	CallStack CallStack              // Return addresses.
	Arena     *memory.Arena          // Program memory.
	Syscalls  Syscalls               // System call table.
	Observer  Observer               // Optional per-step observer.

	Screen [2]*display.Screen // External screens.
	Active int                // Index of the screen drawn on.

	Ticks int // Instructions executed since the last load.

	code  []byte
	state State
	fault *Fault
}

// NewVM creates a machine with an arena of arenaSize bytes.
func NewVM(arenaSize int) (vm *VM) {
	vm = &VM{
		Arena: memory.NewArena(arenaSize),
	}
	return
}

// Defines for the machine, for use as assembler predefines.
func (vm *VM) Defines() iter.Seq2[string, string] {
	defines := maps.Clone(_vm_defines)
	defines["ARENA_SIZE"] = fmt.Sprintf("#%d", vm.Arena.Size())
	return maps.All(defines)
}

// Load replaces the program image and rewinds the machine to its start.
// Registers and memory are left as they are.
func (vm *VM) Load(program []byte) (err error) {
	vm.code = slices.Clone(program)
	vm.rewind()

	if len(program) == 0 {
		err = ErrProgramEmpty
		return
	}

	if vm.Verbose {
		log.Printf("vm: load %d bytes", len(program))
	}

	return
}

// Reset clears registers, flags, call stack and memory, and rewinds to
// the start of the loaded program.
func (vm *VM) Reset() {
	clear(vm.Register[:])
	vm.Arena.Reset()
	vm.Active = 0
	vm.rewind()
}

func (vm *VM) rewind() {
	vm.Ip = 0
	vm.Flags = 0
	vm.Ticks = 0
	vm.CallStack.Reset()
	vm.state = STATE_READY
	vm.fault = nil
}

// Code returns the loaded program image.
func (vm *VM) Code() []byte {
	return vm.code
}

// State of the current run.
func (vm *VM) State() State {
	return vm.state
}

// Fault returns the fault that stopped the machine, if any.
func (vm *VM) Fault() *Fault {
	return vm.fault
}

// SetScreens attaches the two screens drawn on by spx and cls.
func (vm *VM) SetScreens(front, back *display.Screen) {
	vm.Screen = [2]*display.Screen{front, back}
	vm.Active = 0
}

// SelectScreen chooses which screen spx and cls draw on.
func (vm *VM) SelectScreen(index int) (err error) {
	if index < 0 || index >= len(vm.Screen) {
		err = ErrScreenInvalid
		return
	}
	vm.Active = index
	return
}

// String returns the current machine state as a string.
func (vm *VM) String() (text string) {
	text += fmt.Sprintf("% 5s: %04x\n", "ip", vm.Ip)
	text += fmt.Sprintf("% 5s: %v\n", "cmp", vm.Flags)
	text += fmt.Sprintf("% 5s: %d\n", "depth", vm.CallStack.Depth())
	for n := 0; n < REGISTER_COUNT; n += 4 {
		for c := n; c < n+4; c++ {
			text += fmt.Sprintf("% 5s: %6d", fmt.Sprintf("r%d", c), int16(vm.Register[c]))
		}
		text += "\n"
	}

	return
}

// Run executes until the machine halts or faults, returning register 0.
func (vm *VM) Run() (result int16, err error) {
	for {
		var done bool
		done, err = vm.Step()
		if done {
			break
		}
	}

	result = int16(vm.Register[0])
	return
}

// Step executes a single instruction.
// done is set once the machine has halted or faulted; err is the *Fault.
func (vm *VM) Step() (done bool, err error) {
	switch vm.state {
	case STATE_HALTED:
		done = true
		return
	case STATE_FAULTED:
		done = true
		err = vm.fault
		return
	}

	if vm.Ip < 0 || vm.Ip >= len(vm.code) {
		vm.state = STATE_HALTED
		done = true
		return
	}

	vm.state = STATE_RUNNING

	if vm.Observer != nil {
		vm.Observer.Observe(view{vm: vm})
	}

	ip := vm.Ip
	op := Opcode(vm.code[ip])
	vm.Ip++

	if vm.Verbose {
		log.Printf("vm: %04x: %v", ip, op)
	}

	halt, err := vm.execute(op)
	if err != nil {
		vm.Ip = ip
		vm.fault = &Fault{Ip: ip, Opcode: op, Err: err}
		vm.state = STATE_FAULTED
		err = vm.fault
		done = true
		if vm.Verbose {
			log.Printf("vm: %v", err)
		}
		return
	}

	vm.Ticks++

	if halt || vm.Ip < 0 || vm.Ip >= len(vm.code) {
		vm.state = STATE_HALTED
		done = true
		if vm.Verbose {
			log.Printf("vm: halt, r0=%d", int16(vm.Register[0]))
		}
	}

	return
}

// fetch reads the next byte of the instruction stream.
func (vm *VM) fetch() (value byte, err error) {
	if vm.Ip >= len(vm.code) {
		err = ErrProgramTruncated
		return
	}
	value = vm.code[vm.Ip]
	vm.Ip++
	return
}

// registerIndex reads a register number and checks it.
func (vm *VM) registerIndex() (index int, err error) {
	value, err := vm.fetch()
	if err != nil {
		return
	}
	if int(value) >= REGISTER_COUNT {
		err = ErrRegisterInvalid
		return
	}
	index = int(value)
	return
}

// getRegister reads an operand that must be register tagged.
func (vm *VM) getRegister() (index int, err error) {
	tag, err := vm.fetch()
	if err != nil {
		return
	}
	if tag != TAG_REG {
		err = ErrExpectedRegister
		return
	}
	index, err = vm.registerIndex()
	return
}

// getValue reads an operand of any form and returns its value.
func (vm *VM) getValue() (value uint16, err error) {
	tag, err := vm.fetch()
	if err != nil {
		return
	}

	switch tag {
	case TAG_REG:
		var index int
		index, err = vm.registerIndex()
		if err != nil {
			return
		}
		value = vm.Register[index]
	case TAG_IMS:
		var lo, hi byte
		lo, err = vm.fetch()
		if err != nil {
			return
		}
		hi, err = vm.fetch()
		if err != nil {
			return
		}
		value = uint16(lo) | (uint16(hi) << 8)
	case TAG_IMB:
		var b byte
		b, err = vm.fetch()
		if err != nil {
			return
		}
		value = uint16(b)
	default:
		value = uint16(tag)
	}

	return
}

// getValues reads count operands.
func (vm *VM) getValues(count int) (values []uint16, err error) {
	values = make([]uint16, count)
	for n := range values {
		values[n], err = vm.getValue()
		if err != nil {
			return
		}
	}
	return
}

// branch transfers control to target, optionally pushing the return address.
func (vm *VM) branch(target uint16, taken bool, link bool) (err error) {
	if !taken {
		return
	}
	if link {
		err = vm.CallStack.Push(vm.Ip)
		if err != nil {
			return
		}
	}
	vm.Ip = int(target)
	return
}

// screen returns the screen being drawn on.
func (vm *VM) screen() (screen *display.Screen, err error) {
	screen = vm.Screen[vm.Active&1]
	if screen == nil {
		err = ErrNoDisplay
	}
	return
}

// execute runs one instruction whose opcode byte has been consumed.
func (vm *VM) execute(op Opcode) (halt bool, err error) {
	switch op {
	case OP_NOP:
		// pass
	case OP_SYS:
		var ordinal uint16
		ordinal, err = vm.getValue()
		if err != nil {
			return
		}
		handler, ok := vm.Syscalls.Get(int(ordinal))
		if !ok {
			err = fmt.Errorf("%w: %w", ErrNoHandler, ErrOrdinal(ordinal))
			return
		}
		var status int
		status, err = handler(vm)
		if err != nil {
			return
		}
		halt = status != 0
	case OP_MOV:
		var reg int
		reg, err = vm.getRegister()
		if err != nil {
			return
		}
		var value uint16
		value, err = vm.getValue()
		if err != nil {
			return
		}
		vm.Register[reg] = value
	case OP_ADD, OP_SUB, OP_MUL, OP_DIV:
		var reg int
		reg, err = vm.getRegister()
		if err != nil {
			return
		}
		var args []uint16
		args, err = vm.getValues(2)
		if err != nil {
			return
		}
		a, b := int16(args[0]), int16(args[1])
		var result int16
		switch op {
		case OP_ADD:
			result = a + b
		case OP_SUB:
			result = a - b
		case OP_MUL:
			result = a * b
		case OP_DIV:
			if b == 0 {
				err = ErrDivisionByZero
				return
			}
			result = a / b
		}
		vm.Register[reg] = uint16(result)
	case OP_CMP:
		var args []uint16
		args, err = vm.getValues(2)
		if err != nil {
			return
		}
		a, b := int16(args[0]), int16(args[1])
		switch {
		case a == b:
			vm.Flags = CMP_EQUAL
		case a < b:
			vm.Flags = CMP_LESS
		default:
			vm.Flags = CMP_GREATER
		}
	case OP_JMP, OP_JEQ, OP_JNE, OP_JLT, OP_JGT,
		OP_BRN, OP_BEQ, OP_BNE, OP_BLT, OP_BGT:
		var target uint16
		target, err = vm.getValue()
		if err != nil {
			return
		}
		var taken bool
		switch op {
		case OP_JMP, OP_BRN:
			taken = true
		case OP_JEQ, OP_BEQ:
			taken = vm.Flags&CMP_EQUAL != 0
		case OP_JNE, OP_BNE:
			taken = vm.Flags&CMP_EQUAL == 0
		case OP_JLT, OP_BLT:
			taken = vm.Flags&CMP_LESS != 0
		case OP_JGT, OP_BGT:
			taken = vm.Flags&CMP_GREATER != 0
		}
		link := op >= OP_BRN && op <= OP_BGT
		err = vm.branch(target, taken, link)
	case OP_RET:
		var ip int
		ip, err = vm.CallStack.Pop()
		if err != nil {
			return
		}
		vm.Ip = ip
	case OP_ALC:
		var reg int
		reg, err = vm.getRegister()
		if err != nil {
			return
		}
		var size uint16
		size, err = vm.getValue()
		if err != nil {
			return
		}
		var ptr int
		ptr, err = vm.Arena.Allocate(int(size))
		if err != nil {
			return
		}
		vm.Register[reg] = uint16(ptr)
	case OP_FRE:
		var ptr uint16
		ptr, err = vm.getValue()
		if err != nil {
			return
		}
		err = vm.Arena.Free(int(ptr))
	case OP_STB:
		var args []uint16
		args, err = vm.getValues(3)
		if err != nil {
			return
		}
		addr := int(args[0] + args[1])
		err = vm.Arena.StoreByte(addr, byte(args[2]))
	case OP_LDB:
		var reg int
		reg, err = vm.getRegister()
		if err != nil {
			return
		}
		var args []uint16
		args, err = vm.getValues(2)
		if err != nil {
			return
		}
		addr := int(args[0] + args[1])
		var value byte
		value, err = vm.Arena.LoadByte(addr)
		if err != nil {
			return
		}
		vm.Register[reg] = uint16(value)
	case OP_SPX:
		var args []uint16
		args, err = vm.getValues(3)
		if err != nil {
			return
		}
		var screen *display.Screen
		screen, err = vm.screen()
		if err != nil {
			return
		}
		x, y := int(int16(args[0])), int(int16(args[1]))
		if !screen.Contains(x, y) {
			err = ErrPixelBounds
			return
		}
		screen.Set(x, y, byte(args[2]))
	case OP_CLS:
		var color uint16
		color, err = vm.getValue()
		if err != nil {
			return
		}
		var screen *display.Screen
		screen, err = vm.screen()
		if err != nil {
			return
		}
		screen.Fill(byte(color))
	default:
		err = ErrUnknownOpcode
	}

	return
}
