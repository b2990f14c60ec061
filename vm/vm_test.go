package vm

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/fakeos/display"
)

// sysExit is the conventional ordinal 0 handler.
func sysExit(vm *VM) (status int, err error) {
	return 1, nil
}

// newTestVM creates a small machine with the exit handler at ordinal 0.
func newTestVM(t *testing.T, arena int) (vm *VM) {
	vm = NewVM(arena)
	ordinal, err := vm.Syscalls.Register(sysExit)
	assert.NoError(t, err)
	assert.Equal(t, 0, ordinal)
	return
}

// assembleText assembles a program given as lines.
func assembleText(t *testing.T, lines ...string) []byte {
	asm := &Assembler{Strict: true}
	out, err := asm.Parse(strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatal(err)
	}
	return out.Bytes()
}

func TestVM(t *testing.T) {
	assert := assert.New(t)

	vm := NewVM(ARENA_SIZE)
	assert.Equal(STATE_READY, vm.State())
	assert.Equal([REGISTER_COUNT]uint16{}, vm.Register)
	assert.Equal(Flags(0), vm.Flags)
	assert.True(vm.CallStack.Empty())
	assert.Equal(ARENA_SIZE, vm.Arena.Size())
	assert.Empty(vm.Code())

	result, err := vm.Run()
	assert.NoError(err)
	assert.Equal(int16(0), result)
	assert.Equal(STATE_HALTED, vm.State())
}

func TestVM_Load(t *testing.T) {
	assert := assert.New(t)

	vm := newTestVM(t, 64)
	assert.ErrorIs(vm.Load(nil), ErrProgramEmpty)
	_, err := vm.Run()
	assert.NoError(err)

	program := []byte{byte(OP_NOP), byte(OP_NOP)}
	assert.NoError(vm.Load(program))
	program[0] = 0xff
	assert.Equal(byte(OP_NOP), vm.Code()[0])

	_, err = vm.Run()
	assert.NoError(err)
	assert.Equal(2, vm.Ip)
	assert.Equal(2, vm.Ticks)

	// Reloading rewinds.
	assert.NoError(vm.Load(program[1:]))
	assert.Equal(0, vm.Ip)
	assert.Equal(STATE_READY, vm.State())
}

func TestVM_ScenarioA(t *testing.T) {
	assert := assert.New(t)

	vm := newTestVM(t, 64)
	assert.NoError(vm.Load(assembleText(t,
		"mov @0 #5",
		"mov @1 #7",
		"add @2 @0 @1",
		"sys #0",
		"mov @2 #0",
	)))

	result, err := vm.Run()
	assert.NoError(err)
	assert.Equal(uint16(12), vm.Register[2])
	assert.Equal(int16(5), result)
	assert.Equal(STATE_HALTED, vm.State())
	assert.Nil(vm.Fault())
}

func TestVM_ScenarioB(t *testing.T) {
	assert := assert.New(t)

	vm := newTestVM(t, 64)
	assert.NoError(vm.Load(assembleText(t,
		"alc @0 #4",
		"stb @0 #0 $65",
		"sys #0",
	)))

	_, err := vm.Run()
	assert.NoError(err)
	ptr := int(vm.Register[0])
	value, err := vm.Arena.LoadByte(ptr)
	assert.NoError(err)
	assert.Equal(byte(65), value)
}

func TestVM_ScenarioC(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{Strict: true}
	out, err := asm.Parse(strings.NewReader(strings.Join([]string{
		"cmp #5 #5",
		"jeq target",
		"mov @1 #1",
		"target:",
		"mov @2 #2",
	}, "\n")))
	assert.NoError(err)

	vm := newTestVM(t, 64)
	assert.NoError(vm.Load(out.Bytes()))

	// cmp, then jeq
	done, err := vm.Step()
	assert.False(done)
	assert.NoError(err)
	assert.Equal(CMP_EQUAL, vm.Flags)

	done, err = vm.Step()
	assert.False(done)
	assert.NoError(err)
	assert.Equal(asm.Label["target"], vm.Ip)

	_, err = vm.Run()
	assert.NoError(err)
	assert.Equal(uint16(0), vm.Register[1])
	assert.Equal(uint16(2), vm.Register[2])
}

func TestVM_ScenarioD(t *testing.T) {
	assert := assert.New(t)

	vm := newTestVM(t, 64)
	assert.NoError(vm.Load(assembleText(t,
		"mov @0 #1",
		"div @1 @0 #0",
		"mov @2 #2",
	)))

	_, err := vm.Run()
	assert.ErrorIs(err, ErrDivisionByZero)

	var fault *Fault
	assert.True(errors.As(err, &fault))
	// mov @0 #1 is six bytes.
	assert.Equal(6, fault.Ip)
	assert.Equal(OP_DIV, fault.Opcode)
	assert.Equal(6, vm.Ip)
	assert.Equal(STATE_FAULTED, vm.State())
	assert.Equal(uint16(0), vm.Register[2])

	// No further instructions run.
	done, err := vm.Step()
	assert.True(done)
	assert.ErrorIs(err, ErrDivisionByZero)
	assert.Equal(uint16(0), vm.Register[2])
}

func TestVM_ScenarioE(t *testing.T) {
	assert := assert.New(t)

	vm := newTestVM(t, 128)
	assert.NoError(vm.Load(assembleText(t,
		"alc @0 #128",
		"alc @1 #1",
	)))

	_, err := vm.Run()
	assert.ErrorIs(err, ErrOutOfMemory)
	assert.Equal(uint16(0), vm.Register[0])
	// alc @0 #128 is six bytes.
	assert.Equal(6, vm.Fault().Ip)
	assert.Equal(128, vm.Arena.Used())
}

func TestVM_Arithmetic(t *testing.T) {
	assert := assert.New(t)

	values := []int16{0, 1, -1, 2, -2, 7, -7, 255, 256, 1000, -1000,
		math.MaxInt16, math.MinInt16, math.MaxInt16 - 1, math.MinInt16 + 1}

	vm := newTestVM(t, 16)
	for _, a := range values {
		for _, b := range values {
			program := EncodeProgram(
				Instruction{Opcode: OP_MOV, Operands: []Operand{Reg(0), Imm(int(a))}},
				Instruction{Opcode: OP_MOV, Operands: []Operand{Reg(1), Imm(int(b))}},
				Instruction{Opcode: OP_ADD, Operands: []Operand{Reg(2), Reg(0), Reg(1)}},
				Instruction{Opcode: OP_SUB, Operands: []Operand{Reg(3), Reg(0), Reg(1)}},
				Instruction{Opcode: OP_MUL, Operands: []Operand{Reg(4), Reg(0), Reg(1)}},
				Instruction{Opcode: OP_CMP, Operands: []Operand{Reg(0), Reg(1)}},
				Instruction{Opcode: OP_DIV, Operands: []Operand{Reg(5), Reg(0), Reg(1)}},
			)
			assert.NoError(vm.Load(program))
			_, err := vm.Run()

			assert.Equal(uint16(a+b), vm.Register[2], "%d+%d", a, b)
			assert.Equal(uint16(a-b), vm.Register[3], "%d-%d", a, b)
			assert.Equal(uint16(a*b), vm.Register[4], "%d*%d", a, b)

			switch {
			case a == b:
				assert.Equal(CMP_EQUAL, vm.Flags, "%d cmp %d", a, b)
			case a < b:
				assert.Equal(CMP_LESS, vm.Flags, "%d cmp %d", a, b)
			default:
				assert.Equal(CMP_GREATER, vm.Flags, "%d cmp %d", a, b)
			}

			if b == 0 {
				assert.ErrorIs(err, ErrDivisionByZero, "%d/%d", a, b)
			} else {
				assert.NoError(err, "%d/%d", a, b)
				assert.Equal(uint16(a/b), vm.Register[5], "%d/%d", a, b)
			}
		}
	}
}

func TestVM_Operands(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name  string
		code  []byte
		value uint16
		err   error
	}){
		{"literal", []byte{byte(OP_MOV), TAG_REG, 1, 7}, 7, nil},
		{"literal high", []byte{byte(OP_MOV), TAG_REG, 1, 0xfe}, 0xfe, nil},
		{"byte", []byte{byte(OP_MOV), TAG_REG, 1, TAG_IMB, TAG_REG}, uint16(TAG_REG), nil},
		{"short", []byte{byte(OP_MOV), TAG_REG, 1, TAG_IMS, 0x34, 0x12}, 0x1234, nil},
		{"register", []byte{byte(OP_MOV), TAG_REG, 1, TAG_REG, 1}, 0, nil},
		{"bad register", []byte{byte(OP_MOV), TAG_REG, 1, TAG_REG, 16}, 0, ErrRegisterInvalid},
		{"bad target", []byte{byte(OP_MOV), TAG_REG, 16, 1}, 0, ErrRegisterInvalid},
		{"expected register", []byte{byte(OP_MOV), TAG_IMB, 1, 1}, 0, ErrExpectedRegister},
		{"truncated", []byte{byte(OP_MOV), TAG_REG, 1, TAG_IMS, 0x34}, 0, ErrProgramTruncated},
		{"missing", []byte{byte(OP_MOV), TAG_REG}, 0, ErrProgramTruncated},
		{"tag as opcode", []byte{TAG_IMS, 0, 0}, 0, ErrUnknownOpcode},
		{"unknown", []byte{0xff}, 0, ErrUnknownOpcode},
	}

	for _, entry := range table {
		vm := newTestVM(t, 16)
		assert.NoError(vm.Load(entry.code), entry.name)
		_, err := vm.Run()
		if entry.err != nil {
			assert.ErrorIs(err, entry.err, entry.name)
			assert.Equal(0, vm.Fault().Ip, entry.name)
			continue
		}
		assert.NoError(err, entry.name)
		assert.Equal(entry.value, vm.Register[1], entry.name)
	}
}

func TestVM_Jumps(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		op    string
		a, b  int
		taken bool
	}){
		{"jmp", 0, 0, true},
		{"jeq", 1, 1, true},
		{"jeq", 1, 2, false},
		{"jne", 1, 2, true},
		{"jne", 2, 2, false},
		{"jlt", -5, 2, true},
		{"jlt", 2, -5, false},
		{"jgt", 2, -5, true},
		{"jgt", 2, 2, false},
	}

	for _, entry := range table {
		vm := newTestVM(t, 16)
		assert.NoError(vm.Load(assembleText(t,
			fmt.Sprintf("cmp #%d #%d", entry.a, entry.b),
			entry.op+" skip",
			"mov @1 #1",
			"skip:",
			"mov @2 #2",
		)))
		_, err := vm.Run()
		assert.NoError(err, entry)
		assert.Equal(entry.taken, vm.Register[1] == 0, entry)
		assert.Equal(uint16(2), vm.Register[2], entry)
		assert.True(vm.CallStack.Empty(), entry)
	}
}

func TestVM_Branches(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		op    string
		a, b  int
		taken bool
	}){
		{"brn", 0, 0, true},
		{"beq", 3, 3, true},
		{"beq", 3, 4, false},
		{"bne", 3, 4, true},
		{"bne", 4, 4, false},
		{"blt", 3, 4, true},
		{"blt", 4, 3, false},
		{"bgt", 4, 3, true},
		{"bgt", 3, 3, false},
	}

	for _, entry := range table {
		vm := newTestVM(t, 16)
		assert.NoError(vm.Load(assembleText(t,
			fmt.Sprintf("cmp #%d #%d", entry.a, entry.b),
			entry.op+" func",
			"add @3 @3 #1",
			"sys #0",
			"func:",
			"mov @1 #1",
			"ret",
		)))
		_, err := vm.Run()
		assert.NoError(err, entry)
		assert.Equal(entry.taken, vm.Register[1] == 1, entry)
		assert.Equal(uint16(1), vm.Register[3], entry)
		assert.True(vm.CallStack.Empty(), entry)
	}
}

func TestVM_BranchReturnAddress(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{Strict: true}
	out, err := asm.Parse(strings.NewReader(strings.Join([]string{
		"brn func", // 3 + 1 bytes
		"sys #0",
		"func:",
		"ret",
	}, "\n")))
	assert.NoError(err)

	vm := newTestVM(t, 16)
	assert.NoError(vm.Load(out.Bytes()))

	_, err = vm.Step()
	assert.NoError(err)
	assert.Equal(asm.Label["func"], vm.Ip)
	ret, ok := vm.CallStack.Peek()
	assert.True(ok)
	assert.Equal(4, ret)

	_, err = vm.Step()
	assert.NoError(err)
	assert.Equal(4, vm.Ip)
	assert.True(vm.CallStack.Empty())
}

func TestVM_CallStackFaults(t *testing.T) {
	assert := assert.New(t)

	vm := newTestVM(t, 16)
	assert.NoError(vm.Load([]byte{byte(OP_RET)}))
	_, err := vm.Run()
	assert.ErrorIs(err, ErrCallStackUnderflow)

	// Infinite recursion
	assert.NoError(vm.Load(assembleText(t,
		"top:",
		"brn top",
	)))
	_, err = vm.Run()
	assert.ErrorIs(err, ErrCallStackOverflow)
	assert.Equal(STACK_LIMIT, vm.CallStack.Depth())
	assert.Equal(STACK_LIMIT, vm.Ticks)
}

func TestVM_Syscall(t *testing.T) {
	assert := assert.New(t)

	vm := NewVM(16)
	var calls []uint16
	record := func(vm *VM) (status int, err error) {
		calls = append(calls, vm.Register[0])
		vm.Register[0]++
		return
	}
	failure := errors.New("host failure")
	fail := func(vm *VM) (status int, err error) {
		return 0, failure
	}

	_, err := vm.Syscalls.Register(sysExit)
	assert.NoError(err)
	ordinal, err := vm.Syscalls.Register(record)
	assert.NoError(err)
	assert.Equal(1, ordinal)
	ordinal, err = vm.Syscalls.Register(fail)
	assert.NoError(err)
	assert.Equal(2, ordinal)

	assert.NoError(vm.Load(assembleText(t,
		"sys #1",
		"sys #1",
		"sys $0",
		"sys #1",
	)))
	result, err := vm.Run()
	assert.NoError(err)
	assert.Equal(int16(2), result)
	assert.Equal([]uint16{0, 1}, calls)

	assert.NoError(vm.Load(assembleText(t, "sys #2")))
	_, err = vm.Run()
	assert.ErrorIs(err, failure)

	assert.NoError(vm.Load(assembleText(t, "sys #3")))
	_, err = vm.Run()
	assert.ErrorIs(err, ErrNoHandler)
	assert.ErrorIs(err, ErrOrdinal(3))
}

func TestVM_SyscallTableFull(t *testing.T) {
	assert := assert.New(t)

	var sc Syscalls
	for n := range SYSCALL_LIMIT {
		ordinal, err := sc.Register(sysExit)
		assert.NoError(err)
		assert.Equal(n, ordinal)
	}
	_, err := sc.Register(sysExit)
	assert.ErrorIs(err, ErrHandlerTableFull)
	assert.Equal(SYSCALL_LIMIT, sc.Len())

	_, ok := sc.Get(SYSCALL_LIMIT)
	assert.False(ok)
	_, ok = sc.Get(-1)
	assert.False(ok)
}

func TestVM_Memory(t *testing.T) {
	assert := assert.New(t)

	vm := newTestVM(t, 32)
	assert.NoError(vm.Load(assembleText(t,
		"alc @0 #4",
		"stb @0 #3 #511", // low byte only
		"ldb @1 @0 #3",
		"fre @0",
		"alc @2 #4",
	)))
	_, err := vm.Run()
	assert.NoError(err)
	assert.Equal(uint16(0xff), vm.Register[1])
	assert.Equal(vm.Register[0], vm.Register[2])

	table := [](struct {
		name  string
		lines []string
		err   error
	}){
		{"store outside", []string{"alc @0 #4", "stb @0 #4 $1"}, ErrNotAllocated},
		{"store unallocated", []string{"stb #0 #0 $1"}, ErrNotAllocated},
		{"store negative", []string{"alc @0 #4", "stb @0 #-1 $1"}, ErrNotAllocated},
		{"load unallocated", []string{"ldb @1 #0 #0"}, ErrNotAllocated},
		{"free twice", []string{"alc @0 #4", "fre @0", "fre @0"}, ErrNotAllocated},
		{"free interior", []string{"alc @0 #4", "fre #1"}, ErrNotAllocated},
		{"store after free", []string{"alc @0 #4", "fre @0", "stb @0 #0 $1"}, ErrNotAllocated},
		{"zero size", []string{"alc @0 #0"}, ErrOutOfMemory},
		{"too big", []string{"alc @0 #33"}, ErrOutOfMemory},
		{"alloc needs register", []string{"alc #0 #4"}, ErrExpectedRegister},
	}

	for _, entry := range table {
		vm := newTestVM(t, 32)
		assert.NoError(vm.Load(assembleText(t, entry.lines...)), entry.name)
		_, err := vm.Run()
		assert.ErrorIs(err, entry.err, entry.name)
	}

	// Pointers are unsigned across the whole 16-bit space.
	vm = newTestVM(t, 0x10000)
	assert.NoError(vm.Load(assembleText(t,
		"alc @0 #40000",
		"alc @1 #4",
		"stb @1 #0 $65",
		"ldb @2 @1 #0",
		"mov @3 #2",
		"stb @1 @3 $66",
		"ldb @4 @1 #2",
		"mov @5 #40005",
		"stb @5 #-2 $67",
		"ldb @6 @1 #3",
	)))
	_, err = vm.Run()
	assert.NoError(err)
	assert.Equal(uint16(40000), vm.Register[1])
	assert.Equal(uint16(65), vm.Register[2])
	assert.Equal(uint16(66), vm.Register[4])
	assert.Equal(uint16(67), vm.Register[6])
}

func TestVM_Display(t *testing.T) {
	assert := assert.New(t)

	vm := newTestVM(t, 16)
	assert.NoError(vm.Load(assembleText(t, "cls $1")))
	_, err := vm.Run()
	assert.ErrorIs(err, ErrNoDisplay)

	front := display.NewScreen(8, 4)
	back := display.NewScreen(8, 4)
	vm.SetScreens(front, back)

	assert.NoError(vm.Load(assembleText(t,
		"cls $3",
		"spx #2 #1 $9",
		"spx @0 @0 #300",
	)))
	_, err = vm.Run()
	assert.NoError(err)
	assert.Equal(byte(9), front.At(2, 1))
	assert.Equal(byte(300&0xff), front.At(0, 0))
	assert.Equal(byte(3), front.At(7, 3))
	assert.Equal(byte(0), back.At(7, 3))

	assert.NoError(vm.SelectScreen(1))
	assert.ErrorIs(vm.SelectScreen(2), ErrScreenInvalid)
	assert.NoError(vm.Load(assembleText(t, "spx #7 #3 $5")))
	_, err = vm.Run()
	assert.NoError(err)
	assert.Equal(byte(5), back.At(7, 3))
	assert.Equal(byte(3), front.At(7, 3))

	for _, line := range []string{"spx #8 #0 $1", "spx #0 #4 $1", "spx #-1 #0 $1"} {
		assert.NoError(vm.Load(assembleText(t, line)))
		_, err = vm.Run()
		assert.ErrorIs(err, ErrPixelBounds, line)
	}
}

func TestVM_Observer(t *testing.T) {
	assert := assert.New(t)

	vm := newTestVM(t, 16)
	assert.NoError(vm.Load(assembleText(t,
		"mov @0 #5",
		"cmp @0 #6",
		"sys #0",
	)))

	var ips []int
	var ops []Opcode
	var flags []Flags
	vm.Observer = ObserverFunc(func(view View) {
		ips = append(ips, view.Ip())
		ops = append(ops, view.Opcode())
		flags = append(flags, view.Flags())
		assert.Equal(STATE_RUNNING, view.State())
		code := view.Code()
		code[0] = 0xff
	})

	_, err := vm.Run()
	assert.NoError(err)
	assert.Equal([]int{0, 6, 12}, ips)
	assert.Equal([]Opcode{OP_MOV, OP_CMP, OP_SYS}, ops)
	assert.Equal([]Flags{0, 0, CMP_LESS}, flags)
	assert.Equal(byte(OP_MOV), vm.Code()[0])
}

func TestVM_Reset(t *testing.T) {
	assert := assert.New(t)

	vm := newTestVM(t, 16)
	assert.NoError(vm.Load(assembleText(t, "alc @0 #4", "cmp #1 #2")))
	_, err := vm.Run()
	assert.NoError(err)
	assert.Equal(4, vm.Arena.Used())

	vm.Reset()
	assert.Equal(0, vm.Arena.Used())
	assert.Equal(Flags(0), vm.Flags)
	assert.Equal(0, vm.Ip)
	assert.Equal(STATE_READY, vm.State())

	// Program survives a reset.
	_, err = vm.Run()
	assert.NoError(err)
	assert.Equal(4, vm.Arena.Used())

	// An empty machine resets to a ready state.
	empty := newTestVM(t, 16)
	assert.ErrorIs(empty.Load(nil), ErrProgramEmpty)
	empty.Register[0] = 7
	empty.Reset()
	assert.Equal(uint16(0), empty.Register[0])
	assert.Equal(STATE_READY, empty.State())
	done, err := empty.Step()
	assert.True(done)
	assert.NoError(err)
}

func TestVM_String(t *testing.T) {
	assert := assert.New(t)

	vm := NewVM(16)
	vm.Register[5] = uint16(0xffff)
	vm.Flags = CMP_GREATER
	text := vm.String()
	assert.Contains(text, "r5:     -1")
	assert.Contains(text, "cmp: --G")
	assert.Equal(7, strings.Count(text, "\n"))
}

func TestVM_Defines(t *testing.T) {
	assert := assert.New(t)

	vm := NewVM(128)
	defines := map[string]string{}
	for key, value := range vm.Defines() {
		defines[key] = value
	}
	assert.Equal("#128", defines["ARENA_SIZE"])
	assert.Equal("#16", defines["REGISTER_COUNT"])
}
