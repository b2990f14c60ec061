package vm

import (
	"slices"
)

// View is read-only access to the machine, handed to observers.
type View interface {
	Ip() int
	Opcode() Opcode
	Register(index int) uint16
	Registers() [REGISTER_COUNT]uint16
	Flags() Flags
	CallDepth() int
	State() State
	Ticks() int
	Peek(addr int) byte
	Allocated(addr int) bool
	Code() []byte
	String() string
}

// Observer is called once before each instruction is decoded.
type Observer interface {
	Observe(view View)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(view View)

func (fn ObserverFunc) Observe(view View) {
	fn(view)
}

// view wraps the machine so observers cannot reach the mutable state.
type view struct {
	vm *VM
}

var _ View = view{}

func (v view) Ip() int {
	return v.vm.Ip
}

func (v view) Opcode() Opcode {
	if v.vm.Ip < 0 || v.vm.Ip >= len(v.vm.code) {
		return OP_NOP
	}
	return Opcode(v.vm.code[v.vm.Ip])
}

func (v view) Register(index int) uint16 {
	if index < 0 || index >= REGISTER_COUNT {
		return 0
	}
	return v.vm.Register[index]
}

func (v view) Registers() [REGISTER_COUNT]uint16 {
	return v.vm.Register
}

func (v view) Flags() Flags {
	return v.vm.Flags
}

func (v view) CallDepth() int {
	return v.vm.CallStack.Depth()
}

func (v view) State() State {
	return v.vm.State()
}

func (v view) Ticks() int {
	return v.vm.Ticks
}

func (v view) Peek(addr int) byte {
	return v.vm.Arena.Peek(addr)
}

func (v view) Allocated(addr int) bool {
	return v.vm.Arena.Allocated(addr)
}

func (v view) Code() []byte {
	return slices.Clone(v.vm.code)
}

func (v view) String() string {
	return v.vm.String()
}
