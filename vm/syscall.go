package vm

const (
	SYSCALL_LIMIT = 256 // Maximum number of registered system calls.
)

// Syscall is a host supplied handler invoked by the sys instruction.
// A non-zero status requests a clean halt. A non-nil error faults the
// machine.
type Syscall func(vm *VM) (status int, err error)

// Syscalls is the ordinal indexed table of system calls.
type Syscalls struct {
	handler []Syscall
}

// Register appends a handler and returns its ordinal.
func (sc *Syscalls) Register(handler Syscall) (ordinal int, err error) {
	if len(sc.handler) >= SYSCALL_LIMIT {
		err = ErrHandlerTableFull
		ordinal = -1
		return
	}
	ordinal = len(sc.handler)
	sc.handler = append(sc.handler, handler)
	return
}

// Get returns the handler registered at ordinal.
func (sc *Syscalls) Get(ordinal int) (handler Syscall, ok bool) {
	if ordinal < 0 || ordinal >= len(sc.handler) {
		return
	}
	handler = sc.handler[ordinal]
	ok = handler != nil
	return
}

// Len is the number of registered handlers.
func (sc *Syscalls) Len() int {
	return len(sc.handler)
}
