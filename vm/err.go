package vm

import (
	"errors"

	"github.com/ezrec/fakeos/memory"
	"github.com/ezrec/fakeos/translate"
)

var f = translate.From

var (
	// Machine faults
	ErrUnknownOpcode      = errors.New(f("unknown opcode"))
	ErrExpectedRegister   = errors.New(f("expected register"))
	ErrRegisterInvalid    = errors.New(f("register invalid"))
	ErrDivisionByZero     = errors.New(f("division by zero"))
	ErrOutOfMemory        = memory.ErrOutOfMemory
	ErrNotAllocated       = memory.ErrNotAllocated
	ErrNoHandler          = errors.New(f("no handler at ordinal"))
	ErrCallStackOverflow  = errors.New(f("call stack overflow"))
	ErrCallStackUnderflow = errors.New(f("call stack underflow"))
	ErrProgramTruncated   = errors.New(f("program truncated"))
	ErrNoDisplay          = errors.New(f("no display attached"))
	ErrPixelBounds        = errors.New(f("pixel out of bounds"))

	// Setup errors
	ErrHandlerTableFull = errors.New(f("syscall table full"))
	ErrProgramEmpty     = errors.New(f("program empty"))
	ErrScreenInvalid    = errors.New(f("screen invalid"))

	// Assembler errors
	ErrEquateSyntax    = errors.New(f(".equ syntax"))
	ErrEquateDuplicate = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate  = errors.New(f("label duplicated"))
	ErrLabelSyntax     = errors.New(f("label syntax"))
)

// Fault is an abnormal halt of the machine.
type Fault struct {
	Ip     int    // Offset of the faulting instruction.
	Opcode Opcode // Opcode of the faulting instruction.
	Err    error
}

func (err *Fault) Error() string {
	return f("%v at byte %d (%v)", err.Err, err.Ip, err.Opcode)
}

func (err *Fault) Unwrap() error {
	return err.Err
}

// ErrOrdinal names the ordinal of a missing system call.
type ErrOrdinal int

func (err ErrOrdinal) Error() string {
	return f("ordinal %d", int(err))
}

// ErrSyntax locates an assembler error in the source.
type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

type ErrTokenUnknown string

func (err ErrTokenUnknown) Error() string {
	return f("'%v' is not a mnemonic, operand or label", string(err))
}

type ErrOperandRange string

func (err ErrOperandRange) Error() string {
	return f("'%v' is out of range", string(err))
}
