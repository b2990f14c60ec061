package vm

import (
	"fmt"
	"strings"
)

// Opcode is the first byte of every instruction.
type Opcode byte

const (
	OP_NOP = Opcode(0)  // nop
	OP_SYS = Opcode(1)  // sys
	OP_MOV = Opcode(2)  // mov
	OP_ADD = Opcode(3)  // add
	OP_SUB = Opcode(4)  // sub
	OP_MUL = Opcode(5)  // mul
	OP_DIV = Opcode(6)  // div
	OP_JMP = Opcode(7)  // jmp
	OP_JEQ = Opcode(8)  // jeq
	OP_JNE = Opcode(9)  // jne
	OP_JLT = Opcode(10) // jlt
	OP_JGT = Opcode(11) // jgt
	OP_BRN = Opcode(12) // brn
	OP_BEQ = Opcode(13) // beq
	OP_BNE = Opcode(14) // bne
	OP_BLT = Opcode(15) // blt
	OP_BGT = Opcode(16) // bgt
	OP_CMP = Opcode(17) // cmp
	OP_RET = Opcode(18) // ret
	OP_ALC = Opcode(22) // alc
	OP_FRE = Opcode(23) // fre
	OP_STB = Opcode(24) // stb
	OP_LDB = Opcode(25) // ldb
	OP_SPX = Opcode(26) // spx
	OP_CLS = Opcode(27) // cls
)

// Operand tags. Bytes 19 through 21 are reserved for them, so they can
// never be written as bare literals.
const (
	TAG_REG = byte(19) // Register: one index byte follows.
	TAG_IMS = byte(20) // Short immediate: two bytes follow, low byte first.
	TAG_IMB = byte(21) // Byte immediate: one byte follows.
)

// Operand kinds of an instruction's signature.
const (
	ARG_REGISTER = 'r' // Must be TAG_REG.
	ARG_VALUE    = 'v' // Any operand form.
)

type opcodeInfo struct {
	name string
	args string
}

var opcodeTable = map[Opcode]opcodeInfo{
	OP_NOP: {"nop", ""},
	OP_SYS: {"sys", "v"},
	OP_MOV: {"mov", "rv"},
	OP_ADD: {"add", "rvv"},
	OP_SUB: {"sub", "rvv"},
	OP_MUL: {"mul", "rvv"},
	OP_DIV: {"div", "rvv"},
	OP_JMP: {"jmp", "v"},
	OP_JEQ: {"jeq", "v"},
	OP_JNE: {"jne", "v"},
	OP_JLT: {"jlt", "v"},
	OP_JGT: {"jgt", "v"},
	OP_BRN: {"brn", "v"},
	OP_BEQ: {"beq", "v"},
	OP_BNE: {"bne", "v"},
	OP_BLT: {"blt", "v"},
	OP_BGT: {"bgt", "v"},
	OP_CMP: {"cmp", "vv"},
	OP_RET: {"ret", ""},
	OP_ALC: {"alc", "rv"},
	OP_FRE: {"fre", "v"},
	OP_STB: {"stb", "vvv"},
	OP_LDB: {"ldb", "rvv"},
	OP_SPX: {"spx", "vvv"},
	OP_CLS: {"cls", "v"},
}

var mnemonicTable = func() map[string]Opcode {
	table := make(map[string]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		table[info.name] = op
	}
	return table
}()

// LookupMnemonic finds the opcode for a mnemonic, ignoring case.
func LookupMnemonic(name string) (op Opcode, ok bool) {
	op, ok = mnemonicTable[strings.ToLower(name)]
	return
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Args returns the operand signature, one ARG_* rune per operand.
func (op Opcode) Args() string {
	return opcodeTable[op].args
}

// String returns the mnemonic.
func (op Opcode) String() string {
	info, ok := opcodeTable[op]
	if !ok {
		return fmt.Sprintf("op(0x%02x)", byte(op))
	}
	return info.name
}

// IsTag reports whether b is a reserved operand tag byte.
func IsTag(b byte) bool {
	return b >= TAG_REG && b <= TAG_IMB
}

// Operand is a single decoded or to-be-encoded operand.
// A Tag that is not one of the TAG_* bytes is a bare literal, and Value
// then equals the tag.
type Operand struct {
	Tag   byte
	Value uint16
}

// Reg is a register operand.
func Reg(index int) Operand {
	return Operand{Tag: TAG_REG, Value: uint16(index)}
}

// Imm is a 16-bit immediate operand.
func Imm(value int) Operand {
	return Operand{Tag: TAG_IMS, Value: uint16(value)}
}

// Byte is an 8-bit immediate operand.
func Byte(value byte) Operand {
	return Operand{Tag: TAG_IMB, Value: uint16(value)}
}

// Value is the shortest operand that encodes value.
func Value(value uint16) Operand {
	switch {
	case value < 256 && !IsTag(byte(value)):
		return Operand{Tag: byte(value), Value: value}
	case value < 256:
		return Byte(byte(value))
	default:
		return Operand{Tag: TAG_IMS, Value: value}
	}
}

// Size is the encoded size in bytes.
func (arg Operand) Size() int {
	switch arg.Tag {
	case TAG_REG, TAG_IMB:
		return 2
	case TAG_IMS:
		return 3
	default:
		return 1
	}
}

// Encode appends the operand encoding to out.
func (arg Operand) Encode(out []byte) []byte {
	switch arg.Tag {
	case TAG_REG, TAG_IMB:
		return append(out, arg.Tag, byte(arg.Value))
	case TAG_IMS:
		return append(out, arg.Tag, byte(arg.Value&0xff), byte(arg.Value>>8))
	default:
		return append(out, arg.Tag)
	}
}

// String returns the assembler spelling of the operand.
func (arg Operand) String() string {
	switch arg.Tag {
	case TAG_REG:
		return fmt.Sprintf("@%d", arg.Value)
	case TAG_IMB:
		return fmt.Sprintf("$%d", arg.Value)
	case TAG_IMS:
		return fmt.Sprintf("#%d", int16(arg.Value))
	default:
		// Bare literals have no spelling of their own.
		return fmt.Sprintf("$%d", arg.Tag)
	}
}

// Instruction is an opcode with its operands.
type Instruction struct {
	Ip       int
	Opcode   Opcode
	Operands []Operand
}

// Size is the encoded size in bytes.
func (inst Instruction) Size() (size int) {
	size = 1
	for _, arg := range inst.Operands {
		size += arg.Size()
	}
	return
}

// Encode appends the instruction encoding to out.
func (inst Instruction) Encode(out []byte) []byte {
	out = append(out, byte(inst.Opcode))
	for _, arg := range inst.Operands {
		out = arg.Encode(out)
	}
	return out
}

// String returns the assembler spelling of the instruction.
func (inst Instruction) String() string {
	words := []string{inst.Opcode.String()}
	for _, arg := range inst.Operands {
		words = append(words, arg.String())
	}
	return strings.Join(words, " ")
}

// EncodeProgram encodes a list of instructions into a program image.
func EncodeProgram(insts ...Instruction) (code []byte) {
	for _, inst := range insts {
		code = inst.Encode(code)
	}
	return
}
