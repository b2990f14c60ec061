package vm

import (
	"iter"
)

// decodeOperand decodes the operand at code[ip:], returning its size.
func decodeOperand(code []byte, ip int) (arg Operand, size int, ok bool) {
	if ip >= len(code) {
		return
	}

	tag := code[ip]
	arg.Tag = tag
	switch tag {
	case TAG_REG, TAG_IMB:
		if ip+1 >= len(code) {
			return
		}
		arg.Value = uint16(code[ip+1])
		size = 2
	case TAG_IMS:
		if ip+2 >= len(code) {
			return
		}
		arg.Value = uint16(code[ip+1]) | (uint16(code[ip+2]) << 8)
		size = 3
	default:
		arg.Value = uint16(tag)
		size = 1
	}

	ok = true
	return
}

// Decode decodes the instruction at code[ip:].
// Undefined opcodes decode as a lone opcode byte.
func Decode(code []byte, ip int) (inst Instruction, ok bool) {
	if ip < 0 || ip >= len(code) {
		return
	}

	inst = Instruction{Ip: ip, Opcode: Opcode(code[ip])}
	next := ip + 1
	for range inst.Opcode.Args() {
		arg, size, valid := decodeOperand(code, next)
		if !valid {
			return
		}
		inst.Operands = append(inst.Operands, arg)
		next += size
	}

	ok = true
	return
}

// Disassemble returns an iterator over the instructions of a program image,
// in storage order. It stops at the first truncated instruction.
func Disassemble(code []byte) iter.Seq2[int, Instruction] {
	return func(yield func(ip int, inst Instruction) bool) {
		for ip := 0; ip < len(code); {
			inst, ok := Decode(code, ip)
			if !ok {
				return
			}
			if !yield(ip, inst) {
				return
			}
			ip += inst.Size()
		}
	}
}
