// Package vm implements the fakeos register machine and its assembler.
//
// The machine has sixteen 16-bit registers (@0-@15), a three bit comparison
// flag state, a 256 entry call stack, a byte granular memory arena, a table
// of host supplied system calls, and two external screens it may draw on.
// Programs are flat byte streams: one opcode byte followed by operands, each
// operand being a tag byte and its payload, or a bare literal byte.
//
// The assembler is a two pass, line oriented translator from mnemonic text
// to that byte stream, with labels, equates and compile-time expressions.
package vm
