// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package vm

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/fakeos/chunk"
)

// Line is a line of source that produced code.
type Line struct {
	LineNo int      // Line number in the source, from 1.
	Ip     int      // Offset of the first byte produced.
	Size   int      // Number of bytes produced.
	Words  []string // Words after equate and expression substitution.
}

// Assembler is a two pass assembler for the fakeos machine.
//
// Pass one resolves every label to the offset of the first byte that
// follows its definition; pass two encodes the words of each line.
type Assembler struct {
	Verbose bool // If set, verbosely logs the assembler actions.
	Strict  bool // If set, unknown words and out of range operands are errors.

	Label  LabelTable        // Map of labels to byte offsets.
	Equate map[string]string // Map of equates.
	Lines  []Line            // Lines that produced code, in order.

	predefine map[string]string // Predefines
}

// Predefine defines an equate that is present before every Parse.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// LineNo returns the source line that produced the byte at ip, or 0.
func (asm *Assembler) LineNo(ip int) int {
	for _, line := range asm.Lines {
		if ip >= line.Ip && ip < line.Ip+line.Size {
			return line.LineNo
		}
	}
	return 0
}

var reExpression = regexp.MustCompile(`\$\([^\$]*\)`)

// numberOf returns the numeric value of an operand spelling, if it has one.
func numberOf(word string) (value int64, ok bool) {
	word = strings.TrimLeft(word, "#$")
	value, err := strconv.ParseInt(word, 0, 64)
	ok = err == nil
	return
}

// parenEval does compile-time $(...) evaluations.
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		v, ok := numberOf(str)
		if !ok {
			// Registers and other words are not numbers.
			continue
		}
		pred[key] = starlark.MakeInt64(v)
	}
	for key, ip := range asm.Label {
		pred[key] = starlark.MakeInt(ip)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrParseExpression(expr), err)
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	return
}

// parseLine expands expressions and equates, and splits a line into words.
func (asm *Assembler) parseLine(line string) (words []string, err error) {
	line = reExpression.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil && err == nil {
			err = _err
		}
		return fmt.Sprintf("#%d", value)
	})
	if err != nil {
		return
	}

	words = strings.Fields(line)
	for n, word := range words {
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	return
}

// parseNumber parses the decimal text of an operand, checking it lies
// within [min, max] in strict mode.
func (asm *Assembler) parseNumber(word string, min, max int64) (value int64, err error) {
	value, err = strconv.ParseInt(word[1:], 10, 64)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}
	if asm.Strict && (value < min || value > max) {
		err = ErrOperandRange(word)
		return
	}
	return
}

// encodeWord appends the encoding of a single word to out.
// Label references encode as zero until resolve is set.
// stop is set by the end-of-assembly marker.
func (asm *Assembler) encodeWord(out []byte, word string, resolve bool) (code []byte, stop bool, err error) {
	code = out

	if ip, ok := asm.Label.Lookup(word); ok {
		if !resolve {
			ip = 0
		}
		code = Imm(ip).Encode(code)
		return
	}

	if op, ok := LookupMnemonic(word); ok {
		code = append(code, byte(op))
		return
	}

	if word == "/" {
		stop = true
		return
	}

	var value int64
	switch word[0] {
	case '#':
		value, err = asm.parseNumber(word, -0x8000, 0xffff)
		if err != nil {
			return
		}
		code = Imm(int(value)).Encode(code)
		return
	case '$':
		value, err = asm.parseNumber(word, 0, 0xff)
		if err != nil {
			return
		}
		code = Byte(byte(value)).Encode(code)
		return
	case '@':
		value, err = asm.parseNumber(word, 0, REGISTER_COUNT-1)
		if err != nil {
			return
		}
		code = Reg(int(byte(value))).Encode(code)
		return
	}

	if asm.Strict {
		err = ErrTokenUnknown(word)
		return
	}

	if asm.Verbose {
		log.Printf("asm: ignoring '%v'", word)
	}

	return
}

// Parse assembles an input stream into a program image.
func (asm *Assembler) Parse(input io.Reader) (out *chunk.Chunk, err error) {
	var text []string

	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		text = append(text, scanner.Text())
	}
	err = scanner.Err()
	if err != nil {
		return
	}

	var line string
	var lineno int

	defer func() {
		if err != nil {
			err = ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	asm.Label = LabelTable{}
	asm.Lines = asm.Lines[:0]
	asm.Equate = maps.Clone(asm.predefine)
	if asm.Equate == nil {
		asm.Equate = map[string]string{}
	}

	// Pass 0: which words are labels.
	names := map[string]bool{}
	for n, single := range text {
		line, lineno = single, n+1
		if slices.Contains(strings.Fields(line), "/") {
			break
		}
		name, ok := labelDefinition(line)
		if !ok {
			continue
		}
		if len(name) == 0 {
			err = ErrLabelSyntax
			return
		}
		if names[name] {
			err = ErrLabelDuplicate
			return
		}
		names[name] = true
	}

	// Pass 1: bind labels to offsets.
	ip := 0
	stopped := false
	for n, single := range text {
		if stopped {
			break
		}

		line, lineno = single, n+1

		if asm.Verbose {
			log.Printf("asm: %v: %v", lineno, line)
		}

		if name, ok := labelDefinition(line); ok {
			err = asm.Label.Define(name, ip)
			if err != nil {
				return
			}
			continue
		}

		// .equ NAME VALUE
		if fields := strings.Fields(line); len(fields) > 0 && fields[0] == ".equ" {
			if len(fields) < 3 {
				err = ErrEquateSyntax
				return
			}
			_, ok := asm.Equate[fields[1]]
			if ok {
				err = ErrEquateDuplicate
				return
			}
			var value []string
			value, err = asm.parseLine(strings.Join(fields[2:], " "))
			if err != nil {
				return
			}
			if len(value) != 1 {
				err = ErrEquateSyntax
				return
			}
			asm.Equate[fields[1]] = value[0]
			continue
		}

		var words []string
		words, err = asm.parseLine(line)
		if err != nil {
			return
		}
		if len(words) == 0 {
			continue
		}

		size := 0
		for m, word := range words {
			var code []byte
			var stop bool
			if names[strings.ToLower(word)] {
				// Not yet bound, but always three bytes.
				code = Imm(0).Encode(code)
			} else {
				code, stop, err = asm.encodeWord(code, word, false)
				if err != nil {
					return
				}
			}
			if stop {
				words = words[:m]
				stopped = true
				break
			}
			size += len(code)
		}

		if size > 0 {
			asm.Lines = append(asm.Lines, Line{LineNo: lineno, Ip: ip, Size: size, Words: words})
		}
		ip += size
	}

	// Pass 2: encode.
	out = chunk.New()
	for _, entry := range asm.Lines {
		line, lineno = strings.Join(entry.Words, " "), entry.LineNo
		var code []byte
		for _, word := range entry.Words {
			code, _, err = asm.encodeWord(code, word, true)
			if err != nil {
				return
			}
		}
		if len(code) != entry.Size || out.Len() != entry.Ip {
			panic(fmt.Sprintf("asm: line %d: pass 2 produced %d bytes at %d, pass 1 sized %d at %d",
				entry.LineNo, len(code), out.Len(), entry.Size, entry.Ip))
		}
		out.Write(code)
	}

	if asm.Verbose {
		log.Printf("asm: %d bytes, %d labels", out.Len(), len(asm.Label))
	}

	return
}
