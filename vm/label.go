package vm

import (
	"strings"
)

// LabelTable maps case-normalized label names to byte offsets.
type LabelTable map[string]int

// Define binds name to ip. A name may only be defined once.
func (lt LabelTable) Define(name string, ip int) (err error) {
	name = strings.ToLower(name)
	if len(name) == 0 {
		err = ErrLabelSyntax
		return
	}
	_, ok := lt[name]
	if ok {
		err = ErrLabelDuplicate
		return
	}
	lt[name] = ip
	return
}

// Lookup finds the offset of a label, ignoring case.
func (lt LabelTable) Lookup(name string) (ip int, ok bool) {
	ip, ok = lt[strings.ToLower(name)]
	return
}

// labelDefinition returns the label name if line is a label definition:
// a single word ending in ':'.
func labelDefinition(line string) (name string, ok bool) {
	words := strings.Fields(line)
	if len(words) != 1 || !strings.HasSuffix(words[0], ":") {
		return
	}
	name = strings.ToLower(strings.TrimSuffix(words[0], ":"))
	ok = true
	return
}
