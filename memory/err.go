package memory

import (
	"errors"

	"github.com/ezrec/fakeos/translate"
)

var f = translate.From

var (
	ErrOutOfMemory  = errors.New(f("out of memory"))
	ErrNotAllocated = errors.New(f("memory not allocated"))
)
