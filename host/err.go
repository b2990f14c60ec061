package host

import (
	"errors"

	"github.com/ezrec/fakeos/translate"
)

var f = translate.From

var (
	ErrStepLimit   = errors.New(f("step limit reached"))
	ErrOrdinalSkew = errors.New(f("syscall registered at unexpected ordinal"))
)

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	Ip     int
	LineNo int // 0 when no source is known.
	Err    error
}

func (err *ErrRuntime) Error() string {
	if err.LineNo == 0 {
		return f("byte %d %v", err.Ip, err.Err)
	}
	return f("line %d byte %d %v", err.LineNo, err.Ip, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}
