package config

import (
	"errors"

	"github.com/ezrec/fakeos/translate"
)

var f = translate.From

var (
	ErrDisplayInvalid  = errors.New(f("display width and height must be positive"))
	ErrScaleInvalid    = errors.New(f("display scale must be at least 1"))
	ErrMaxStepsInvalid = errors.New(f("max-steps must not be negative"))
)

// ErrProfileUnknown names a machine profile that does not exist.
type ErrProfileUnknown string

func (err ErrProfileUnknown) Error() string {
	return f("profile '%v' unknown", string(err))
}

// ErrArenaSize is an arena size outside 1..65536.
type ErrArenaSize int

func (err ErrArenaSize) Error() string {
	return f("arena size %d out of range", int(err))
}

// ErrKeyUnknown names a configuration key that is not understood.
type ErrKeyUnknown string

func (err ErrKeyUnknown) Error() string {
	return f("key '%v' unknown", string(err))
}
