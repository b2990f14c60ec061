// Package config holds the TOML configuration of a fakeos host.
//
// A configuration file looks like:
//
//	[machine]
//	profile = "embedded"
//
//	[display]
//	width = 320
//	height = 200
//	scale = 3
//
//	[assembler]
//	strict = true
//
//	[run]
//	max-steps = 1000000
//
// Keys left out keep their Default values.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ezrec/fakeos/display"
	"github.com/ezrec/fakeos/memory"
)

const (
	PROFILE_DESKTOP  = "desktop"  // Full size arena.
	PROFILE_EMBEDDED = "embedded" // Small arena.

	ARENA_LIMIT = 0x10000 // Pointers are 16 bits wide.
)

var profileArena = map[string]int{
	PROFILE_DESKTOP:  memory.SIZE_DESKTOP,
	PROFILE_EMBEDDED: memory.SIZE_EMBEDDED,
}

// Config is the complete host configuration.
type Config struct {
	Machine   Machine   `toml:"machine"`
	Display   Display   `toml:"display"`
	Assembler Assembler `toml:"assembler"`
	Run       Run       `toml:"run"`
}

// Machine selects the arena size, by profile or explicitly.
type Machine struct {
	Profile   string `toml:"profile"`
	ArenaSize int    `toml:"arena-size,omitempty"` // Overrides the profile when non-zero.
}

// Display is the geometry of both screens.
type Display struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
	Scale  int `toml:"scale"` // PNG export magnification.
}

// Assembler options.
type Assembler struct {
	Strict bool `toml:"strict"`
}

// Run limits.
type Run struct {
	MaxSteps int `toml:"max-steps"` // 0 is unlimited.
}

// Default returns the desktop configuration.
func Default() (cfg *Config) {
	cfg = &Config{
		Machine: Machine{
			Profile: PROFILE_DESKTOP,
		},
		Display: Display{
			Width:  display.WIDTH,
			Height: display.HEIGHT,
			Scale:  display.SCALE,
		},
	}
	return
}

// ArenaSize is the arena size in bytes the machine should be created with.
func (cfg *Config) ArenaSize() int {
	if cfg.Machine.ArenaSize != 0 {
		return cfg.Machine.ArenaSize
	}
	return profileArena[strings.ToLower(cfg.Machine.Profile)]
}

// Validate checks every value is usable.
func (cfg *Config) Validate() (err error) {
	_, ok := profileArena[strings.ToLower(cfg.Machine.Profile)]
	if !ok {
		err = ErrProfileUnknown(cfg.Machine.Profile)
		return
	}

	size := cfg.ArenaSize()
	if size <= 0 || size > ARENA_LIMIT {
		err = ErrArenaSize(size)
		return
	}

	if cfg.Display.Width <= 0 || cfg.Display.Height <= 0 {
		err = ErrDisplayInvalid
		return
	}

	if cfg.Display.Scale < 1 {
		err = ErrScaleInvalid
		return
	}

	if cfg.Run.MaxSteps < 0 {
		err = ErrMaxStepsInvalid
		return
	}

	return
}

// Parse decodes TOML text over the defaults and validates the result.
// Unknown keys are an error.
func Parse(data []byte) (cfg *Config, err error) {
	cfg = Default()

	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		cfg = nil
		return
	}

	undecoded := meta.Undecoded()
	if len(undecoded) != 0 {
		cfg = nil
		err = ErrKeyUnknown(undecoded[0].String())
		return
	}

	err = cfg.Validate()
	if err != nil {
		cfg = nil
		return
	}

	return
}

// Load reads and parses a configuration file.
func Load(path string) (cfg *Config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	cfg, err = Parse(data)
	if err != nil {
		err = fmt.Errorf("%v: %w", path, err)
		return
	}

	return
}

// Encode writes the configuration as TOML.
func (cfg *Config) Encode(w io.Writer) (err error) {
	err = toml.NewEncoder(w).Encode(cfg)
	return
}
