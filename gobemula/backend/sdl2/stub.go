//go:build !sdl2

// Package sdl2 presents frames in an SDL2 window. This stub is compiled
// when the sdl2 build tag is absent.
package sdl2

import (
	"errors"

	"github.com/gobemu/gobemula/gobemula"
)

// Backend stub used when SDL2 support is not compiled in.
type Backend struct{}

// New reports that SDL2 support is missing.
func New(_ *gobemula.Emulator, _ int) (*Backend, error) {
	return nil, errors.New("SDL2 backend not available, rebuild with -tags sdl2")
}

// Run never executes; New always fails first.
func (b *Backend) Run() error {
	return errors.New("SDL2 backend not available")
}
