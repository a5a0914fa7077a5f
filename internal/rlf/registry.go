package rlf

import (
	"fmt"

	"example.com/remusdec/internal/layout"
)

// CompositeFunc decodes every occurrence of one variable-layout record
// type into the dataset and returns the number of occurrences it had to
// discard as malformed.
type CompositeFunc func(d *Dataset, payloads [][]byte) int

// Registry maps record type codes to their decoders: fixed-layout types
// resolve through the layout store, everything else through registered
// composite functions. A registry is assembled once and then read-only,
// so concurrent parses can share it.
type Registry struct {
	layouts    *layout.Store
	composites map[uint16]CompositeFunc
}

// NewRegistry builds an empty registry over a layout store.
func NewRegistry(layouts *layout.Store) *Registry {
	return &Registry{
		layouts:    layouts,
		composites: make(map[uint16]CompositeFunc),
	}
}

// RegisterComposite binds a composite decoder to a type code. A code may
// have either a layout or a composite decoder, not both.
func (r *Registry) RegisterComposite(code uint16, fn CompositeFunc) error {
	if fn == nil {
		return fmt.Errorf("rlf: nil composite for 0x%04x", code)
	}
	if _, ok := r.layouts.Lookup(code); ok {
		return fmt.Errorf("rlf: 0x%04x already has a layout decoder", code)
	}
	if _, ok := r.composites[code]; ok {
		return fmt.Errorf("rlf: duplicate composite for 0x%04x", code)
	}
	r.composites[code] = fn
	return nil
}

// Default returns a registry covering every known record type: the
// embedded layouts plus the built-in composite decoders.
func Default() *Registry {
	r, err := WithLayouts(layout.Builtin())
	if err != nil {
		panic(fmt.Sprintf("rlf: built-in registry: %v", err))
	}
	return r
}

// WithLayouts builds a registry from a caller-supplied layout store, for
// overriding the embedded field maps, with the built-in composite
// decoders on top. A store that claims a composite type code is an error.
func WithLayouts(layouts *layout.Store) (*Registry, error) {
	r := NewRegistry(layouts)
	for code, fn := range builtinComposites() {
		if err := r.RegisterComposite(code, fn); err != nil {
			return nil, err
		}
	}
	return r, nil
}
