package object

import (
	"github.com/pebbl-lang/pebbl/internal/errs"
	"github.com/pebbl-lang/pebbl/pkg/value"
)

// Define inserts name in e's own bindings, shadowing any outer binding —
// define is idempotent: redefining an existing local name simply replaces
// its slot.
func (e *Environment) Define(name string, v value.Value, mutable bool) {
	e.Bindings[name] = &Binding{Value: v, Mutable: mutable}
}

// Get searches e then its parent chain, returning *RuntimeError{UndefinedName}
// if name is bound nowhere in the chain.
func (e *Environment) Get(name string) (value.Value, error) {
	for env := e; env != nil; env = env.Parent {
		if b, ok := env.Bindings[name]; ok {
			return b.Value, nil
		}
	}
	return value.Nil, errs.New(errs.UndefinedName, "undefined name %q", name)
}

// Set assigns v to the nearest existing binding of name in e's parent
// chain. It never creates a binding: UndefinedName if none exists,
// ImmutableAssignment if the found binding is not mutable.
func (e *Environment) Set(name string, v value.Value) error {
	for env := e; env != nil; env = env.Parent {
		if b, ok := env.Bindings[name]; ok {
			if !b.Mutable {
				return errs.New(errs.ImmutableAssignment, "cannot assign to immutable binding %q", name)
			}
			b.Value = v
			return nil
		}
	}
	return errs.New(errs.UndefinedName, "undefined name %q", name)
}

// Exists reports whether name is bound anywhere in e's parent chain.
func (e *Environment) Exists(name string) bool {
	for env := e; env != nil; env = env.Parent {
		if _, ok := env.Bindings[name]; ok {
			return true
		}
	}
	return false
}
