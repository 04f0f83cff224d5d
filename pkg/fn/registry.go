// pkg/fn/registry.go
package fn

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/multierr"
)

// Registry maps function names to server functions.
//
// It is built once during startup and read for the lifetime of the process.
// Entries are replaced, never mutated, so a *Function returned by Lookup stays
// valid after a later Register or Refresh.
type Registry struct {
	ec  ExecContext
	mu  sync.RWMutex
	fns map[string]*Function
}

// NewRegistry returns an empty registry for the given execution context.
func NewRegistry(ec ExecContext) *Registry {
	return &Registry{ec: ec, fns: map[string]*Function{}}
}

func (r *Registry) Context() ExecContext { return r.ec }

type registerOptions struct {
	source *Source
}

// RegisterOption customizes a single registration.
type RegisterOption func(*registerOptions)

// WithSource supplies the function's source explicitly instead of reading it
// from the Go file that declares the function.
func WithSource(s Source) RegisterOption {
	return func(o *registerOptions) { o.source = &s }
}

// Register stores f under name. A later registration for the same name
// replaces the earlier one. In a client context Register does nothing.
func (r *Registry) Register(name string, f Func, opts ...RegisterOption) error {
	if r.ec != ServerContext {
		return nil
	}
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if f == nil {
		return fmt.Errorf("%w: %q", ErrNilFunc, name)
	}

	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}

	var src Source
	if o.source != nil {
		src = *o.source
	} else {
		s, err := SourceOf(f)
		if err != nil {
			return fmt.Errorf("fn: register %q: %w", name, err)
		}
		src = s
	}
	if err := src.Validate(name); err != nil {
		return fmt.Errorf("fn: register %q: %w", name, err)
	}

	r.mu.Lock()
	if r.fns == nil {
		r.fns = map[string]*Function{}
	}
	r.fns[name] = &Function{Name: name, Fn: f, Source: src, explicit: o.source != nil}
	r.mu.Unlock()
	return nil
}

// Refresh re-reads the source of every function whose source came from its
// Go file, so edits made since registration reach the next generation pass.
// A function whose new source cannot be read or validated keeps its previous
// source; those failures are returned together.
func (r *Registry) Refresh() error {
	var errs error
	for _, name := range r.Names() {
		f, ok := r.Lookup(name)
		if !ok || f.explicit {
			continue
		}
		src, err := SourceOf(f.Fn)
		if err == nil {
			err = src.Validate(name)
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fn: refresh %q: %w", name, err))
			continue
		}
		next := *f
		next.Source = src
		r.mu.Lock()
		r.fns[name] = &next
		r.mu.Unlock()
	}
	return errs
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(name string, f Func, opts ...RegisterOption) {
	if err := r.Register(name, f, opts...); err != nil {
		panic(err)
	}
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (*Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fns[name]
	return f, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.fns))
	for n := range r.fns {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fns)
}
