package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry maps provider names to constructors. Registration happens
// single-threaded during process init; after Freeze the registry is
// read-only for the process lifetime.
type Registry[T Provider] struct {
	kind Kind
	log  zerolog.Logger

	mu     sync.Mutex
	frozen bool
	ctors  map[string]Constructor[T]
}

// NewRegistry creates an empty registry for the given provider kind.
func NewRegistry[T Provider](kind Kind, log zerolog.Logger) *Registry[T] {
	return &Registry[T]{
		kind:  kind,
		log:   log.With().Str("registry", string(kind)).Logger(),
		ctors: make(map[string]Constructor[T]),
	}
}

// Register adds a constructor under name. Registering a duplicate name
// overwrites the prior entry and logs a warning — silent shadowing of a
// provider is a configuration bug worth surfacing. Returns an error only
// when called after Freeze.
func (r *Registry[T]) Register(name string, ctor Constructor[T]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("registry for %s providers is frozen, cannot register %q", r.kind, name)
	}
	if _, exists := r.ctors[name]; exists {
		r.log.Warn().Str("provider", name).Msg("duplicate provider registration, overwriting prior entry")
	}
	r.ctors[name] = ctor
	r.log.Info().Str("provider", name).Msg("provider registered")
	return nil
}

// Freeze marks the end of the registration phase.
func (r *Registry[T]) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Snapshot returns a copy of the name → constructor table. Mutating the
// returned map does not affect the registry.
func (r *Registry[T]) Snapshot() map[string]Constructor[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Constructor[T], len(r.ctors))
	for name, ctor := range r.ctors {
		out[name] = ctor
	}
	return out
}

// Names returns the registered provider names, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry[T]) constructor(name string) (Constructor[T], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctor, ok := r.ctors[name]
	return ctor, ok
}
