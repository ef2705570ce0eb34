package adapters

import (
	"context"
	"net/http"
	"sort"
)

// Adapter is a per-site module: it declares the fields it needs from the
// user, validates them, and advances its own stage graph one request at a
// time. Implementations must be stateless — all state round-trips through
// Stage/Step.
type Adapter interface {
	// Namespace is the adapter's registry key, e.g. "scholar".
	Namespace() string

	// Fields describes the user-supplied inputs this adapter needs,
	// mapping field name to a human-readable description.
	Fields() map[string]string

	// ValidateField checks a single field value before it is persisted.
	ValidateField(key, value string) error

	// InitialStage is the zero-state every source of this kind starts (or
	// restarts) from.
	InitialStage() Stage

	// NewStage is the factory DecodeTaskState uses to recover a stage
	// variant by its discriminator after a restart.
	NewStage(index int) Stage

	// Step issues at most one outbound request and returns the resulting
	// Step. It must not mutate stage; Run (not Step) handles retries.
	Step(ctx context.Context, client *http.Client, values map[string]string, stage Stage) (*Step, error)
}

// Registry maps adapter namespace to implementation, the static-dispatch
// pattern the spec prescribes over any dynamic class lookup.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter, keyed by its own namespace.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Namespace()] = a
}

// Get looks up an adapter by namespace.
func (r *Registry) Get(namespace string) (Adapter, bool) {
	a, ok := r.adapters[namespace]
	return a, ok
}

// Namespaces returns every registered adapter's namespace, lexicographically
// sorted: the Merger relies on this order to satisfy the SourceA < SourceB
// invariant on Merge rows (spec.md §4.3/§8) without re-sorting itself.
func (r *Registry) Namespaces() []string {
	out := make([]string, 0, len(r.adapters))
	for ns := range r.adapters {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// NewDefaultRegistry registers the six reference adapters.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewScholarAdapter())
	r.Register(NewAcademicsAdapter())
	r.Register(NewAminerAdapter())
	r.Register(NewIEEEXploreAdapter())
	r.Register(NewResearchGateAdapter())
	r.Register(NewDimensionsAdapter())
	return r
}
