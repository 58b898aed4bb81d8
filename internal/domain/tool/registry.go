package tool

import (
	"fmt"
	"sync"
)

// Registry maps tool names to their records. Registration is the only
// mutation path; Seal freezes the registry before traffic is served, after
// which Lookup and ListMetadata are safe for unsynchronized concurrent use.
type Registry struct {
	mu     sync.Mutex
	sealed bool
	tools  map[string]*Tool
	order  []string
	meta   []Metadata
}

// NewRegistry returns an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. It fails with ErrDuplicateName if the name is
// taken and ErrRegistrySealed after Seal. The public Metadata projection
// is derived here, once, and never changes afterwards.
func (r *Registry) Register(def Definition) error {
	t, err := newTool(def)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, t.name)
	}
	if _, exists := r.tools[t.name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, t.name)
	}

	r.tools[t.name] = t
	r.order = append(r.order, t.name)
	r.meta = append(r.meta, Metadata{
		Name:                t.name,
		Description:         t.description,
		InputSchema:         t.inputSchema.JSON(),
		OutputSchema:        t.outputSchema.JSON(),
		TimeoutMs:           t.timeout.Milliseconds(),
		Idempotent:          t.idempotent,
		RequiredPermissions: t.RequiredPermissions(),
	})
	return nil
}

// Seal freezes registration. Idempotent.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether the registry has been sealed.
func (r *Registry) Sealed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sealed
}

// Lookup resolves a tool by name. Callers must Seal before serving
// traffic; the serving goroutines are started after Seal, so the read here
// needs no lock.
func (r *Registry) Lookup(name string) (*Tool, error) {
	if !r.sealed {
		return nil, ErrRegistryUnsealed
	}
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return t, nil
}

// ListMetadata returns the public projections in registration order.
func (r *Registry) ListMetadata() []Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Metadata, len(r.meta))
	copy(out, r.meta)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
