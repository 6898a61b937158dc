package opend

import (
	"fmt"
	"sync"
)

// Factory constructs a transport session for an endpoint.
type Factory func(host string, port int) Client

// Registry hands out one shared Client per (host, port) endpoint so the
// data and execution consumers reuse a single gateway session instead of
// opening redundant connections. Entries live for the process lifetime.
type Registry struct {
	mu      sync.Mutex
	factory Factory
	clients map[string]Client
}

// NewRegistry creates a registry backed by the supplied factory.
func NewRegistry(factory Factory) *Registry {
	r := new(Registry)
	r.factory = factory
	r.clients = make(map[string]Client)
	return r
}

// Acquire returns the shared client for the endpoint, constructing it on
// first use. Identical (host, port) pairs always resolve to the same client.
func (r *Registry) Acquire(host string, port int) Client {
	key := endpointKey(host, port)
	r.mu.Lock()
	defer r.mu.Unlock()
	if client, ok := r.clients[key]; ok {
		return client
	}
	client := r.factory(host, port)
	r.clients[key] = client
	return client
}

// Clear drops all cached clients. Test-only.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.clients = make(map[string]Client)
	r.mu.Unlock()
}

func endpointKey(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
