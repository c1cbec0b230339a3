package provider

import (
	"fmt"

	"github.com/artemis-health/artemis/internal/wearable"
)

// Registry holds the configured vendor clients. It is built once at start-up
// and is read-only afterwards.
type Registry struct {
	clients map[wearable.Provider]Client
	order   []wearable.Provider
}

func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[wearable.Provider]Client, len(clients))}
	for _, c := range clients {
		if c == nil {
			continue
		}
		p := c.Provider()
		if _, dup := r.clients[p]; !dup {
			r.order = append(r.order, p)
		}
		r.clients[p] = c
	}
	return r
}

// Get returns wearable.ErrProviderDisabled when p has no configured client.
func (r *Registry) Get(p wearable.Provider) (Client, error) {
	c, ok := r.clients[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", wearable.ErrProviderDisabled, p)
	}
	return c, nil
}

func (r *Registry) Providers() []wearable.Provider {
	out := make([]wearable.Provider, len(r.order))
	copy(out, r.order)
	return out
}
