package tenancy

import (
	"fmt"
	"sync"

	"coursesync/internal/crm"
)

// ClientFactory строит клиента под конкретную локацию. В тестах подменяется.
type ClientFactory func(loc Location) (crm.API, error)

// CRMFactory — фабрика настоящих HTTP-клиентов.
func CRMFactory(opts crm.Options) ClientFactory {
	return func(loc Location) (crm.API, error) {
		return crm.New(opts, loc.Credential, loc.LocationID)
	}
}

// ClientRegistry — клиенты по id тенанта ("" — общая локация).
// Если у тенанта сменились локация или токен, клиент пересобирается.
type ClientRegistry struct {
	factory ClientFactory

	mu      sync.Mutex
	clients map[string]registryEntry
}

type registryEntry struct {
	loc Location
	api crm.API
}

func NewClientRegistry(factory ClientFactory) *ClientRegistry {
	return &ClientRegistry{factory: factory, clients: map[string]registryEntry{}}
}

func (r *ClientRegistry) Client(loc Location) (crm.API, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.clients[loc.TenantID]; ok && e.loc == loc {
		return e.api, nil
	}
	api, err := r.factory(loc)
	if err != nil {
		return nil, fmt.Errorf("%w: build crm client for location %q: %w", ErrConfiguration, loc.LocationID, err)
	}
	r.clients[loc.TenantID] = registryEntry{loc: loc, api: api}
	return api, nil
}

func (r *ClientRegistry) Invalidate(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, tenantID)
}

func (r *ClientRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
