package wallet

// Resolver picks the request handle for a capability probe or sponsored call:
// the bound connector's provider first, then the injected one.
// It is consulted fresh for every operation and never caches.
type Resolver struct {
	Connector Connector
	Injected  Provider
}

func (r Resolver) Resolve() (Provider, error) {
	if r.Connector != nil {
		if p := r.Connector.Provider(); p != nil {
			return p, nil
		}
	}
	if r.Injected != nil {
		return r.Injected, nil
	}
	return nil, ErrNoProvider
}
