package llm

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownModel is returned by Resolve for names with no route.
var ErrUnknownModel = errors.New("model not registered")

// ModelRoute binds a logical model name (such as "agent") to a provider and
// the model identifier that provider understands.
type ModelRoute struct {
	Name        string
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
}

func (r ModelRoute) String() string {
	return fmt.Sprintf("%s -> %s/%s", r.Name, r.Provider, r.Model)
}

// Registry maps logical model names to chat providers. It is safe for
// concurrent use; the daemon shares one registry across workers.
type Registry struct {
	mu           sync.RWMutex
	providers    map[string]Provider
	routes       map[string]ModelRoute
	defaultRoute string
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		routes:    make(map[string]ModelRoute),
	}
}

// RegisterProvider adds or replaces a provider under name.
func (r *Registry) RegisterProvider(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// RegisterModel adds a route. The first route registered becomes the default
// unless a later one sets isDefault.
func (r *Registry) RegisterModel(name string, route ModelRoute, isDefault bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	route.Name = name
	r.routes[name] = route
	if isDefault || r.defaultRoute == "" {
		r.defaultRoute = name
	}
}

// Default returns the name of the default route, or "" when empty.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultRoute
}

// Models lists the registered routes sorted by name.
func (r *Registry) Models() []ModelRoute {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelRoute, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, route)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve returns the provider and route for name; "" selects the default.
func (r *Registry) Resolve(name string) (Provider, ModelRoute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defaultRoute
	}
	route, ok := r.routes[name]
	if !ok {
		return nil, ModelRoute{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	p, ok := r.providers[route.Provider]
	if !ok {
		return nil, ModelRoute{}, fmt.Errorf("provider %q not registered for model %q", route.Provider, name)
	}
	return p, route, nil
}
