package providers

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownProvider is returned when a provider name is not registered.
var ErrUnknownProvider = errors.New("unknown provider")

// DefaultProvider is used when neither a model nor a configured default
// selects one.
const DefaultProvider = "openai"

// Registration describes one adapter.
type Registration struct {
	Name string

	// Models lists known model names; the first is the default model.
	Models []string

	// Prefixes are lowercase model-name prefixes that select this provider.
	Prefixes []string

	Factory Factory
}

var (
	registryMu    sync.RWMutex
	registrations = make(map[string]Registration)
)

// Register adds an adapter registration. It is typically called from an
// adapter package's init function. A later registration with the same name
// replaces the earlier one.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registrations[reg.Name] = reg
}

// List returns the names of all registered adapters in sorted order.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return sortedNames(registrations)
}

func sortedNames(regs map[string]Registration) []string {
	names := make([]string, 0, len(regs))
	for name := range regs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry resolves provider and model names to adapters.
type Registry struct {
	regs            map[string]Registration
	defaultProvider string
	lookup          ConfigLookup
}

// NewRegistry snapshots the registered adapters. defaultProvider is used
// for model names no adapter claims; empty means DefaultProvider. lookup
// may be nil, in which case adapters are built with a zero Config.
func NewRegistry(defaultProvider string, lookup ConfigLookup) *Registry {
	registryMu.RLock()
	regs := make(map[string]Registration, len(registrations))
	for name, reg := range registrations {
		regs[name] = reg
	}
	registryMu.RUnlock()

	return newRegistry(regs, defaultProvider, lookup)
}

// NewRegistryFrom builds a registry over regs instead of the global
// registrations. A later entry with the same name replaces an earlier one.
func NewRegistryFrom(regs []Registration, defaultProvider string, lookup ConfigLookup) *Registry {
	m := make(map[string]Registration, len(regs))
	for _, reg := range regs {
		m[reg.Name] = reg
	}
	return newRegistry(m, defaultProvider, lookup)
}

func newRegistry(regs map[string]Registration, defaultProvider string, lookup ConfigLookup) *Registry {
	if defaultProvider == "" {
		defaultProvider = DefaultProvider
	}
	if lookup == nil {
		lookup = func(string) (Config, error) { return Config{}, nil }
	}
	return &Registry{regs: regs, defaultProvider: defaultProvider, lookup: lookup}
}

// DefaultProviderName returns the provider used for unclaimed model names.
func (r *Registry) DefaultProviderName() string {
	return r.defaultProvider
}

// Resolve builds the adapter registered under name.
func (r *Registry) Resolve(name string) (ImageProvider, error) {
	reg, ok := r.regs[name]
	if !ok || reg.Factory == nil {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownProvider, name, strings.Join(r.Names(), ", "))
	}
	cfg, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return reg.Factory(cfg)
}

// InferProvider returns the provider whose model prefixes match model.
// Unmatched names fall back to the default provider rather than failing.
func (r *Registry) InferProvider(model string) string {
	m := strings.ToLower(model)
	for _, name := range r.Names() {
		for _, prefix := range r.regs[name].Prefixes {
			if strings.HasPrefix(m, prefix) {
				return name
			}
		}
	}
	return r.defaultProvider
}

// DefaultModel returns the canonical model for a provider.
func (r *Registry) DefaultModel(name string) (string, error) {
	reg, ok := r.regs[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	if len(reg.Models) == 0 {
		return "", fmt.Errorf("provider %s has no models", name)
	}
	return reg.Models[0], nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	return sortedNames(r.regs)
}

// Models returns the known models of every provider.
func (r *Registry) Models() map[string][]string {
	out := make(map[string][]string, len(r.regs))
	for name, reg := range r.regs {
		out[name] = append([]string(nil), reg.Models...)
	}
	return out
}

// ModelsFor returns the known models of one provider, or nil for an
// unknown provider.
func (r *Registry) ModelsFor(name string) []string {
	reg, ok := r.regs[name]
	if !ok {
		return nil
	}
	return append([]string(nil), reg.Models...)
}
