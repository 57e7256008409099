package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/IshaanNene/eventscope/internal/config"
)

// Registry maps platform names to adapters. Lookup is exact: callers
// lower-case names before asking.
type Registry struct {
	adapters map[string]Adapter
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewRegistry creates an empty adapter registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		logger:   logger.With("component", "adapter_registry"),
	}
}

// Register adds an adapter under its Name.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter %q already registered", name)
	}
	r.adapters[name] = a

	caps := CapabilitiesOf(a)
	r.logger.Debug("adapter registered",
		"name", name,
		"search", caps.Search,
		"profile", caps.Profile,
		"single", caps.Single,
	)
	return nil
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns the registered platform names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info holds summary information about an adapter.
type Info struct {
	Name string `json:"name"`
	Capabilities
}

// List returns every adapter with its capabilities, sorted by name.
func (r *Registry) List() []Info {
	names := r.Names()
	infos := make([]Info, 0, len(names))
	for _, name := range names {
		a, _ := r.Get(name)
		infos = append(infos, Info{Name: name, Capabilities: CapabilitiesOf(a)})
	}
	return infos
}

// NewDefaultRegistry registers the built-in adapters for every enabled
// platform in cfg.
func NewDefaultRegistry(cfg *config.Config, deps Deps) (*Registry, error) {
	reg := NewRegistry(deps.logger())

	constructors := map[string]func(config.PlatformConfig, Deps) Adapter{
		"reddit":    func(pc config.PlatformConfig, d Deps) Adapter { return NewReddit(pc, d) },
		"twitter":   func(pc config.PlatformConfig, d Deps) Adapter { return NewTwitter(pc, d) },
		"news":      func(pc config.PlatformConfig, d Deps) Adapter { return NewNews(pc, d) },
		"blogs":     func(pc config.PlatformConfig, d Deps) Adapter { return NewBlogs(pc, d) },
		"instagram": func(pc config.PlatformConfig, d Deps) Adapter { return NewInstagram(pc, d) },
		"linkedin":  func(pc config.PlatformConfig, d Deps) Adapter { return NewLinkedIn(pc, d) },
		"generic":   func(pc config.PlatformConfig, d Deps) Adapter { return NewGeneric(pc, d) },
	}

	for name, pc := range cfg.Platforms {
		if !pc.Enabled {
			continue
		}
		build, ok := constructors[name]
		if !ok {
			return nil, fmt.Errorf("platforms.%s: no built-in adapter", name)
		}
		if err := reg.Register(build(pc, deps)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
