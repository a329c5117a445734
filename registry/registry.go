package registry

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/op-leafrunner/spec"
	"github.com/ethereum-optimism/op-leafrunner/specfile"
)

// Registry manages spec sources: fixture files loaded from disk and specs
// registered in code
type Registry struct {
	config Config
	loaded []spec.Factory
	extra  []spec.Factory
	mu     sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log       log.Logger
	SpecPaths []string // Files or directories of fixture specs
}

// NewRegistry creates a new registry instance
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config: cfg,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}

	cfg.Log.Debug("Registry loaded", "len(specs)", len(r.GetFactories()))

	return r, nil
}

// Reload reads the spec files again, so that a long running service picks
// up edits between runs. Specs registered in code are kept.
func (r *Registry) Reload() error {
	var loaded []spec.Factory
	if len(r.config.SpecPaths) > 0 {
		var err error
		loaded, err = specfile.LoadPaths(r.config.SpecPaths)
		if err != nil {
			return fmt.Errorf("failed to load specs: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := checkUnique(loaded, r.extra); err != nil {
		return err
	}
	r.loaded = loaded
	return nil
}

// Register adds a spec defined in code
func (r *Registry) Register(factories ...spec.Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	extra := append(append([]spec.Factory(nil), r.extra...), factories...)
	if err := checkUnique(r.loaded, extra); err != nil {
		return err
	}
	r.extra = extra
	return nil
}

// GetFactories returns all specs, file specs first
func (r *Registry) GetFactories() []spec.Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]spec.Factory, 0, len(r.loaded)+len(r.extra))
	all = append(all, r.loaded...)
	return append(all, r.extra...)
}

// GetFactory returns the spec with the given name
func (r *Registry) GetFactory(name string) (spec.Factory, bool) {
	for _, f := range r.GetFactories() {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}

func checkUnique(groups ...[]spec.Factory) error {
	seen := make(map[string]struct{})
	for _, group := range groups {
		for _, f := range group {
			if f == nil {
				return fmt.Errorf("spec factory is nil")
			}
			if _, dup := seen[f.Name()]; dup {
				return fmt.Errorf("spec %s is registered more than once", f.Name())
			}
			seen[f.Name()] = struct{}{}
		}
	}
	return nil
}
