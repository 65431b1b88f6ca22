package forecast

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry holds the models available to the forecast service. It is
// created by the caller and passed in explicitly; there is no package-level
// registry.
type Registry struct {
	mu       sync.RWMutex
	models   map[string]Model
	loadedAt map[string]time.Time
	now      func() time.Time
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		models:   make(map[string]Model),
		loadedAt: make(map[string]time.Time),
		now:      time.Now,
	}
}

// NewDefaultRegistry creates a registry with the trend and pattern models loaded
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Load(NewTrendModel(), NewPatternModel())
	return r
}

// Load registers models by name, replacing any model already loaded under
// the same name.
func (r *Registry) Load(models ...Model) error {
	for _, m := range models {
		if m == nil {
			return fmt.Errorf("cannot load nil model")
		}
		if m.Name() == "" {
			return fmt.Errorf("cannot load model with empty name")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range models {
		r.models[m.Name()] = m
		r.loadedAt[m.Name()] = r.now()
	}
	return nil
}

// Unload removes a model and reports whether it was loaded
func (r *Registry) Unload(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[name]; !ok {
		return false
	}
	delete(r.models, name)
	delete(r.loadedAt, name)
	return true
}

// UnloadAll removes every model
func (r *Registry) UnloadAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.models = make(map[string]Model)
	r.loadedAt = make(map[string]time.Time)
}

// Get returns the model loaded under name
func (r *Registry) Get(name string) (Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[name]
	return m, ok
}

// LoadedAt returns when name was loaded
func (r *Registry) LoadedAt(name string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.loadedAt[name]
	return t, ok
}

// Loaded reports whether both ensemble members are available
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, trend := r.models[TrendModelName]
	_, pattern := r.models[PatternModelName]
	return trend && pattern
}

// Names returns the loaded model names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
