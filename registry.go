package iconvfile

import (
	"fmt"
	"slices"
	"sync"
)

// BackendFactory creates a Backend from configuration.
// The config map contains backend-specific configuration keys.
type BackendFactory func(config map[string]string) (Backend, error)

type registry struct {
	mu        sync.RWMutex
	factories map[string]BackendFactory
}

var backends = &registry{factories: make(map[string]BackendFactory)}

// Register registers a backend factory under the given name.
// It is typically called from init() in backend packages:
//
//	func init() {
//	    iconvfile.Register("file", NewFromConfig)
//	}
//
// Register panics if factory is nil or the name is already taken.
func Register(name string, factory BackendFactory) {
	if factory == nil {
		panic("iconvfile: Register factory is nil")
	}

	backends.mu.Lock()
	defer backends.mu.Unlock()

	if _, dup := backends.factories[name]; dup {
		panic("iconvfile: Register called twice for backend " + name)
	}
	backends.factories[name] = factory
}

// Open opens a backend by name with the given configuration.
// It returns ErrUnknownBackend if no backend with that name is registered.
//
//	backend, err := iconvfile.Open("sftp", map[string]string{
//	    "host": "logs.example.com",
//	    "user": "collector",
//	})
func Open(name string, config map[string]string) (Backend, error) {
	backends.mu.RLock()
	factory, ok := backends.factories[name]
	backends.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return factory(config)
}

// Backends returns a sorted list of registered backend names.
func Backends() []string {
	backends.mu.RLock()
	defer backends.mu.RUnlock()

	names := make([]string, 0, len(backends.factories))
	for name := range backends.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered returns true if a backend with the given name is registered.
func IsRegistered(name string) bool {
	backends.mu.RLock()
	defer backends.mu.RUnlock()
	_, ok := backends.factories[name]
	return ok
}

// Unregister removes a registered backend. It is mainly useful in tests.
// Returns true if the backend was registered.
func Unregister(name string) bool {
	backends.mu.Lock()
	defer backends.mu.Unlock()

	_, ok := backends.factories[name]
	delete(backends.factories, name)
	return ok
}
