// Package registry lets storage backends register themselves so daemons can
// select one by name.
//
// In Go, "plugins" are linked at build time: a backend registers itself via
// init(), and is enabled in a binary by importing the backend package (often as
// a blank import).
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/pflag"

	"weavemint.dev/weavemint/storage"
)

// Backend opens a storage.CAS implementation.
type Backend struct {
	Name        string
	Description string

	// RegisterFlags adds backend-specific flags to fs.
	// It may run more than once; each call rebinds the same variables and
	// resets them to their defaults.
	RegisterFlags func(fs *pflag.FlagSet)

	// Open constructs the CAS using values parsed into flags registered by
	// RegisterFlags. It returns an optional close function.
	Open func() (storage.CAS, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register registers a backend.
func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("registry: backend name is required")
	}
	if b.Open == nil {
		return fmt.Errorf("registry: backend %q missing Open", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("registry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns all backends sorted by name.
func List() []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns backend names, sorted.
func Names() []string {
	bs := List()
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// RegisterFlags registers flags for every backend so one parse pass accepts
// any backend's options.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, b := range List() {
		if b.RegisterFlags != nil {
			b.RegisterFlags(fs)
		}
	}
}

// Open opens the named backend.
func Open(name string) (storage.CAS, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown backend %q", name)
	}
	return b.Open()
}

// OpenWithConfig opens the named backend after applying values as if they
// had been passed as its flags. Keys are flag names without dashes.
func OpenWithConfig(name string, values map[string]string) (storage.CAS, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown backend %q", name)
	}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if b.RegisterFlags != nil {
		b.RegisterFlags(fs)
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if fs.Lookup(k) == nil {
			return nil, nil, fmt.Errorf("backend %q has no option %q", name, k)
		}
		if err := fs.Set(k, values[k]); err != nil {
			return nil, nil, fmt.Errorf("backend %q option %q: %w", name, k, err)
		}
	}
	return b.Open()
}

func init() {
	MustRegister(Backend{
		Name:        "memory",
		Description: "In-process CAS; contents are lost on exit",
		Open: func() (storage.CAS, func() error, error) {
			return storage.NewMemory(), nil, nil
		},
	})
}
