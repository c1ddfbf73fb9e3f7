package serde

import (
	"fmt"
	"sync"
)

// The registry lets string-only configuration surfaces select delegates
// and fallbacks registered at start-up.
var registry = struct {
	mu            sync.RWMutex
	deserialisers map[string]any
	fallbacks     map[string]any
}{
	deserialisers: make(map[string]any),
	fallbacks:     make(map[string]any),
}

func RegisterDeserialiser[T any](name string, d Deserialiser[T]) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.deserialisers[name] = d
}

func RegisterFallback[T any](name string, fn func(Failure) (T, error)) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.fallbacks[name] = fn
}

func lookupDeserialiser[T any](name string) (Deserialiser[T], error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	raw, ok := registry.deserialisers[name]
	if !ok {
		return nil, fmt.Errorf("serde: no deserialiser registered as %q", name)
	}
	d, ok := raw.(Deserialiser[T])
	if !ok {
		return nil, fmt.Errorf("serde: deserialiser %q does not produce %T", name, *new(T))
	}
	return d, nil
}

func lookupFallback[T any](name string) (func(Failure) (T, error), error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	raw, ok := registry.fallbacks[name]
	if !ok {
		return nil, fmt.Errorf("serde: no fallback registered as %q", name)
	}
	fn, ok := raw.(func(Failure) (T, error))
	if !ok {
		return nil, fmt.Errorf("serde: fallback %q does not produce %T", name, *new(T))
	}
	return fn, nil
}
