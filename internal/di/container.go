// Package di provides a minimal string-keyed service registry.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry is the read side of the container.
type ServiceRegistry interface {
	// Get returns the service registered under key, or nil.
	Get(key string) any
}

// Container registers and resolves services by key.
type Container interface {
	ServiceRegistry

	// Register stores a service under key, replacing any previous value.
	Register(key string, service any)

	// MustGet returns the service under key or panics.
	MustGet(key string) any
}

type container struct {
	mu       sync.RWMutex
	services map[string]any
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{services: make(map[string]any)}
}

func (c *container) Register(key string, service any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[key] = service
}

func (c *container) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services[key]
}

func (c *container) MustGet(key string) any {
	if svc := c.Get(key); svc != nil {
		return svc
	}
	panic(fmt.Sprintf("di: service %q not registered", key))
}
