package di

import (
	"fmt"
	"sync"
)

// Token is a typed service key. Modules declare tokens for the services
// they register so consumers resolve them without string literals or
// unchecked assertions.
type Token[T any] struct {
	key string
}

// NewToken creates a token under a unique key.
func NewToken[T any](key string) Token[T] {
	return Token[T]{key: key}
}

// Key returns the token's registry key.
func (t Token[T]) Key() string { return t.key }

// provider wraps a factory resolved at most once.
type provider[T any] struct {
	once    sync.Once
	factory func(ServiceRegistry) T
	value   T
}

// RegisterToken registers a lazy singleton factory under the token. The
// factory runs on first resolution.
func RegisterToken[T any](c Container, t Token[T], factory func(ServiceRegistry) T) {
	c.Register(t.key, &provider[T]{factory: factory})
}

// GetToken resolves a token, running its factory on first use. Panics on a
// missing or mistyped registration; wiring bugs should fail at startup.
func GetToken[T any](c ServiceRegistry, t Token[T]) T {
	svc := c.Get(t.key)
	if svc == nil {
		panic(fmt.Sprintf("di: token %q not registered", t.key))
	}
	if p, ok := svc.(*provider[T]); ok {
		p.once.Do(func() { p.value = p.factory(c) })
		return p.value
	}
	v, ok := svc.(T)
	if !ok {
		panic(fmt.Sprintf("di: token %q holds %T", t.key, svc))
	}
	return v
}
