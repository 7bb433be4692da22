package keyseq

import (
	"github.com/cespare/xxhash/v2"

	"github.com/fluxorio/keyseq/pkg/core/failfast"
)

// Router maps a key to a worker index in [0, workers).
// Implementations must be deterministic for the lifetime of an executor.
type Router interface {
	Route(key string, workers int) int
}

// RouterFunc adapts a function to Router.
type RouterFunc func(key string, workers int) int

// Route implements Router.
func (f RouterFunc) Route(key string, workers int) int {
	return f(key, workers)
}

// HashRouter is the default Router. See Route.
type HashRouter struct{}

// Route implements Router.
func (HashRouter) Route(key string, workers int) int {
	return Route(key, workers)
}

// Route hashes key with xxHash64 and reduces it modulo workers.
// It is a load-spreading hash, not a cryptographic one.
func Route(key string, workers int) int {
	failfast.If(workers > 0, "route over %d workers", workers)
	return int(xxhash.Sum64String(key) % uint64(workers))
}
