package web

import (
	"strings"
	"sync"

	"github.com/valyala/fasthttp"
)

// RequestHandler handles one admin request
type RequestHandler func(ctx *RequestContext) error

// Middleware wraps a RequestHandler
type Middleware func(handler RequestHandler) RequestHandler

// Router matches requests by method and path. Path segments starting
// with ':' capture parameters.
type Router struct {
	routes     []*route
	middleware []Middleware
	mu         sync.RWMutex
}

type route struct {
	method  string
	path    string
	handler RequestHandler
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{}
}

// Use appends middleware. Middleware wraps every route, including routes
// registered earlier; the first added runs outermost.
func (r *Router) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw...)
}

// GET registers a GET handler
func (r *Router) GET(path string, handler RequestHandler) {
	r.Handle(fasthttp.MethodGet, path, handler)
}

// Handle registers a handler for method and path
func (r *Router) Handle(method, path string, handler RequestHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, &route{
		method:  method,
		path:    path,
		handler: handler,
	})
}

// Serve dispatches ctx to the first matching route
func (r *Router) Serve(ctx *RequestContext) {
	r.mu.RLock()
	handler := r.match(ctx)
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}
	r.mu.RUnlock()

	if err := handler(ctx); err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
	}
}

func (r *Router) match(ctx *RequestContext) RequestHandler {
	method := string(ctx.Method())
	path := string(ctx.Path())

	for _, rt := range r.routes {
		if rt.method == method && matchPath(rt.path, path) {
			extractParams(rt.path, path, ctx.Params)
			return rt.handler
		}
	}
	return notFound
}

func notFound(ctx *RequestContext) error {
	ctx.Error("Not Found", fasthttp.StatusNotFound)
	return nil
}

func matchPath(pattern, path string) bool {
	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")

	if len(patternParts) != len(pathParts) {
		return false
	}
	for i, part := range patternParts {
		if strings.HasPrefix(part, ":") {
			continue
		}
		if part != pathParts[i] {
			return false
		}
	}
	return true
}

func extractParams(pattern, path string, params map[string]string) {
	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")

	for i, part := range patternParts {
		if strings.HasPrefix(part, ":") && i < len(pathParts) {
			params[strings.TrimPrefix(part, ":")] = pathParts[i]
		}
	}
}
