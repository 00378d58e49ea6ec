package http

import "sync"

// Router is an insertion-ordered route table. The first route added for a
// path/method pair wins; later duplicates are kept but never matched.
type Router struct {
	mu     sync.RWMutex
	routes []Route
}

func NewRouter(routes ...Route) *Router {
	router := &Router{
		routes: make([]Route, 0, len(routes)),
	}
	router.routes = append(router.routes, routes...)
	return router
}

func (router *Router) Add(route Route) {
	router.mu.Lock()
	defer router.mu.Unlock()

	router.routes = append(router.routes, route)
}

func (router *Router) AddMany(routes []Route) {
	router.mu.Lock()
	defer router.mu.Unlock()

	router.routes = append(router.routes, routes...)
}

func (router *Router) GET(path string, handler HandlerFunc) {
	router.Add(Route{Path: path, Method: MethodGet, Handler: handler})
}

func (router *Router) HEAD(path string, handler HandlerFunc) {
	router.Add(Route{Path: path, Method: MethodHead, Handler: handler})
}

func (router *Router) POST(path string, handler HandlerFunc) {
	router.Add(Route{Path: path, Method: MethodPost, Handler: handler})
}

func (router *Router) PUT(path string, handler HandlerFunc) {
	router.Add(Route{Path: path, Method: MethodPut, Handler: handler})
}

func (router *Router) PATCH(path string, handler HandlerFunc) {
	router.Add(Route{Path: path, Method: MethodPatch, Handler: handler})
}

func (router *Router) DELETE(path string, handler HandlerFunc) {
	router.Add(Route{Path: path, Method: MethodDelete, Handler: handler})
}

func (router *Router) OPTIONS(path string, handler HandlerFunc) {
	router.Add(Route{Path: path, Method: MethodOptions, Handler: handler})
}

// FindRequestedRoute returns a copy of the first route whose path and method
// equal the arguments exactly.
func (router *Router) FindRequestedRoute(path, method string) (Route, bool) {
	router.mu.RLock()
	defer router.mu.RUnlock()

	for _, route := range router.routes {
		if route.Path == path && route.Method == method {
			return route, true
		}
	}

	return Route{}, false
}

// Routes returns a copy of the route table in insertion order.
func (router *Router) Routes() []Route {
	router.mu.RLock()
	defer router.mu.RUnlock()

	return append([]Route(nil), router.routes...)
}

// Handler dispatches each request to its matching route, or NotFoundHandler.
func (router *Router) Handler() Handler {
	return HandlerFunc(func(req *Request, reply *Reply) {
		route, found := router.FindRequestedRoute(req.URL, req.Method)
		if !found || route.Handler == nil {
			NotFoundHandler.ServeHTTP(req, reply)
			return
		}

		route.Handler.ServeHTTP(req, reply)
	})
}
