package xhttp

import (
	"github.com/fasthttp/router"
)

type Router = router.Router

// Routes is satisfied by both *Router and *router.Group, so handlers can be
// mounted at the root or under a base path.
type Routes interface {
	GET(path string, handler RequestHandler)
	POST(path string, handler RequestHandler)
	PUT(path string, handler RequestHandler)
	DELETE(path string, handler RequestHandler)
}

// NewRouter returns a new Router
func NewRouter() *Router {
	return router.New()
}

// CreateDefaultRouter returns a router answering unknown routes and
// methods with a JSON error body.
func CreateDefaultRouter() *Router {
	r := NewRouter()
	r.RedirectTrailingSlash = true
	r.SaveMatchedRoutePath = true
	r.NotFound = NotFoundHandler
	r.MethodNotAllowed = MethodNotAllowedHandler
	r.HandleOPTIONS = false
	r.HandleMethodNotAllowed = true
	return r
}

// Mount returns the group for base, or the router itself when base is empty.
func Mount(r *Router, base string) Routes {
	if base == "" || base == "/" {
		return r
	}
	return r.Group(base)
}

func NotFoundHandler(ctx *RequestCtx) {
	errorJSON(ctx, StatusNotFound)
}

func MethodNotAllowedHandler(ctx *RequestCtx) {
	errorJSON(ctx, StatusMethodNotAllowed)
}

func errorJSON(ctx *RequestCtx, code int) {
	ctx.Response.Header.SetContentType("application/json; charset=utf-8")
	ctx.SetStatusCode(code)
	ctx.SetBodyString(`{"error":"` + StatusText(code) + `"}`)
}
