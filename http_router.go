package guard

import (
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	logger "github.com/sirupsen/logrus"
)

type RouterConfig struct {
	Routing     Route
	NotFound    Handler
	Middlewares []Middleware
}

type Router interface {
	GetMux() nethttp.Handler
}

type router struct {
	mux        *httprouter.Router
	middleware Middleware
}

func (r *router) GetMux() nethttp.Handler {
	return r.mux
}

// NewRouter builds the mux. Unknown routes run through the same middleware chain as known ones,
// so the firewall sees every request.
func NewRouter(cfg RouterConfig) Router {
	mux := httprouter.New()
	mux.RedirectTrailingSlash = false
	mux.RedirectFixedPath = false
	mux.HandleMethodNotAllowed = false
	mux.HandleOPTIONS = false
	router := &router{mux: mux, middleware: chainMiddleware(cfg.Middlewares...)}

	notFound := cfg.NotFound
	if notFound == nil {
		notFound = func(req Request) Response {
			return NewErrorJSONResponse(ObjectNotFoundErr())
		}
	}
	notFoundHandle := router.createHandler(Route{Name: "not_found", Handler: notFound})
	mux.NotFound = nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		notFoundHandle(w, r, nil)
	})
	router.apply(cfg.Routing, "")
	return router
}

func chainMiddleware(middlewares ...Middleware) Middleware {
	n := len(middlewares)
	return func(req Request, next Handler) Response {
		chainer := func(m Middleware, n Handler) Handler {
			return func(request Request) Response {
				return m(request, n)
			}
		}
		chainedHandler := next
		for i := n - 1; i >= 0; i-- {
			chainedHandler = chainer(middlewares[i], chainedHandler)
		}
		return chainedHandler(req)
	}
}

func joinPath(ancestor, path string) string {
	joined := "/" + strings.Trim(strings.Trim(ancestor, "/ ")+"/"+strings.Trim(path, "/ "), "/")
	if strings.HasSuffix(path, "/") && joined != "/" {
		joined += "/"
	}
	return joined
}

func (r *router) apply(config Route, ancestorPattern string) {
	path := joinPath(ancestorPattern, config.Path)
	if len(config.Inner) > 0 {
		for _, nested := range config.Inner {
			r.apply(nested, path)
		}
		return
	}
	if config.Handler == nil {
		return
	}
	r.mux.Handle(config.Method, path, r.createHandler(config))
}

func (r *router) createHandler(route Route) httprouter.Handle {
	return func(writer nethttp.ResponseWriter, request *nethttp.Request, params httprouter.Params) {
		defer func() {
			rec := recover()
			if rec != nil {
				writer.WriteHeader(nethttp.StatusInternalServerError)
				err := Wrap(fmt.Errorf("%v", rec))
				logger.Errorf("handler recovered from: %v", err)
			}
		}()
		req := Request{Request: request, Params: params, Route: route}
		response := r.middleware(req, route.Handler)
		code := response.GetCode()
		if code == 0 {
			code = nethttp.StatusInternalServerError
		}
		bytes, err := response.GetBytes()
		if err != nil {
			logger.Errorf("response encoding failed: %v", err)
			code = nethttp.StatusInternalServerError
			bytes = nil
		}
		for _, h := range response.GetHeaders() {
			writer.Header().Add(h.Name, h.Value)
		}
		writer.WriteHeader(code)
		if len(bytes) == 0 {
			return
		}
		if _, err = writer.Write(bytes); err != nil {
			logger.Error(err)
		}
	}
}
