package guard

import (
	"context"
	"fmt"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	logger "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const (
	GET     = "GET"
	HEAD    = "HEAD"
	POST    = "POST"
	PUT     = "PUT"
	PATCH   = "PATCH"
	DELETE  = "DELETE"
	OPTIONS = "OPTIONS"
	TRACE   = "TRACE"
)

type Handler func(Request) Response

type Middleware func(req Request, next Handler) Response

type Request struct {
	*nethttp.Request
	Route  Route
	Params httprouter.Params
}

// WithValue returns a copy of the request carrying key/val in its context.
func (r Request) WithValue(key, val interface{}) Request {
	r.Request = r.Request.WithContext(context.WithValue(r.Request.Context(), key, val))
	return r
}

func (r Request) Get(key string, def string) string {
	if val := r.URL.Query().Get(key); val != "" {
		return val
	}
	return def
}

type Response interface {
	GetBytes() ([]byte, error)
	GetError() error
	GetCode() int
	GetHeaders() Headers
}

type Header struct {
	Name  string
	Value string
}

type Headers []Header

type RouteList []Route

type Route struct {
	Name    string
	Path    string
	Method  string
	Handler Handler
	Inner   RouteList
}

type Server interface {
	Serve(ctx context.Context) error
}

type server struct {
	router          Router
	serverPort      int
	shutdownTimeout time.Duration
	closers         []func() error
}

func NewHttpServer(router Router, serverPort int, shutdownTimeout time.Duration, closers ...func() error) Server {
	return &server{
		router:          router,
		serverPort:      serverPort,
		shutdownTimeout: shutdownTimeout,
		closers:         closers,
	}
}

// Serve blocks until ctx is done or an interrupt arrives. A listener failure is returned.
func (s *server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.serverPort))
	if err != nil {
		return Wrap(err)
	}
	logger.Infof("Http server listening port :%d", s.serverPort)
	server := &nethttp.Server{Handler: s.router.GetMux(), ReadHeaderTimeout: 10 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && err != nethttp.ErrServerClosed {
			serveErr <- err
			return
		}
		close(serveErr)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	select {
	case err := <-serveErr:
		return multierr.Append(Wrap(err), s.close())
	case <-interrupt:
		logger.Info("Sig interrupt received, graceful shutdown")
	case <-ctx.Done():
		logger.Info("Context done, graceful shutdown")
	}
	return s.shutdown(server)
}

func (s *server) shutdown(server *nethttp.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	err := server.Shutdown(ctx)
	if err != nil {
		logger.Error("HttpServer shutdown err ", err)
	} else {
		logger.Info("Http server closed ☾")
	}
	return multierr.Append(err, s.close())
}

func (s *server) close() error {
	var err error
	for _, c := range s.closers {
		err = multierr.Append(err, c())
	}
	return err
}
