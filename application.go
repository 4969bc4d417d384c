package guard

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
)

const generatedUsername = "user"

// Application is the admin console process: one policy, one filter chain, one listener.
type Application struct {
	config   Config
	security ModuleSecurity
	router   Router
	server   Server
	store    SessionStore
	metrics  *Metrics
}

// NewApplication wires everything from cfg. Any error here is fatal for the process.
func NewApplication(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	policy, err := SelectPolicy(cfg.Profiles, cfg.Admin)
	if err != nil {
		return nil, err
	}
	encoder := NewPasswordEncoder()
	users, err := buildUsers(cfg.Users, encoder, policy.RequiresAuthentication())
	if err != nil {
		return nil, err
	}
	store, err := NewSessionStore(cfg.Session)
	if err != nil {
		return nil, errors.Wrap(err, "session store")
	}

	metrics := NewMetrics()
	dispatcher := NewDispatcher()
	dispatcher.Configure(append(metrics.Subscribers(), AuditSubscribers()...))

	sessions := NewSessionManager(store, cfg.Session.Timeout, cfg.Server.SecureCookies)
	security := NewSecurityModule(policy, SecurityDeps{
		Users:        users,
		Encoder:      encoder,
		Sessions:     sessions,
		Dispatcher:   dispatcher,
		SecureCookie: cfg.Server.SecureCookies,
	})
	console, err := NewConsole(cfg.Admin, policy, NewInstanceRegistry(), metrics)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	middlewares := append([]Middleware{NewAccessLogMiddleware(cfg.Logging.Color, metrics)}, security.Middlewares()...)
	router := NewRouter(RouterConfig{
		Routing:     console.Routes(),
		Middlewares: middlewares,
	})
	logger.WithFields(logger.Fields{
		"policy":       policy.Name,
		"context_path": cfg.Admin.ContextPath,
		"session":      cfg.Session.Store,
	}).Info("security policy installed")

	return &Application{
		config:   cfg,
		security: security,
		router:   router,
		server:   NewHttpServer(router, cfg.Server.Port, cfg.Server.ShutdownTimeout, store.Close),
		store:    store,
		metrics:  metrics,
	}, nil
}

func (a *Application) Handler() http.Handler {
	return a.router.GetMux()
}

func (a *Application) Policy() SecurityConfig {
	return a.security.Policy()
}

// Run serves until ctx is cancelled or the process is interrupted.
func (a *Application) Run(ctx context.Context) error {
	return a.server.Serve(ctx)
}

// Close releases resources of an application that was never run.
func (a *Application) Close() error {
	return a.store.Close()
}

func buildUsers(configured []UserConfig, encoder PasswordEncoder, required bool) (UserProvider, error) {
	users := make([]User, 0, len(configured))
	for _, u := range configured {
		if !encoder.Supports(u.Password) {
			return nil, errors.Errorf("password of user %q must be {noop}<plain>, {bcrypt}<hash> or a bcrypt hash", u.Name)
		}
		users = append(users, NewUser(u.Name, u.Password, u.Roles...))
	}
	if len(users) == 0 && required {
		password := uuid.NewString()
		logger.Warnf("Using generated security password: %s", password)
		users = append(users, NewUser(generatedUsername, noopPrefix+password, "USER"))
	}
	return NewInMemoryUserProvider(users...), nil
}
