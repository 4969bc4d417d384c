package guard

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	logger "github.com/sirupsen/logrus"
)

type LoggingConfig struct {
	Level string `yaml:"level"`
	Color bool   `yaml:"color"`
	Json  bool   `yaml:"json"`
}

// SetupLogger configures the global logrus logger.
func SetupLogger(cfg LoggingConfig) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		level = logger.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Json {
		logger.SetFormatter(&logger.JSONFormatter{})
		return
	}
	logger.SetFormatter(&logger.TextFormatter{FullTimestamp: true, ForceColors: cfg.Color, DisableColors: !cfg.Color})
}

func logSessionError(err error) {
	logger.Errorf("session store: %v", err)
}

const accessEntryKey contextKey = "access-entry"

// accessEntry is filled in by later middlewares while the request travels down the chain.
type accessEntry struct {
	principal string
}

func (e *accessEntry) SetSecurityContext(sc SecurityContext) {
	if sc.Token != nil && sc.Token.User() != nil {
		e.principal = sc.Token.User().GetUsername()
	}
}

type colors struct {
	red   func(a ...interface{}) string
	yell  func(a ...interface{}) string
	cyan  func(a ...interface{}) string
	green func(a ...interface{}) string
}

type accessLog struct {
	enabled bool
	metrics *Metrics
	colors  colors
	now     func() time.Time
}

// NewAccessLogMiddleware logs every request once the response is known and counts it in metrics.
func NewAccessLogMiddleware(colorize bool, metrics *Metrics) Middleware {
	m := &accessLog{
		enabled: logger.IsLevelEnabled(logger.InfoLevel),
		metrics: metrics,
		now:     time.Now,
		colors: colors{
			red:   color.New(color.FgRed).SprintFunc(),
			yell:  color.New(color.FgYellow).SprintFunc(),
			cyan:  color.New(color.FgCyan).SprintFunc(),
			green: color.New(color.FgHiGreen).SprintFunc(),
		},
	}
	if !colorize {
		plain := func(a ...interface{}) string { return fmt.Sprint(a...) }
		m.colors = colors{red: plain, yell: plain, cyan: plain, green: plain}
	}
	return m.Handle
}

func (m *accessLog) Handle(req Request, next Handler) Response {
	start := m.now()
	entry := &accessEntry{}
	resp := next(req.WithValue(accessEntryKey, entry))
	code := resp.GetCode()
	if m.metrics != nil {
		m.metrics.ObserveResponse(req.Method, code)
	}
	if !m.enabled {
		return resp
	}
	fields := logger.Fields{
		"method": req.Method,
		"code":   m.colorCode(code),
		"uri":    req.URL.RequestURI(),
		"ip":     req.RemoteAddr,
		"dur":    fmt.Sprintf("%.4f.s", m.now().Sub(start).Seconds()),
	}
	if entry.principal != "" {
		fields["user"] = entry.principal
	}
	if req.Route.Name != "" {
		fields["route"] = req.Route.Name
	}
	if err := resp.GetError(); err != nil {
		fields["err"] = err.Error()
	}
	logger.WithFields(fields).Info("request")
	return resp
}

func (m *accessLog) colorCode(code int) string {
	switch {
	case code >= 500:
		return m.colors.red(code)
	case code >= 400:
		return m.colors.yell(code)
	case code >= 300:
		return m.colors.cyan(code)
	default:
		return m.colors.green(code)
	}
}
