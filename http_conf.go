package guard

import (
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"

	EnvProfilesActive   = "ADMIN_PROFILES_ACTIVE"
	EnvServerPort       = "ADMIN_SERVER_PORT"
	EnvContextPath      = "ADMIN_CONTEXT_PATH"
	EnvSessionRedisUrl  = "ADMIN_SESSION_REDIS_URL"
	defaultServerPort   = 8080
	defaultShutdownWait = 10 * time.Second
)

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout"`
	SecureCookies   bool          `yaml:"secure-cookies"`
}

type SessionConfig struct {
	Store    string        `yaml:"store"`
	RedisUrl string        `yaml:"redis-url"`
	Timeout  time.Duration `yaml:"timeout"`
}

type UserConfig struct {
	Name     string   `yaml:"name"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

type Config struct {
	Profiles []string              `yaml:"profiles"`
	Server   ServerConfig          `yaml:"server"`
	Admin    AdminServerProperties `yaml:"admin"`
	Session  SessionConfig         `yaml:"session"`
	Users    []UserConfig          `yaml:"users"`
	Logging  LoggingConfig         `yaml:"logging"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            defaultServerPort,
			ShutdownTimeout: defaultShutdownWait,
		},
		Session: SessionConfig{
			Store:   SessionStoreMemory,
			Timeout: DefaultSessionTimeout,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig reads path (optional) over the defaults and then applies environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvProfilesActive); ok {
		c.Profiles = splitList(v)
	}
	if v, ok := lookup(EnvServerPort); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "%s", EnvServerPort)
		}
		c.Server.Port = port
	}
	if v, ok := lookup(EnvContextPath); ok {
		c.Admin.ContextPath = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvSessionRedisUrl); ok && v != "" {
		c.Session.Store = SessionStoreRedis
		c.Session.RedisUrl = strings.TrimSpace(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Admin),
		validation.Field(&c.Session),
		validation.Field(&c.Users),
	)
}

func (c ServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ShutdownTimeout, validation.Min(time.Duration(0))),
	)
}

func (p AdminServerProperties) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ContextPath, validation.By(func(value interface{}) error {
			s, _ := value.(string)
			if s != "" && !strings.HasPrefix(s, "/") {
				return errors.New("must start with /")
			}
			if strings.ContainsAny(s, "*{}") {
				return errors.New("must not contain pattern characters")
			}
			return nil
		})),
	)
}

func (c SessionConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Store, validation.In(SessionStoreMemory, SessionStoreRedis)),
		validation.Field(&c.RedisUrl, validation.When(c.Store == SessionStoreRedis, validation.Required)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

func (u UserConfig) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Name, validation.Required),
		validation.Field(&u.Password, validation.Required),
	)
}
