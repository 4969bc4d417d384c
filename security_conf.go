package guard

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	ProfileInsecure = "insecure"
	ProfileSecure   = "secure"

	DefaultTargetUrlParameter = "redirectTo"
	DefaultRealm              = "Realm"
)

// AdminServerProperties carries the admin console base path.
type AdminServerProperties struct {
	ContextPath string `yaml:"context-path"`
}

// Path prefixes p with the context path.
func (p AdminServerProperties) Path(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(p.ContextPath, "/") + path
}

type FirewallConfig []Area

// Area is one authorization rule; the first area whose matcher accepts the request decides.
type Area struct {
	Matcher RequestMatcher
	Secure  bool
}

type CsrfConfig struct {
	Enabled        bool
	CookieHttpOnly bool
	Ignoring       []RequestMatcher
}

type FormLoginConfig struct {
	LoginPage          string
	TargetUrlParameter string
	DefaultTargetUrl   string
}

type LogoutConfig struct {
	LogoutUrl  string
	SuccessUrl string
}

type HttpBasicConfig struct {
	Realm string
}

// SecurityConfig is the policy installed in front of the request pipeline. It is built once at
// startup and only read afterwards.
type SecurityConfig struct {
	Name      string
	Firewall  FirewallConfig
	Csrf      CsrfConfig
	FormLogin *FormLoginConfig
	Logout    *LogoutConfig
	HttpBasic *HttpBasicConfig
}

func (c SecurityConfig) RequiresAuthentication() bool {
	for _, area := range c.Firewall {
		if area.Secure {
			return true
		}
	}
	return false
}

// SelectPolicy picks the policy for the active profiles. Exactly one policy governs a process.
func SelectPolicy(profiles []string, props AdminServerProperties) (SecurityConfig, error) {
	insecure, secure := false, false
	for _, p := range profiles {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case ProfileInsecure:
			insecure = true
		case ProfileSecure:
			secure = true
		}
	}
	switch {
	case insecure && secure:
		return SecurityConfig{}, errors.Wrapf(ErrConflictingProfiles, "active profiles %v", profiles)
	case insecure:
		return PermitAllPolicy(props), nil
	case secure:
		return SecurePolicy(props), nil
	default:
		return DefaultPolicy(), nil
	}
}

func adminCsrf(props AdminServerProperties) CsrfConfig {
	return CsrfConfig{
		Enabled:        true,
		CookieHttpOnly: false,
		Ignoring: []RequestMatcher{
			NewPathMatcher(POST, props.Path("/instances")),
			NewPathMatcher(DELETE, props.Path("/instances/*")),
			Path(props.Path("/actuator/**")),
		},
	}
}

// PermitAllPolicy lets every request through. Meant for trusted local deployments only.
func PermitAllPolicy(props AdminServerProperties) SecurityConfig {
	return SecurityConfig{
		Name: ProfileInsecure,
		Firewall: FirewallConfig{
			{Matcher: AnyRequest(), Secure: false},
		},
		Csrf: adminCsrf(props),
	}
}

func SecurePolicy(props AdminServerProperties) SecurityConfig {
	return SecurityConfig{
		Name: ProfileSecure,
		Firewall: FirewallConfig{
			{Matcher: Path(props.Path("/assets/**")), Secure: false},
			{Matcher: Path(props.Path("/login")), Secure: false},
			{Matcher: AnyRequest(), Secure: true},
		},
		Csrf: adminCsrf(props),
		FormLogin: &FormLoginConfig{
			LoginPage:          props.Path("/login"),
			TargetUrlParameter: DefaultTargetUrlParameter,
			DefaultTargetUrl:   props.Path("/"),
		},
		Logout: &LogoutConfig{
			LogoutUrl:  props.Path("/logout"),
			SuccessUrl: props.Path("/login") + "?logout",
		},
		HttpBasic: &HttpBasicConfig{Realm: DefaultRealm},
	}
}

// DefaultPolicy applies when no profile selects a policy: everything is authenticated, login
// lives at the server root and no CSRF exemptions exist.
func DefaultPolicy() SecurityConfig {
	return SecurityConfig{
		Name: "default",
		Firewall: FirewallConfig{
			{Matcher: Path("/login"), Secure: false},
			{Matcher: AnyRequest(), Secure: true},
		},
		Csrf: CsrfConfig{Enabled: true, CookieHttpOnly: true},
		FormLogin: &FormLoginConfig{
			LoginPage:        "/login",
			DefaultTargetUrl: "/",
		},
		Logout: &LogoutConfig{
			LogoutUrl:  "/logout",
			SuccessUrl: "/login?logout",
		},
		HttpBasic: &HttpBasicConfig{Realm: DefaultRealm},
	}
}
