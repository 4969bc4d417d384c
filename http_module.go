package guard

type ModuleSecurity interface {
	Policy() SecurityConfig
	Firewall() Firewall
	Sessions() SessionManager
	// Middlewares returns the filters in the order they run for every request.
	Middlewares() []Middleware
}

type SecurityDeps struct {
	Users        UserProvider
	Encoder      PasswordEncoder
	Sessions     SessionManager
	Dispatcher   EventDispatcher
	SecureCookie bool
}

type securityModule struct {
	policy      SecurityConfig
	firewall    Firewall
	sessions    SessionManager
	middlewares []Middleware
}

// NewSecurityModule turns a policy into the filter chain:
// strict path check, CSRF, logout, form login, then the firewall.
func NewSecurityModule(policy SecurityConfig, deps SecurityDeps) ModuleSecurity {
	m := &securityModule{policy: policy, sessions: deps.Sessions}
	m.middlewares = append(m.middlewares, StrictPathFilter)

	var csrf *CookieCsrfTokenRepository
	if policy.Csrf.Enabled {
		repo := NewCookieCsrfTokenRepository(policy.Csrf.CookieHttpOnly, deps.SecureCookie)
		csrf = &repo
		m.middlewares = append(m.middlewares, NewCsrfFilter(repo, policy.Csrf.Ignoring, deps.Dispatcher))
	}
	if policy.Logout != nil {
		m.middlewares = append(m.middlewares, NewLogoutFilter(*policy.Logout, deps.Sessions, csrf, deps.Dispatcher))
	}
	if policy.FormLogin != nil {
		m.middlewares = append(m.middlewares, NewFormLoginFilter(*policy.FormLogin, deps.Users, deps.Encoder, deps.Sessions, csrf, deps.Dispatcher))
	}

	var authenticators []Authenticator
	var basic, login AuthenticationEntryPoint
	if policy.FormLogin != nil {
		authenticators = append(authenticators, NewSessionAuthenticator(deps.Sessions, deps.Users))
		login = NewLoginUrlEntryPoint(policy.FormLogin.LoginPage, deps.Sessions)
	}
	if policy.HttpBasic != nil {
		authenticators = append(authenticators, NewBasicAuthenticator(deps.Users, deps.Encoder))
		basic = NewBasicEntryPoint(policy.HttpBasic.Realm)
	}
	m.firewall = NewFirewall(policy.Firewall, authenticators, NewDelegatingEntryPoint(basic, login), deps.Dispatcher)
	m.middlewares = append(m.middlewares, m.firewall.Handle)
	return m
}

func (m *securityModule) Policy() SecurityConfig {
	return m.policy
}

func (m *securityModule) Firewall() Firewall {
	return m.firewall
}

func (m *securityModule) Sessions() SessionManager {
	return m.sessions
}

func (m *securityModule) Middlewares() []Middleware {
	return m.middlewares
}
