package guard

import (
	"net/url"
	"strings"
)

const (
	UsernameParameter = "username"
	PasswordParameter = "password"
)

type formLoginFilter struct {
	config     FormLoginConfig
	users      UserProvider
	encoder    PasswordEncoder
	sessions   SessionManager
	csrf       *CookieCsrfTokenRepository
	dispatcher EventDispatcher
}

// NewFormLoginFilter authenticates POSTs to the login page. csrf may be nil when CSRF protection
// is disabled.
func NewFormLoginFilter(config FormLoginConfig, users UserProvider, encoder PasswordEncoder, sessions SessionManager, csrf *CookieCsrfTokenRepository, dispatcher EventDispatcher) Middleware {
	f := &formLoginFilter{
		config:     config,
		users:      users,
		encoder:    encoder,
		sessions:   sessions,
		csrf:       csrf,
		dispatcher: dispatcher,
	}
	return f.Handle
}

func (f *formLoginFilter) Handle(req Request, next Handler) Response {
	if req.Method != POST || req.URL.Path != f.config.LoginPage {
		return next(req)
	}
	username := strings.TrimSpace(req.PostFormValue(UsernameParameter))
	password := req.PostFormValue(PasswordParameter)
	u, err := checkCredentials(req.Context(), f.users, f.encoder, username, password)
	if err != nil {
		dispatchEventSilent(req.Context(), f.dispatcher, AuthenticationFailureEvent{Request: req, Method: "form", Username: username, Err: err})
		return NewRedirectResponse(f.failureUrl(req))
	}

	session, ok := f.sessions.Load(req)
	if !ok {
		session = f.sessions.Start(req)
	}
	savedRequest := session.Attributes[savedRequestAttribute]
	delete(session.Attributes, savedRequestAttribute)
	session.Username = u.GetUsername()
	session.Roles = u.GetRoles()
	session, err = f.sessions.Rotate(req, session)
	if err != nil {
		logSessionError(err)
		return NewErrorJSONResponse(Wrap(err))
	}

	token := NewAuthToken(u, "form")
	dispatchEventSilent(req.Context(), f.dispatcher, AuthenticationSuccessEvent{Request: req, Token: token})

	headers := Headers{CookieHeader(f.sessions.Cookie(session))}
	if f.csrf != nil {
		headers = append(headers, f.csrf.ClearToken())
	}
	return NewRedirectResponse(f.determineTargetUrl(req, savedRequest), headers...)
}

// determineTargetUrl prefers the target parameter, then the request saved before the login
// redirect, then the default target. The target parameter is not checked against an allow list.
func (f *formLoginFilter) determineTargetUrl(req Request, savedRequest string) string {
	if f.config.TargetUrlParameter != "" {
		if target := req.FormValue(f.config.TargetUrlParameter); target != "" {
			return target
		}
	}
	if savedRequest != "" {
		return savedRequest
	}
	return f.config.DefaultTargetUrl
}

func (f *formLoginFilter) failureUrl(req Request) string {
	failure := f.config.LoginPage + "?error"
	if f.config.TargetUrlParameter == "" {
		return failure
	}
	if target := req.FormValue(f.config.TargetUrlParameter); target != "" {
		failure += "&" + url.Values{f.config.TargetUrlParameter: {target}}.Encode()
	}
	return failure
}

type logoutFilter struct {
	config     LogoutConfig
	sessions   SessionManager
	csrf       *CookieCsrfTokenRepository
	dispatcher EventDispatcher
}

// NewLogoutFilter ends the session on POST to the logout url. It sits before the firewall so
// logging out never needs an authenticated request.
func NewLogoutFilter(config LogoutConfig, sessions SessionManager, csrf *CookieCsrfTokenRepository, dispatcher EventDispatcher) Middleware {
	f := &logoutFilter{config: config, sessions: sessions, csrf: csrf, dispatcher: dispatcher}
	return f.Handle
}

func (f *logoutFilter) Handle(req Request, next Handler) Response {
	if req.URL.Path != f.config.LogoutUrl || (req.Method != POST && f.csrf != nil) {
		return next(req)
	}
	session, _ := f.sessions.Load(req)
	if err := f.sessions.Invalidate(req); err != nil {
		logSessionError(err)
	}
	dispatchEventSilent(req.Context(), f.dispatcher, LogoutEvent{Request: req, Session: session})
	headers := Headers{CookieHeader(f.sessions.ExpiredCookie())}
	if f.csrf != nil {
		headers = append(headers, f.csrf.ClearToken())
	}
	return NewRedirectResponse(f.config.SuccessUrl, headers...)
}
