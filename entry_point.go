package guard

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// AuthenticationEntryPoint answers a request that needs authentication but has none.
type AuthenticationEntryPoint interface {
	Commence(req Request, cause error) Response
}

type basicEntryPoint struct {
	realm string
}

func NewBasicEntryPoint(realm string) AuthenticationEntryPoint {
	return basicEntryPoint{realm: realm}
}

func (e basicEntryPoint) Commence(_ Request, cause error) Response {
	return NewErrorJSONResponse(errorOr(cause, UnauthorizedErr()), Header{
		Name:  "WWW-Authenticate",
		Value: fmt.Sprintf("Basic realm=%q", e.realm),
	})
}

type loginUrlEntryPoint struct {
	loginPage string
	sessions  SessionManager
}

// NewLoginUrlEntryPoint redirects to the login page. GET requests are remembered in the session
// so the user lands on them after logging in.
func NewLoginUrlEntryPoint(loginPage string, sessions SessionManager) AuthenticationEntryPoint {
	return loginUrlEntryPoint{loginPage: loginPage, sessions: sessions}
}

func (e loginUrlEntryPoint) Commence(req Request, _ error) Response {
	if req.Method != GET || isXhr(req.Request) {
		return NewRedirectResponse(e.loginPage)
	}
	session, ok := e.sessions.Load(req)
	if !ok {
		session = e.sessions.Start(req)
	}
	session.Attributes[savedRequestAttribute] = req.URL.RequestURI()
	if err := e.sessions.Save(req, session); err != nil {
		logSessionError(err)
		return NewRedirectResponse(e.loginPage)
	}
	return NewRedirectResponse(e.loginPage, CookieHeader(e.sessions.Cookie(session)))
}

type delegatingEntryPoint struct {
	basic AuthenticationEntryPoint
	login AuthenticationEntryPoint
}

// NewDelegatingEntryPoint sends API clients the Basic challenge and browsers to the login page.
// Either side may be nil.
func NewDelegatingEntryPoint(basic, login AuthenticationEntryPoint) AuthenticationEntryPoint {
	return delegatingEntryPoint{basic: basic, login: login}
}

func (e delegatingEntryPoint) Commence(req Request, cause error) Response {
	switch {
	case e.login == nil && e.basic == nil:
		return NewErrorJSONResponse(AccessDeniedErr())
	case e.login == nil:
		return e.basic.Commence(req, cause)
	case e.basic == nil:
		return e.login.Commence(req, cause)
	case prefersBasic(req.Request):
		return e.basic.Commence(req, cause)
	default:
		return e.login.Commence(req, cause)
	}
}

func isXhr(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

func prefersBasic(r *http.Request) bool {
	if isXhr(r) || strings.HasPrefix(strings.ToLower(r.Header.Get("Authorization")), "basic ") {
		return true
	}
	accept := strings.ToLower(r.Header.Get(AcceptHeaderName))
	if strings.Contains(accept, "text/html") {
		return false
	}
	return strings.Contains(accept, "application/json") || strings.Contains(accept, "+json")
}

func errorOr(err error, def error) error {
	var e Error
	if err != nil && errors.As(err, &e) {
		return err
	}
	return def
}
