package guard

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
)

const (
	CsrfCookieName    = "XSRF-TOKEN"
	CsrfHeaderName    = "X-XSRF-TOKEN"
	CsrfParameterName = "_csrf"

	csrfContextKey contextKey = "csrf-token"
)

type CsrfToken struct {
	HeaderName    string
	ParameterName string
	Token         string
}

func CsrfTokenFromContext(ctx context.Context) (CsrfToken, bool) {
	t, ok := ctx.Value(csrfContextKey).(CsrfToken)
	return t, ok
}

// CookieCsrfTokenRepository keeps the token in a cookie the browser sends back, so a script
// reading the cookie can echo it in the X-XSRF-TOKEN header when httpOnly is false.
type CookieCsrfTokenRepository struct {
	httpOnly bool
	secure   bool
}

func NewCookieCsrfTokenRepository(httpOnly, secure bool) CookieCsrfTokenRepository {
	return CookieCsrfTokenRepository{httpOnly: httpOnly, secure: secure}
}

func (r CookieCsrfTokenRepository) GenerateToken() string {
	return uuid.NewString()
}

func (r CookieCsrfTokenRepository) LoadToken(req *http.Request) string {
	cookie, err := req.Cookie(CsrfCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (r CookieCsrfTokenRepository) SaveToken(token string) Header {
	cookie := &http.Cookie{
		Name:     CsrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: r.httpOnly,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		cookie.MaxAge = -1
	}
	return CookieHeader(cookie)
}

// ClearToken expires the cookie; the next request is issued a fresh token.
func (r CookieCsrfTokenRepository) ClearToken() Header {
	return r.SaveToken("")
}

type csrfFilter struct {
	repository CookieCsrfTokenRepository
	ignoring   []RequestMatcher
	dispatcher EventDispatcher
}

func NewCsrfFilter(repository CookieCsrfTokenRepository, ignoring []RequestMatcher, dispatcher EventDispatcher) Middleware {
	f := &csrfFilter{repository: repository, ignoring: ignoring, dispatcher: dispatcher}
	return f.Handle
}

func isSafeMethod(method string) bool {
	switch method {
	case GET, HEAD, TRACE, OPTIONS:
		return true
	}
	return false
}

func (f *csrfFilter) Handle(req Request, next Handler) Response {
	var issued []Header
	token := f.repository.LoadToken(req.Request)
	missing := token == ""
	if missing {
		token = f.repository.GenerateToken()
		issued = append(issued, f.repository.SaveToken(token))
	}
	req = req.WithValue(csrfContextKey, CsrfToken{
		HeaderName:    CsrfHeaderName,
		ParameterName: CsrfParameterName,
		Token:         token,
	})
	if f.requiresProtection(req) {
		actual := req.Header.Get(CsrfHeaderName)
		if actual == "" {
			actual = req.FormValue(CsrfParameterName)
		}
		if missing || subtle.ConstantTimeCompare([]byte(actual), []byte(token)) != 1 {
			dispatchEventSilent(req.Context(), f.dispatcher, CsrfRejectedEvent{Request: req})
			return NewErrorJSONResponse(InvalidCsrfTokenErr(), issued...)
		}
	}
	return WithHeaders(next(req), issued...)
}

func (f *csrfFilter) requiresProtection(req Request) bool {
	if isSafeMethod(req.Method) {
		return false
	}
	for _, m := range f.ignoring {
		if m.Matches(req.Request) {
			return false
		}
	}
	return true
}
