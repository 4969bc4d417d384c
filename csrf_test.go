package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(Request) Response {
	return NewResponse([]byte("ok"), nil, http.StatusOK)
}

func headerValues(resp Response, name string) []string {
	var values []string
	for _, h := range resp.GetHeaders() {
		if strings.EqualFold(h.Name, name) {
			values = append(values, h.Value)
		}
	}
	return values
}

func setCookie(resp Response, name string) (string, bool) {
	for _, v := range headerValues(resp, SetCookieHeaderName) {
		if strings.HasPrefix(v, name+"=") {
			return v, true
		}
	}
	return "", false
}

func newCsrfFixture(t *testing.T) (Middleware, *int) {
	t.Helper()
	rejected := 0
	d := NewDispatcher()
	d.Subscribe(CsrfRejectedEventName, func(context.Context, Event) error {
		rejected++
		return nil
	})
	filter := NewCsrfFilter(NewCookieCsrfTokenRepository(false, false), adminCsrf(AdminServerProperties{ContextPath: "/admin"}).Ignoring, d)
	return filter, &rejected
}

func TestCsrfFilterIssuesToken(t *testing.T) {
	filter, _ := newCsrfFixture(t)

	var seen CsrfToken
	resp := filter(Request{Request: httptest.NewRequest(GET, "/admin/", nil)}, func(req Request) Response {
		token, ok := CsrfTokenFromContext(req.Context())
		require.True(t, ok)
		seen = token
		return okHandler(req)
	})

	assert.Equal(t, http.StatusOK, resp.GetCode())
	cookie, ok := setCookie(resp, CsrfCookieName)
	require.True(t, ok)
	assert.Contains(t, cookie, seen.Token)
	assert.NotContains(t, cookie, "HttpOnly")
	assert.Equal(t, CsrfHeaderName, seen.HeaderName)
	assert.Equal(t, CsrfParameterName, seen.ParameterName)
}

func TestCsrfFilterKeepsExistingToken(t *testing.T) {
	filter, _ := newCsrfFixture(t)
	r := httptest.NewRequest(GET, "/admin/", nil)
	r.AddCookie(&http.Cookie{Name: CsrfCookieName, Value: "known"})

	resp := filter(Request{Request: r}, func(req Request) Response {
		token, _ := CsrfTokenFromContext(req.Context())
		assert.Equal(t, "known", token.Token)
		return okHandler(req)
	})
	_, issued := setCookie(resp, CsrfCookieName)
	assert.False(t, issued)
}

func TestCsrfFilterProtectsUnsafeMethods(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
		form   string
		want   int
	}{
		{name: "no cookie", header: "abc", want: http.StatusForbidden},
		{name: "no token", cookie: "abc", want: http.StatusForbidden},
		{name: "header mismatch", cookie: "abc", header: "abd", want: http.StatusForbidden},
		{name: "header", cookie: "abc", header: "abc", want: http.StatusOK},
		{name: "form parameter", cookie: "abc", form: "abc", want: http.StatusOK},
		{name: "form mismatch", cookie: "abc", form: "xyz", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, rejected := newCsrfFixture(t)
			body := url.Values{}
			if tt.form != "" {
				body.Set(CsrfParameterName, tt.form)
			}
			r := httptest.NewRequest(POST, "/admin/logout", strings.NewReader(body.Encode()))
			r.Header.Set(ContentTypeHeaderName, "application/x-www-form-urlencoded")
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: CsrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				r.Header.Set(CsrfHeaderName, tt.header)
			}

			resp := filter(Request{Request: r}, okHandler)
			assert.Equal(t, tt.want, resp.GetCode())
			if tt.want == http.StatusForbidden {
				assert.Equal(t, 1, *rejected)
				assert.EqualError(t, resp.GetError(), "Error: Invalid CSRF Token")
			} else {
				assert.Equal(t, 0, *rejected)
			}
		})
	}
}

func TestCsrfFilterIgnoresExemptRequests(t *testing.T) {
	filter, rejected := newCsrfFixture(t)
	for _, r := range []*http.Request{
		httptest.NewRequest(POST, "/admin/instances", strings.NewReader(`{}`)),
		httptest.NewRequest(DELETE, "/admin/instances/abc", nil),
		httptest.NewRequest(POST, "/admin/actuator/refresh", nil),
		httptest.NewRequest(HEAD, "/admin/", nil),
		httptest.NewRequest(OPTIONS, "/admin/instances", nil),
	} {
		resp := filter(Request{Request: r}, okHandler)
		assert.Equal(t, http.StatusOK, resp.GetCode(), "%s %s", r.Method, r.URL.Path)
	}
	assert.Equal(t, 0, *rejected)

	resp := filter(Request{Request: httptest.NewRequest(PUT, "/admin/instances", nil)}, okHandler)
	assert.Equal(t, http.StatusForbidden, resp.GetCode())
}

func TestCookieCsrfTokenRepository(t *testing.T) {
	repo := NewCookieCsrfTokenRepository(true, true)
	assert.NotEqual(t, repo.GenerateToken(), repo.GenerateToken())

	saved := repo.SaveToken("abc").Value
	assert.Contains(t, saved, "XSRF-TOKEN=abc")
	assert.Contains(t, saved, "HttpOnly")
	assert.Contains(t, saved, "Secure")

	cleared := repo.ClearToken().Value
	assert.Contains(t, cleared, "Max-Age=0")

	r := httptest.NewRequest(GET, "/", nil)
	assert.Equal(t, "", repo.LoadToken(r))
	r.AddCookie(&http.Cookie{Name: CsrfCookieName, Value: "abc"})
	assert.Equal(t, "abc", repo.LoadToken(r))
}
