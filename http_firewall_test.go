package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type firewallFixture struct {
	firewall Firewall
	sessions SessionManager
	store    SessionStore
	events   map[string]int
}

func newFirewallFixture(t *testing.T) *firewallFixture {
	t.Helper()
	props := AdminServerProperties{ContextPath: "/admin"}
	policy := SecurePolicy(props)
	users := NewInMemoryUserProvider(NewUser("admin", "{noop}secret", "ADMIN"))
	encoder := NewPasswordEncoder()

	f := &firewallFixture{store: NewMemorySessionStore(), events: map[string]int{}}
	f.sessions = NewSessionManager(f.store, time.Minute, false)

	d := NewDispatcher()
	for _, name := range []string{AuthenticationSuccessEventName, AuthenticationFailureEventName, AccessDeniedEventName} {
		name := name
		d.Subscribe(name, func(context.Context, Event) error {
			f.events[name]++
			return nil
		})
	}
	entryPoint := NewDelegatingEntryPoint(NewBasicEntryPoint(DefaultRealm), NewLoginUrlEntryPoint(policy.FormLogin.LoginPage, f.sessions))
	f.firewall = NewFirewall(policy.Firewall, []Authenticator{
		NewSessionAuthenticator(f.sessions, users),
		NewBasicAuthenticator(users, encoder),
	}, entryPoint, d)
	return f
}

func TestFirewallRedirectsBrowserToLogin(t *testing.T) {
	f := newFirewallFixture(t)
	r := httptest.NewRequest(GET, "/admin/instances?sort=name", nil)

	resp := f.firewall.Handle(Request{Request: r}, okHandler)
	assert.Equal(t, http.StatusFound, resp.GetCode())
	assert.Equal(t, []string{"/admin/login"}, headerValues(resp, LocationHeaderName))
	assert.Equal(t, 1, f.events[AccessDeniedEventName])

	cookie, ok := setCookie(resp, SessionCookieName)
	require.True(t, ok)
	parsed, err := http.ParseSetCookie(cookie)
	require.NoError(t, err)
	session, err := f.store.Get(context.Background(), parsed.Value)
	require.NoError(t, err)
	assert.Equal(t, "/admin/instances?sort=name", session.Attributes[savedRequestAttribute])
}

func TestFirewallChallengesApiClients(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
	}{
		{name: "json", header: AcceptHeaderName, value: "application/json"},
		{name: "xhr", header: "X-Requested-With", value: "XMLHttpRequest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFirewallFixture(t)
			r := httptest.NewRequest(GET, "/admin/instances", nil)
			r.Header.Set(tt.header, tt.value)

			resp := f.firewall.Handle(Request{Request: r}, okHandler)
			assert.Equal(t, http.StatusUnauthorized, resp.GetCode())
			assert.Equal(t, []string{`Basic realm="Realm"`}, headerValues(resp, "WWW-Authenticate"))
			_, saved := setCookie(resp, SessionCookieName)
			assert.False(t, saved)
		})
	}
}

func TestFirewallBasicAuthentication(t *testing.T) {
	f := newFirewallFixture(t)
	r := httptest.NewRequest(GET, "/admin/instances", nil)
	r.SetBasicAuth("admin", "secret")

	var username string
	resp := f.firewall.Handle(Request{Request: r}, func(req Request) Response {
		sc, ok := FromContext(req.Context())
		require.True(t, ok)
		username = sc.Token.User().GetUsername()
		assert.Equal(t, "basic", sc.Token.Provider())
		return okHandler(req)
	})
	assert.Equal(t, http.StatusOK, resp.GetCode())
	assert.Equal(t, "admin", username)
	assert.Equal(t, 1, f.events[AuthenticationSuccessEventName])
}

func TestFirewallRejectsBadBasicCredentials(t *testing.T) {
	for _, password := range []string{"wrong", ""} {
		f := newFirewallFixture(t)
		r := httptest.NewRequest(GET, "/admin/assets/console.css", nil)
		r.SetBasicAuth("admin", password)

		resp := f.firewall.Handle(Request{Request: r}, okHandler)
		assert.Equal(t, http.StatusUnauthorized, resp.GetCode())
		assert.Equal(t, []string{`Basic realm="Realm"`}, headerValues(resp, "WWW-Authenticate"))
		assert.EqualError(t, resp.GetError(), "Error: Bad credentials")
		assert.Equal(t, 1, f.events[AuthenticationFailureEventName])
	}
}

func TestFirewallSessionAuthentication(t *testing.T) {
	f := newFirewallFixture(t)
	session := f.sessions.Start(Request{Request: httptest.NewRequest(GET, "/", nil)})
	session.Username = "admin"
	require.NoError(t, f.store.Save(context.Background(), session))

	r := httptest.NewRequest(GET, "/admin/", nil)
	r.AddCookie(f.sessions.Cookie(session))
	resp := f.firewall.Handle(Request{Request: r}, func(req Request) Response {
		sc, ok := FromContext(req.Context())
		require.True(t, ok)
		assert.Equal(t, "form", sc.Token.Provider())
		return okHandler(req)
	})
	assert.Equal(t, http.StatusOK, resp.GetCode())
	assert.Equal(t, 0, f.events[AuthenticationSuccessEventName])
}

func TestFirewallPublicAreas(t *testing.T) {
	f := newFirewallFixture(t)
	for _, path := range []string{"/admin/assets/console.css", "/admin/login"} {
		resp := f.firewall.Handle(Request{Request: httptest.NewRequest(GET, path, nil)}, okHandler)
		assert.Equal(t, http.StatusOK, resp.GetCode(), path)
	}
}

func TestFirewallDeniesWhenNoAreaMatches(t *testing.T) {
	fw := NewFirewall(FirewallConfig{{Matcher: Path("/only"), Secure: false}}, nil, NewDelegatingEntryPoint(nil, nil), nil)
	resp := fw.Handle(Request{Request: httptest.NewRequest(GET, "/other", nil)}, okHandler)
	assert.Equal(t, http.StatusForbidden, resp.GetCode())
}

func TestStrictPathFilter(t *testing.T) {
	rejected := []string{
		"/admin/%2e%2e/instances",
		"/admin/..%2Finstances",
		"/admin/instances%5cabc",
		"/admin/a%00b",
		"/admin/a%3bjsessionid=1",
		"/admin/%252e",
		"/admin//instances",
		"/admin/./instances",
		"/admin/../instances",
		"/admin/a;b",
	}
	for _, path := range rejected {
		resp := StrictPathFilter(Request{Request: httptest.NewRequest(GET, path, nil)}, okHandler)
		assert.Equal(t, http.StatusBadRequest, resp.GetCode(), path)
	}

	for _, path := range []string{"/", "/admin/", "/admin/instances/abc", "/admin/assets/console.css", "/admin/login?error"} {
		resp := StrictPathFilter(Request{Request: httptest.NewRequest(GET, path, nil)}, okHandler)
		assert.Equal(t, http.StatusOK, resp.GetCode(), path)
	}
}

func TestPrefersBasic(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    bool
	}{
		{name: "browser", headers: map[string]string{AcceptHeaderName: "text/html,application/xhtml+xml,*/*;q=0.8"}, want: false},
		{name: "no accept", want: false},
		{name: "json", headers: map[string]string{AcceptHeaderName: "application/json"}, want: true},
		{name: "vendor json", headers: map[string]string{AcceptHeaderName: "application/vnd.admin+json"}, want: true},
		{name: "html and json", headers: map[string]string{AcceptHeaderName: "text/html, application/json"}, want: false},
		{name: "xhr", headers: map[string]string{"X-Requested-With": "XMLHttpRequest"}, want: true},
		{name: "basic header", headers: map[string]string{"Authorization": "Basic Zm9vOmJhcg=="}, want: true},
		{name: "bearer header", headers: map[string]string{"Authorization": "Bearer abc"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(GET, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, prefersBasic(r))
		})
	}
}

func TestLoginUrlEntryPointDoesNotSaveNonGetRequests(t *testing.T) {
	store := NewMemorySessionStore()
	ep := NewLoginUrlEntryPoint("/admin/login", NewSessionManager(store, time.Minute, false))

	resp := ep.Commence(Request{Request: httptest.NewRequest(POST, "/admin/instances", nil)}, nil)
	assert.Equal(t, http.StatusFound, resp.GetCode())
	assert.Equal(t, []string{"/admin/login"}, headerValues(resp, LocationHeaderName))
	_, saved := setCookie(resp, SessionCookieName)
	assert.False(t, saved)
}
