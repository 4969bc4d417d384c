package guard

import (
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminServerPropertiesPath(t *testing.T) {
	assert.Equal(t, "/instances", AdminServerProperties{}.Path("/instances"))
	assert.Equal(t, "/admin/instances", AdminServerProperties{ContextPath: "/admin"}.Path("/instances"))
	assert.Equal(t, "/admin/instances", AdminServerProperties{ContextPath: "/admin/"}.Path("instances"))
	assert.Equal(t, "/admin/", AdminServerProperties{ContextPath: "/admin"}.Path("/"))
	assert.Equal(t, "/", AdminServerProperties{}.Path("/"))
}

func TestSelectPolicy(t *testing.T) {
	props := AdminServerProperties{ContextPath: "/admin"}

	tests := []struct {
		name     string
		profiles []string
		want     string
	}{
		{name: "insecure", profiles: []string{"insecure"}, want: ProfileInsecure},
		{name: "secure", profiles: []string{"secure"}, want: ProfileSecure},
		{name: "case and spaces", profiles: []string{" Secure "}, want: ProfileSecure},
		{name: "unrelated profiles are ignored", profiles: []string{"dev", "insecure"}, want: ProfileInsecure},
		{name: "none", profiles: nil, want: "default"},
		{name: "only unrelated", profiles: []string{"dev"}, want: "default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, err := SelectPolicy(tt.profiles, props)
			require.NoError(t, err)
			assert.Equal(t, tt.want, policy.Name)
		})
	}
}

func TestSelectPolicyRejectsBothProfiles(t *testing.T) {
	_, err := SelectPolicy([]string{"secure", "insecure"}, AdminServerProperties{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflictingProfiles))
}

func TestPermitAllPolicy(t *testing.T) {
	policy := PermitAllPolicy(AdminServerProperties{ContextPath: "/admin"})

	assert.False(t, policy.RequiresAuthentication())
	assert.Nil(t, policy.FormLogin)
	assert.Nil(t, policy.Logout)
	assert.Nil(t, policy.HttpBasic)
	assert.True(t, policy.Csrf.Enabled)
	assert.False(t, policy.Csrf.CookieHttpOnly)
	require.Len(t, policy.Firewall, 1)
	assert.False(t, policy.Firewall[0].Secure)
	assertCsrfExemptions(t, policy.Csrf)
}

func TestSecurePolicy(t *testing.T) {
	policy := SecurePolicy(AdminServerProperties{ContextPath: "/admin"})

	assert.True(t, policy.RequiresAuthentication())
	require.NotNil(t, policy.FormLogin)
	assert.Equal(t, "/admin/login", policy.FormLogin.LoginPage)
	assert.Equal(t, "redirectTo", policy.FormLogin.TargetUrlParameter)
	assert.Equal(t, "/admin/", policy.FormLogin.DefaultTargetUrl)
	require.NotNil(t, policy.Logout)
	assert.Equal(t, "/admin/logout", policy.Logout.LogoutUrl)
	require.NotNil(t, policy.HttpBasic)
	assertCsrfExemptions(t, policy.Csrf)

	decide := func(method, path string) bool {
		req := httptest.NewRequest(method, path, nil)
		for _, area := range policy.Firewall {
			if area.Matcher.Matches(req) {
				return area.Secure
			}
		}
		t.Fatalf("no area matched %s %s", method, path)
		return false
	}
	assert.False(t, decide(GET, "/admin/assets/console.css"))
	assert.False(t, decide(GET, "/admin/assets/img/logo.png"))
	assert.False(t, decide(GET, "/admin/login"))
	assert.False(t, decide(POST, "/admin/login"))
	assert.True(t, decide(GET, "/admin/"))
	assert.True(t, decide(GET, "/admin/instances"))
	assert.True(t, decide(GET, "/admin/login/other"))
	assert.True(t, decide(GET, "/somewhere-else"))
}

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()

	assert.True(t, policy.RequiresAuthentication())
	assert.True(t, policy.Csrf.CookieHttpOnly)
	assert.Empty(t, policy.Csrf.Ignoring)
	assert.Equal(t, "/login", policy.FormLogin.LoginPage)
}

func assertCsrfExemptions(t *testing.T, csrf CsrfConfig) {
	t.Helper()
	exempt := func(method, path string) bool {
		req := httptest.NewRequest(method, path, nil)
		for _, m := range csrf.Ignoring {
			if m.Matches(req) {
				return true
			}
		}
		return false
	}
	assert.True(t, exempt(POST, "/admin/instances"))
	assert.True(t, exempt(DELETE, "/admin/instances/abc123"))
	assert.True(t, exempt(POST, "/admin/actuator/refresh"))
	assert.True(t, exempt(PUT, "/admin/actuator"))

	assert.False(t, exempt(PUT, "/admin/instances"))
	assert.False(t, exempt(POST, "/admin/instances/abc123"))
	assert.False(t, exempt(DELETE, "/admin/instances"))
	assert.False(t, exempt(POST, "/admin/logout"))
	assert.False(t, exempt(POST, "/instances"))
}
