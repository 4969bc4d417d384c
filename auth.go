package guard

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

type contextKey string

const securityContextKey contextKey = "security-context"

type SecurityContext struct {
	Token AuthToken `json:"token"`
}

func FromContext(ctx context.Context) (SecurityContext, bool) {
	s, ok := ctx.Value(securityContextKey).(SecurityContext)
	return s, ok
}

func withSecurityContext(req Request, token AuthToken) Request {
	sc := SecurityContext{Token: token}
	if entry, ok := req.Context().Value(accessEntryKey).(*accessEntry); ok {
		entry.SetSecurityContext(sc)
	}
	return req.WithValue(securityContextKey, sc)
}

type User interface {
	GetUsername() string
	GetPassword() string
	GetRoles() []string
}

type AuthToken interface {
	User() User
	Provider() string
}

type UserProvider interface {
	FindUserByUsername(ctx context.Context, username string) (User, error)
}

type Authenticator interface {
	// Authenticate returns a nil token and nil error when the request carries no credentials
	// this authenticator understands.
	Authenticate(r Request) (AuthToken, error)
}

type user struct {
	username string
	password string
	roles    []string
}

func NewUser(username, password string, roles ...string) User {
	return user{username: username, password: password, roles: roles}
}

func (u user) GetUsername() string {
	return u.username
}

func (u user) GetPassword() string {
	return u.password
}

func (u user) GetRoles() []string {
	return u.roles
}

type usernamePasswordToken struct {
	user     User
	provider string
}

func NewAuthToken(user User, provider string) AuthToken {
	return usernamePasswordToken{user: user, provider: provider}
}

func (t usernamePasswordToken) User() User {
	return t.user
}

func (t usernamePasswordToken) Provider() string {
	return t.provider
}

type inMemoryUserProvider struct {
	users map[string]User
}

// NewInMemoryUserProvider indexes users by name. Lookups are case sensitive.
func NewInMemoryUserProvider(users ...User) UserProvider {
	p := &inMemoryUserProvider{users: make(map[string]User, len(users))}
	for _, u := range users {
		p.users[u.GetUsername()] = u
	}
	return p
}

func (p *inMemoryUserProvider) FindUserByUsername(_ context.Context, username string) (User, error) {
	u, ok := p.users[username]
	if !ok {
		return nil, ObjectNotFoundErr("user", username)
	}
	return u, nil
}

// checkCredentials resolves the user and verifies the raw password. Unknown users and wrong
// passwords are reported the same way.
func checkCredentials(ctx context.Context, users UserProvider, encoder PasswordEncoder, username, password string) (User, error) {
	u, err := users.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, InvalidCredentialsErr()
	}
	valid, err := encoder.IsPasswordValid(u.GetPassword(), password)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !valid {
		return nil, InvalidCredentialsErr()
	}
	return u, nil
}

type basicAuthenticator struct {
	users   UserProvider
	encoder PasswordEncoder
}

func NewBasicAuthenticator(users UserProvider, encoder PasswordEncoder) Authenticator {
	return &basicAuthenticator{users: users, encoder: encoder}
}

func (a *basicAuthenticator) Authenticate(req Request) (AuthToken, error) {
	header := strings.TrimSpace(req.Header.Get("Authorization"))
	if len(header) < 6 || !strings.EqualFold(header[:6], "basic ") {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[6:]))
	if err != nil {
		return nil, InvalidCredentialsErr("Failed to decode basic authentication token")
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, InvalidCredentialsErr("Invalid basic authentication token")
	}
	u, err := checkCredentials(req.Context(), a.users, a.encoder, username, password)
	if err != nil {
		return nil, err
	}
	return NewAuthToken(u, "basic"), nil
}

type sessionAuthenticator struct {
	sessions SessionManager
	users    UserProvider
}

// NewSessionAuthenticator restores the principal stored by a successful form login.
func NewSessionAuthenticator(sessions SessionManager, users UserProvider) Authenticator {
	return &sessionAuthenticator{sessions: sessions, users: users}
}

func (a *sessionAuthenticator) Authenticate(req Request) (AuthToken, error) {
	session, ok := a.sessions.Load(req)
	if !ok || session.Username == "" {
		return nil, nil
	}
	u, err := a.users.FindUserByUsername(req.Context(), session.Username)
	if err != nil {
		// user removed from configuration since the session was created
		return nil, nil
	}
	return NewAuthToken(u, "form"), nil
}
