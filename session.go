package guard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	SessionCookieName     = "SESSION"
	savedRequestAttribute = "saved-request"
	redisSessionKeyPrefix = "guard:session:"
	DefaultSessionTimeout = 30 * time.Minute
	redisConnectTimeout   = 2 * time.Second
	memorySweepInterval   = time.Minute
)

var ErrSessionNotFound = errors.New("session not found")

type Session struct {
	ID         string            `json:"id"`
	Username   string            `json:"username,omitempty"`
	Roles      []string          `json:"roles,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

func (s Session) clone() Session {
	attrs := make(map[string]string, len(s.Attributes))
	for k, v := range s.Attributes {
		attrs[k] = v
	}
	s.Attributes = attrs
	s.Roles = append([]string(nil), s.Roles...)
	return s
}

type SessionStore interface {
	Get(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, session Session) error
	Delete(ctx context.Context, id string) error
	Close() error
}

type memorySessionStore struct {
	sessions  *hashmap.HashMap
	now       func() time.Time
	lastSweep atomic.Int64
}

// NewMemorySessionStore keeps sessions in process. Expired sessions are dropped on read and by a
// sweep that Save runs at most once per memorySweepInterval.
func NewMemorySessionStore() SessionStore {
	s := &memorySessionStore{sessions: &hashmap.HashMap{}, now: time.Now}
	s.lastSweep.Store(time.Now().UnixNano())
	return s
}

func (s *memorySessionStore) Get(_ context.Context, id string) (Session, error) {
	val, ok := s.sessions.Get(id)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	session := val.(Session)
	if !session.ExpiresAt.After(s.now()) {
		s.sessions.Del(id)
		return Session{}, ErrSessionNotFound
	}
	return session.clone(), nil
}

func (s *memorySessionStore) Save(_ context.Context, session Session) error {
	s.sessions.Set(session.ID, session.clone())
	now := s.now()
	last := s.lastSweep.Load()
	if now.UnixNano()-last >= int64(memorySweepInterval) && s.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		s.sweep(now)
	}
	return nil
}

func (s *memorySessionStore) sweep(now time.Time) {
	var expired []interface{}
	for kv := range s.sessions.Iter() {
		if !kv.Value.(Session).ExpiresAt.After(now) {
			expired = append(expired, kv.Key)
		}
	}
	for _, id := range expired {
		s.sessions.Del(id)
	}
}

func (s *memorySessionStore) Delete(_ context.Context, id string) error {
	s.sessions.Del(id)
	return nil
}

func (s *memorySessionStore) Close() error {
	return nil
}

type redisSessionStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisSessionStore connects to url (redis://host:port/db) and pings it once.
func NewRedisSessionStore(url string) (SessionStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "connect redis")
	}
	return &redisSessionStore{client: client, now: time.Now}, nil
}

func redisSessionKey(id string) string {
	return redisSessionKeyPrefix + id
}

func (s *redisSessionStore) Get(ctx context.Context, id string) (Session, error) {
	data, err := s.client.Get(ctx, redisSessionKey(id)).Bytes()
	if err == redis.Nil {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, errors.Wrap(err, "load session")
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, errors.Wrap(err, "decode session")
	}
	return session, nil
}

func (s *redisSessionStore) Save(ctx context.Context, session Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, session.ID)
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	return errors.Wrap(s.client.Set(ctx, redisSessionKey(session.ID), payload, ttl).Err(), "save session")
}

func (s *redisSessionStore) Delete(ctx context.Context, id string) error {
	return errors.Wrap(s.client.Del(ctx, redisSessionKey(id)).Err(), "delete session")
}

func (s *redisSessionStore) Close() error {
	return s.client.Close()
}

// SessionManager ties sessions to the SESSION cookie.
type SessionManager interface {
	Load(req Request) (Session, bool)
	Start(req Request) Session
	Save(req Request, session Session) error
	// Rotate moves the session's state to a new id and removes the old one.
	Rotate(req Request, session Session) (Session, error)
	Invalidate(req Request) error
	Cookie(session Session) *http.Cookie
	ExpiredCookie() *http.Cookie
}

type sessionManager struct {
	store   SessionStore
	timeout time.Duration
	secure  bool
	now     func() time.Time
}

func NewSessionManager(store SessionStore, timeout time.Duration, secureCookie bool) SessionManager {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &sessionManager{store: store, timeout: timeout, secure: secureCookie, now: time.Now}
}

func (m *sessionManager) Load(req Request) (Session, bool) {
	cookie, err := req.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return Session{}, false
	}
	session, err := m.store.Get(req.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			logSessionError(err)
		}
		return Session{}, false
	}
	return session, true
}

func (m *sessionManager) Start(_ Request) Session {
	now := m.now()
	return Session{
		ID:         uuid.NewString(),
		Attributes: map[string]string{},
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.timeout),
	}
}

func (m *sessionManager) Save(req Request, session Session) error {
	session.ExpiresAt = m.now().Add(m.timeout)
	return m.store.Save(req.Context(), session)
}

func (m *sessionManager) Rotate(req Request, session Session) (Session, error) {
	oldID := session.ID
	rotated := session.clone()
	rotated.ID = uuid.NewString()
	if err := m.Save(req, rotated); err != nil {
		return Session{}, err
	}
	if oldID != "" {
		if err := m.store.Delete(req.Context(), oldID); err != nil {
			logSessionError(err)
		}
	}
	return rotated, nil
}

func (m *sessionManager) Invalidate(req Request) error {
	cookie, err := req.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	return m.store.Delete(req.Context(), cookie.Value)
}

func (m *sessionManager) Cookie(session Session) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *sessionManager) ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// NewSessionStore builds the store named in config.
func NewSessionStore(cfg SessionConfig) (SessionStore, error) {
	switch cfg.Store {
	case "", SessionStoreMemory:
		return NewMemorySessionStore(), nil
	case SessionStoreRedis:
		return NewRedisSessionStore(cfg.RedisUrl)
	default:
		return nil, errors.Errorf("unknown session store %q", cfg.Store)
	}
}
