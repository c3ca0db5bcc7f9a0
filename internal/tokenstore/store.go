// Package tokenstore keeps a browser's session in two synchronized sinks: a
// server-side persistent store scoped by the sid cookie, and plain cookies that
// the edge middleware can read without touching the persistent store.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/pharmacy_portal/internal/models"
)

const (
	KeyAccessToken  = "auth_token"
	KeyRefreshToken = "refresh_token"
	KeyUserData     = "user_data"

	ClientCookie = "sid"

	DefaultMaxAge = 7 * 24 * time.Hour
)

var dataKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUserData}

var ErrNoSession = errors.New("tokenstore: no session")

// KV is a persistent key/value store partitioned by client id.
// Implementations must be safe for concurrent use.
type KV interface {
	Get(ctx context.Context, clientID, key string) (string, bool, error)
	Set(ctx context.Context, clientID string, values map[string]string, ttl time.Duration) error
	Delete(ctx context.Context, clientID string, keys ...string) error
}

// Cookies is the cookie sink of one request. echo.Context satisfies it.
type Cookies interface {
	Cookie(name string) (*http.Cookie, error)
	SetCookie(cookie *http.Cookie)
}

type Options struct {
	MaxAge time.Duration
	Path   string
	Secure bool
}

func (o Options) normalize() Options {
	if o.MaxAge <= 0 {
		o.MaxAge = DefaultMaxAge
	}
	if o.Path == "" {
		o.Path = "/"
	}
	return o
}

// Store is the token store of a single request. Every write goes through
// both sinks.
type Store struct {
	kv      KV
	cookies Cookies
	opts    Options

	mu       sync.Mutex
	clientID string
}

func New(kv KV, cookies Cookies, opts Options) *Store {
	s := &Store{kv: kv, cookies: cookies, opts: opts.normalize()}
	if ck, err := cookies.Cookie(ClientCookie); err == nil {
		if _, perr := uuid.Parse(ck.Value); perr == nil {
			s.clientID = ck.Value
		}
	}
	return s
}

// ClientID returns the sid binding of this browser, or "" when none exists yet.
func (s *Store) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}

func (s *Store) bind() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clientID == "" {
		s.clientID = uuid.NewString()
	}
	s.cookies.SetCookie(s.cookie(ClientCookie, s.clientID, true))
	return s.clientID
}

func (s *Store) Save(ctx context.Context, sess models.Session) error {
	values := map[string]string{
		KeyAccessToken:  sess.AccessToken,
		KeyRefreshToken: sess.RefreshToken,
	}
	if sess.User != nil {
		raw, err := json.Marshal(sess.User)
		if err != nil {
			return fmt.Errorf("tokenstore: encode user: %w", err)
		}
		values[KeyUserData] = string(raw)
	}
	if err := s.write(ctx, values); err != nil {
		return err
	}
	if sess.User == nil {
		return s.remove(ctx, KeyUserData)
	}
	return nil
}

func (s *Store) SetAccessToken(ctx context.Context, token string) error {
	return s.write(ctx, map[string]string{KeyAccessToken: token})
}

func (s *Store) SetUser(ctx context.Context, user models.UserProfile) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("tokenstore: encode user: %w", err)
	}
	return s.write(ctx, map[string]string{KeyUserData: string(raw)})
}

// Load reads the session from the persistent sink. A missing access token or
// an undecodable user yields ErrNoSession.
func (s *Store) Load(ctx context.Context) (*models.Session, error) {
	access, err := s.get(ctx, KeyAccessToken)
	if err != nil {
		return nil, err
	}
	if access == "" {
		return nil, ErrNoSession
	}
	refresh, err := s.get(ctx, KeyRefreshToken)
	if err != nil {
		return nil, err
	}
	sess := &models.Session{AccessToken: access, RefreshToken: refresh}

	raw, err := s.get(ctx, KeyUserData)
	if err != nil {
		return nil, err
	}
	if raw != "" {
		user, ok := decodeUser(raw)
		if !ok {
			return nil, ErrNoSession
		}
		sess.User = user
	}
	return sess, nil
}

// HasCookies reports whether the request carries any session cookie.
func (s *Store) HasCookies() bool {
	for _, k := range append([]string{ClientCookie}, dataKeys...) {
		if ck, err := s.cookies.Cookie(k); err == nil && ck.Value != "" {
			return true
		}
	}
	return false
}

func (s *Store) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, KeyAccessToken)
}

func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, KeyRefreshToken)
}

// Clear drops every session key from both sinks together with the sid binding.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	id := s.clientID
	s.clientID = ""
	s.mu.Unlock()

	var kvErr error
	if id != "" {
		kvErr = s.kv.Delete(ctx, id, dataKeys...)
	}
	for _, k := range dataKeys {
		s.cookies.SetCookie(s.expired(k, k != KeyUserData))
	}
	s.cookies.SetCookie(s.expired(ClientCookie, true))
	if kvErr != nil {
		return fmt.Errorf("tokenstore: clear: %w", kvErr)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	id := s.ClientID()
	if id == "" {
		return "", nil
	}
	v, ok, err := s.kv.Get(ctx, id, key)
	if err != nil {
		return "", fmt.Errorf("tokenstore: get %s: %w", key, err)
	}
	if !ok {
		return "", nil
	}
	return v, nil
}

func (s *Store) write(ctx context.Context, values map[string]string) error {
	id := s.bind()
	if err := s.kv.Set(ctx, id, values, s.opts.MaxAge); err != nil {
		return fmt.Errorf("tokenstore: write: %w", err)
	}
	for k, v := range values {
		s.cookies.SetCookie(s.cookie(k, EncodeCookieValue(v), k != KeyUserData))
	}
	return nil
}

func (s *Store) remove(ctx context.Context, keys ...string) error {
	id := s.ClientID()
	if id != "" {
		if err := s.kv.Delete(ctx, id, keys...); err != nil {
			return fmt.Errorf("tokenstore: remove: %w", err)
		}
	}
	for _, k := range keys {
		s.cookies.SetCookie(s.expired(k, k != KeyUserData))
	}
	return nil
}

func (s *Store) cookie(name, value string, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.opts.Path,
		MaxAge:   int(s.opts.MaxAge.Seconds()),
		Expires:  time.Now().Add(s.opts.MaxAge),
		HttpOnly: httpOnly,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Store) expired(name string, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     s.opts.Path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: httpOnly,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// EncodeCookieValue makes an arbitrary string safe for a cookie value.
func EncodeCookieValue(v string) string {
	return url.QueryEscape(v)
}

func DecodeCookieValue(v string) (string, error) {
	return url.QueryUnescape(v)
}

// UserFromCookies returns the cookie-mirrored identity of a request. ok is
// false when the token is missing or user_data is absent or malformed.
func UserFromCookies(r *http.Request) (*models.UserProfile, bool) {
	tok, err := r.Cookie(KeyAccessToken)
	if err != nil || tok.Value == "" {
		return nil, false
	}
	ck, err := r.Cookie(KeyUserData)
	if err != nil || ck.Value == "" {
		return nil, false
	}
	raw, err := DecodeCookieValue(ck.Value)
	if err != nil {
		return nil, false
	}
	return decodeUser(raw)
}

func decodeUser(raw string) (*models.UserProfile, bool) {
	var u models.UserProfile
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, false
	}
	if !u.Role.Valid() {
		return nil, false
	}
	return &u, true
}
