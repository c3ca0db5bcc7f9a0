package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/metrics"
	"github.com/Skotchmaster/pharmacy_portal/internal/refresh"
)

// Tokens is the part of the token store the pipeline reads and writes.
// *tokenstore.Store satisfies it.
type Tokens interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	SetAccessToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Session is the request pipeline of one browser session: it adds the bearer
// token, refreshes through the shared coordinator on 401 and resubmits once.
type Session struct {
	client *Client
	tokens Tokens
	coord  *refresh.Coordinator

	// OnExpired runs after a failed refresh has cleared the store.
	OnExpired func(ctx context.Context)
	now       func() time.Time
}

func (c *Client) Session(tokens Tokens, coord *refresh.Coordinator) *Session {
	if coord == nil {
		coord = refresh.New()
	}
	return &Session{client: c, tokens: tokens, coord: coord, now: time.Now}
}

func (s *Session) Do(ctx context.Context, req Request, out any) error {
	if req.Header.Get("Authorization") != "" {
		return s.client.send(ctx, req, "", out)
	}

	tok, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("read access token: %w", err)
	}
	if tok != "" && s.expired(tok) {
		tok, err = s.refresh(ctx, tok)
		if err != nil {
			return err
		}
	}

	err = s.client.send(ctx, req, tok, out)
	if StatusOf(err) != http.StatusUnauthorized {
		return err
	}

	fresh, rerr := s.refresh(ctx, tok)
	if rerr != nil {
		return rerr
	}
	metrics.BackendRetries.Inc()
	logging.FromContext(ctx).Info("request_retried", "method", req.Method, "path", req.Path)
	return s.client.send(ctx, req, fresh, out)
}

// refresh obtains a new access token through the coordinator. Any failure other
// than the caller's own cancellation purges the session.
func (s *Session) refresh(ctx context.Context, stale string) (string, error) {
	tok, err := s.coord.Refresh(ctx, stale, func(rctx context.Context) (string, error) {
		rt, err := s.tokens.RefreshToken(rctx)
		if err != nil {
			return "", err
		}
		if rt == "" {
			return "", refresh.ErrNoRefreshToken
		}
		return s.client.RefreshToken(rctx, rt)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.expire(ctx, err)
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	if err := s.tokens.SetAccessToken(ctx, tok); err != nil {
		return "", fmt.Errorf("store access token: %w", err)
	}
	return tok, nil
}

func (s *Session) expire(ctx context.Context, cause error) {
	l := logging.FromContext(ctx)
	l.Warn("session_expired", "reason", "refresh_failed", "error", cause)
	if err := s.tokens.Clear(ctx); err != nil {
		l.Error("session_clear_failed", "error", err)
	}
	if s.OnExpired != nil {
		s.OnExpired(ctx)
	}
}

// expired reports whether tok is a JWT whose exp claim has passed. Opaque
// tokens are never considered expired here; the backend's 401 decides.
func (s *Session) expired(tok string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.Time.After(s.now())
}

// IsSessionExpired is shorthand for errors.Is(err, ErrSessionExpired).
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}
