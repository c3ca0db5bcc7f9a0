// Package refresh collapses concurrent access token refreshes of one browser
// session into a single backend call.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Skotchmaster/pharmacy_portal/internal/metrics"
)

var (
	ErrNoRefreshToken = errors.New("refresh: no refresh token")
	ErrEmptyToken     = errors.New("refresh: backend returned an empty token")
)

type State int

const (
	Idle State = iota
	Refreshing
)

func (s State) String() string {
	if s == Refreshing {
		return "refreshing"
	}
	return "idle"
}

// Func performs the backend refresh and returns the new access token.
type Func func(ctx context.Context) (string, error)

type outcome struct {
	token string
	err   error
}

// Coordinator is a two state machine. While Refreshing, every caller is queued
// on the in-flight refresh and all of them settle together.
type Coordinator struct {
	mu    sync.Mutex
	state State
	queue []chan outcome

	// replaced is the token the last successful refresh superseded.
	replaced  string
	lastToken string
}

func New() *Coordinator {
	return &Coordinator{}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending reports how many callers wait on the in-flight refresh.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Refresh returns a fresh access token for a caller whose request failed with
// stale. The first caller starts do; callers arriving while it runs wait for
// its result. A caller still holding the token that was just replaced gets
// the new one without another backend call.
func (c *Coordinator) Refresh(ctx context.Context, stale string, do Func) (string, error) {
	c.mu.Lock()
	if c.state == Idle && c.lastToken != "" && stale == c.replaced {
		tok := c.lastToken
		c.mu.Unlock()
		metrics.TokenRefreshes.WithLabelValues("reused").Inc()
		return tok, nil
	}

	ch := make(chan outcome, 1)
	c.queue = append(c.queue, ch)
	if c.state == Idle {
		c.state = Refreshing
		go c.run(context.WithoutCancel(ctx), stale, do)
	} else {
		metrics.RefreshWaiters.Inc()
	}
	c.mu.Unlock()

	select {
	case out := <-ch:
		return out.token, out.err
	case <-ctx.Done():
		c.leave(ch)
		return "", ctx.Err()
	}
}

func (c *Coordinator) run(ctx context.Context, stale string, do Func) {
	tok, err := call(ctx, do)
	if err == nil && tok == "" {
		err = ErrEmptyToken
	}

	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.state = Idle
	if err == nil {
		c.replaced, c.lastToken = stale, tok
	} else {
		c.replaced, c.lastToken = "", ""
	}
	c.mu.Unlock()

	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failed").Inc()
	} else {
		metrics.TokenRefreshes.WithLabelValues("succeeded").Inc()
	}
	for _, ch := range queue {
		ch <- outcome{token: tok, err: err}
	}
}

func call(ctx context.Context, do Func) (tok string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh: panic: %v", r)
		}
	}()
	return do(ctx)
}

func (c *Coordinator) leave(ch chan outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, q := range c.queue {
		if q == ch {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return
		}
	}
}
