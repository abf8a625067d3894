// Package credential caches the short-lived speech-service token and refreshes
// it on demand.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// SafetyMargin is subtracted from a credential's expiry before it is considered stale.
const SafetyMargin = 5 * time.Minute

// RefreshTimeout bounds one issuance. A refresh outlives the caller that
// started it, so it cannot borrow that caller's deadline.
const RefreshTimeout = 30 * time.Second

// Credential is a bearer token and the instant it stops being accepted.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Usable reports whether the credential may still be sent at now.
func (c Credential) Usable(now time.Time) bool {
	return c.Token != "" && now.Before(c.ExpiresAt.Add(-SafetyMargin))
}

// Issuer obtains a fresh credential from the provider.
type Issuer interface {
	Issue(ctx context.Context) (Credential, error)
}

// IssuerFunc adapts a function to Issuer.
type IssuerFunc func(ctx context.Context) (Credential, error)

func (f IssuerFunc) Issue(ctx context.Context) (Credential, error) { return f(ctx) }

// Error reports a failed credential issuance.
type Error struct {
	Err error
}

func (e *Error) Error() string { return "credential error: " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// ErrEmptyToken is wrapped in Error when the issuer returns no token.
var ErrEmptyToken = errors.New("issuer returned empty token")

// Cache holds at most one credential. Concurrent callers that find it stale
// share a single issuance.
type Cache struct {
	issuer Issuer
	now    func() time.Time

	mu   sync.Mutex
	cred *Credential

	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates an empty cache backed by issuer.
func NewCache(issuer Issuer, opts ...Option) *Cache {
	c := &Cache{issuer: issuer, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a usable token, issuing a new credential when the cached one
// is missing or within SafetyMargin of expiry. Failures are *Error. A caller
// whose ctx ends stops waiting, but the shared refresh keeps going for the
// others.
func (c *Cache) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	ch := c.group.DoChan("token", func() (interface{}, error) {
		// another flight may have finished between the check and DoChan
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
		defer cancel()
		return c.refresh(rctx)
	})

	select {
	case <-ctx.Done():
		return "", &Error{Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached credential.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.cred = nil
	c.mu.Unlock()
}

// Current returns a copy of the cached credential, if any.
func (c *Cache) Current() (Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cred == nil {
		return Credential{}, false
	}
	return *c.cred, true
}

func (c *Cache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cred != nil && c.cred.Usable(c.now()) {
		return c.cred.Token, true
	}
	return "", false
}

func (c *Cache) refresh(ctx context.Context) (string, error) {
	cred, err := c.issuer.Issue(ctx)
	if err != nil {
		slog.Warn("credential refresh failed", "error", err)
		return "", &Error{Err: err}
	}
	if cred.Token == "" {
		return "", &Error{Err: ErrEmptyToken}
	}

	c.mu.Lock()
	c.cred = &cred
	c.mu.Unlock()

	slog.Debug("credential refreshed", "expires_at", cred.ExpiresAt)
	return cred.Token, nil
}

// Static returns an issuer that always hands out token valid for ttl.
func Static(token string, ttl time.Duration) Issuer {
	return IssuerFunc(func(context.Context) (Credential, error) {
		if token == "" {
			return Credential{}, fmt.Errorf("static token not configured")
		}
		return Credential{Token: token, ExpiresAt: time.Now().Add(ttl)}, nil
	})
}
