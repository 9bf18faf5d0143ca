package jwtverifier

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/skyporter/luggage-api/internal/platform/auth/jwk"
)

const maxJWKSBytes = 1 << 20

// keyCache holds the provider's signing keys. It refetches on a fixed interval for
// rotation and early when a token names an unknown kid, but no more often than minGap.
// Concurrent lookups that need a refresh share one fetch.
type keyCache struct {
	url    string
	client *retryablehttp.Client
	every  time.Duration
	minGap time.Duration
	now    func() time.Time

	mu       sync.Mutex
	keys     map[string]*rsa.PublicKey
	fetched  time.Time
	inflight *fetchCall
}

type fetchCall struct {
	done chan struct{}
	err  error
}

func (c *keyCache) lookup(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if err := c.refreshIfNeeded(ctx, kid); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if pub := c.keys[kid]; pub != nil {
		return pub, nil
	}
	return nil, fmt.Errorf("unknown kid %q", kid)
}

func (c *keyCache) stale(kid string, now time.Time) bool {
	if c.fetched.IsZero() {
		return true
	}
	age := now.Sub(c.fetched)
	if c.every > 0 && age >= c.every {
		return true
	}
	return c.keys[kid] == nil && age >= c.minGap
}

func (c *keyCache) refreshIfNeeded(ctx context.Context, kid string) error {
	c.mu.Lock()
	if !c.stale(kid, c.now()) {
		c.mu.Unlock()
		return nil
	}
	if call := c.inflight; call != nil {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &fetchCall{done: make(chan struct{})}
	c.inflight = call
	c.mu.Unlock()

	keys, err := c.fetch(ctx)

	c.mu.Lock()
	if err == nil {
		c.keys = keys
		c.fetched = c.now()
	}
	call.err = err
	c.inflight = nil
	c.mu.Unlock()
	close(call.done)
	return err
}

func (c *keyCache) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBytes))
	if err != nil {
		return nil, fmt.Errorf("read jwks: %w", err)
	}
	return jwk.Parse(body)
}
