package providers

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultFetchTimeout bounds a shared token fetch, which outlives the caller
// that started it.
const defaultFetchTimeout = 30 * time.Second

// TokenCache holds provider access tokens per process, keyed by provider and
// credential id. Concurrent misses for the same key share one fetch.
type TokenCache struct {
	mu           sync.Mutex
	tokens       map[string]Token
	group        singleflight.Group
	skew         time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
}

// NewTokenCache builds a cache that treats tokens as expired skew before their expiry.
func NewTokenCache(skew time.Duration) *TokenCache {
	return &TokenCache{
		tokens:       map[string]Token{},
		skew:         skew,
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
	}
}

// CacheKey builds the cache key for a provider credential.
func CacheKey(provider, clientID string) string {
	return provider + ":" + clientID
}

// Get returns a valid cached token or fetches a new one. The fetch is detached
// from ctx so one caller giving up does not fail the others waiting on it;
// ctx only bounds how long this caller waits.
func (c *TokenCache) Get(ctx context.Context, key string, fetch func(context.Context) (Token, error)) (Token, error) {
	if token, ok := c.lookup(key); ok {
		return token, nil
	}

	results := c.group.DoChan(key, func() (any, error) {
		if token, ok := c.lookup(key); ok {
			return token, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		token, err := fetch(fetchCtx)
		if err != nil {
			return Token{}, err
		}
		c.mu.Lock()
		c.tokens[key] = token
		c.mu.Unlock()
		return token, nil
	})

	select {
	case <-ctx.Done():
		return Token{}, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	}
}

// Invalidate drops the cached token for key when it still holds the given value,
// so a token refreshed concurrently is not evicted.
func (c *TokenCache) Invalidate(key string, token Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.tokens[key]; ok && (token.Value == "" || current.Value == token.Value) {
		delete(c.tokens, key)
	}
}

func (c *TokenCache) lookup(key string) (Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	token, ok := c.tokens[key]
	if !ok || !token.ValidAt(c.now(), c.skew) {
		return Token{}, false
	}
	return token, true
}
