package providers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTokenCacheReusesValidToken(t *testing.T) {
	cache := NewTokenCache(time.Minute)
	var calls int32
	fetch := func(context.Context) (Token, error) {
		atomic.AddInt32(&calls, 1)
		return Token{Value: "tok-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}

	for i := 0; i < 3; i++ {
		token, err := cache.Get(context.Background(), "azampay:client", fetch)
		if err != nil {
			t.Fatalf("get token: %v", err)
		}
		if token.Value != "tok-1" {
			t.Fatalf("unexpected token %q", token.Value)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one fetch, got %d", calls)
	}
}

func TestTokenCacheRefreshesInsideSkew(t *testing.T) {
	cache := NewTokenCache(time.Minute)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	values := []string{"old", "new"}
	var calls int
	fetch := func(context.Context) (Token, error) {
		v := values[calls]
		calls++
		return Token{Value: v, ExpiresAt: now.Add(90 * time.Second)}, nil
	}

	if token, _ := cache.Get(context.Background(), "k", fetch); token.Value != "old" {
		t.Fatalf("expected old token, got %q", token.Value)
	}
	now = now.Add(45 * time.Second)
	if token, _ := cache.Get(context.Background(), "k", fetch); token.Value != "new" {
		t.Fatalf("expected refresh inside skew, got %q", token.Value)
	}
}

func TestTokenCacheConcurrentMissesShareFetch(t *testing.T) {
	cache := NewTokenCache(0)
	var calls int32
	release := make(chan struct{})
	fetch := func(context.Context) (Token, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return Token{Value: "shared", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(context.Background(), "k", fetch); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected a single fetch, got %d", calls)
	}
}

func TestTokenCacheFetchSurvivesCancelledCaller(t *testing.T) {
	cache := NewTokenCache(0)
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetchErr := make(chan error, 1)
	fetch := func(ctx context.Context) (Token, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		fetchErr <- ctx.Err()
		return Token{Value: "shared", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := cache.Get(firstCtx, "k", fetch)
		firstDone <- err
	}()
	<-started

	secondDone := make(chan Token, 1)
	go func() {
		token, err := cache.Get(context.Background(), "k", fetch)
		if err != nil {
			t.Errorf("second caller: %v", err)
		}
		secondDone <- token
	}()

	cancelFirst()
	if err := <-firstDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected first caller to stop waiting, got %v", err)
	}

	close(release)
	if err := <-fetchErr; err != nil {
		t.Fatalf("fetch should not see the first caller's cancellation: %v", err)
	}
	if token := <-secondDone; token.Value != "shared" {
		t.Fatalf("expected shared token, got %q", token.Value)
	}
	if calls != 1 {
		t.Fatalf("expected a single fetch, got %d", calls)
	}
}

func TestTokenCacheFetchHasItsOwnDeadline(t *testing.T) {
	cache := NewTokenCache(0)
	cache.fetchTimeout = 10 * time.Millisecond
	_, err := cache.Get(context.Background(), "k", func(ctx context.Context) (Token, error) {
		<-ctx.Done()
		return Token{}, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected fetch deadline, got %v", err)
	}
}

func TestTokenCacheDoesNotCacheErrors(t *testing.T) {
	cache := NewTokenCache(0)
	boom := errors.New("boom")
	if _, err := cache.Get(context.Background(), "k", func(context.Context) (Token, error) { return Token{}, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	token, err := cache.Get(context.Background(), "k", func(context.Context) (Token, error) {
		return Token{Value: "ok"}, nil
	})
	if err != nil || token.Value != "ok" {
		t.Fatalf("expected recovery, got %v %v", token, err)
	}
}

func TestTokenCacheInvalidateOnlyMatchingValue(t *testing.T) {
	cache := NewTokenCache(0)
	_, _ = cache.Get(context.Background(), "k", func(context.Context) (Token, error) {
		return Token{Value: "current"}, nil
	})

	cache.Invalidate("k", Token{Value: "stale"})
	if _, ok := cache.lookup("k"); !ok {
		t.Fatal("stale invalidation should keep the current token")
	}
	cache.Invalidate("k", Token{Value: "current"})
	if _, ok := cache.lookup("k"); ok {
		t.Fatal("expected token to be dropped")
	}
}
