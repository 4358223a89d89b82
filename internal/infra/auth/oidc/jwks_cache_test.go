package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

func testKeyPair(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestJWKSCache_FetchesOncePerTTL(t *testing.T) {
	key := testKeyPair(t)
	jwks := buildJWKS(t, &key.PublicKey, "kid-1")
	fetches := 0
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			fetches++
			return jsonResponse(http.StatusOK, jwks), nil
		}),
	}
	cache := newJWKSCache("https://jwks.test/keys", client)

	for i := 0; i < 3; i++ {
		if _, err := cache.getKey(context.Background(), "kid-1"); err != nil {
			t.Fatalf("get key %d: %v", i, err)
		}
	}
	if fetches != 1 {
		t.Fatalf("expected one fetch within ttl, got %d", fetches)
	}
}

func TestJWKSCache_ServesStaleWhileRefreshing(t *testing.T) {
	key := testKeyPair(t)
	jwks := buildJWKS(t, &key.PublicKey, "kid-1")
	var mu sync.Mutex
	fetches := 0
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			mu.Lock()
			fetches++
			mu.Unlock()
			return jsonResponse(http.StatusOK, jwks), nil
		}),
	}
	cache := newJWKSCache("https://jwks.test/keys", client)
	now := time.Now()
	cache.now = func() time.Time { return now }

	if _, err := cache.getKey(context.Background(), "kid-1"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	// Past the TTL but inside the stale window the cached key is still
	// served without blocking on the refresh.
	now = now.Add(defaultJWKSCacheTTL + time.Minute)
	if _, err := cache.getKey(context.Background(), "kid-1"); err != nil {
		t.Fatalf("stale get: %v", err)
	}

	// Past the stale window the entry is gone and a fetch is forced.
	now = now.Add(defaultJWKSMaxStale + time.Minute)
	if _, err := cache.getKey(context.Background(), "kid-1"); err != nil {
		t.Fatalf("refetch get: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if fetches < 2 {
		t.Fatalf("expected a forced refetch, got %d fetches", fetches)
	}
}

func TestJWKSCache_UnknownKidAfterRefresh(t *testing.T) {
	key := testKeyPair(t)
	jwks := buildJWKS(t, &key.PublicKey, "kid-1")
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, jwks), nil
		}),
	}
	cache := newJWKSCache("https://jwks.test/keys", client)

	if _, err := cache.getKey(context.Background(), "kid-unknown"); !errors.Is(err, errKeyNotFound) {
		t.Fatalf("expected key not found, got %v", err)
	}
}

func TestJWKSCache_FetchError(t *testing.T) {
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusInternalServerError, `{}`), nil
		}),
	}
	cache := newJWKSCache("https://jwks.test/keys", client)

	if _, err := cache.getKey(context.Background(), "kid-1"); !errors.Is(err, errJWKSFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}
