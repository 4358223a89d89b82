package oidc

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"itsmd/internal/config"
	"itsmd/internal/domain"
)

func TestDecode_ValidToken(t *testing.T) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwksURL := "https://jwks.test/keys"
	jwks := buildJWKS(t, &privKey.PublicKey, "kid-1")
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.String() == jwksURL {
				return jsonResponse(http.StatusOK, jwks), nil
			}
			return jsonResponse(http.StatusNotFound, `{}`), nil
		}),
	}

	cfg := config.Config{
		OIDCIssuerURL:     "https://issuer.test",
		OIDCAudience:      "itsm-api",
		OIDCJWKSURL:       jwksURL,
		OIDCClockSkewSecs: 60,
	}
	decoder := NewDecoder(cfg, WithHTTPClient(client))

	now := time.Now().UTC()
	claims := map[string]any{
		"iss":        cfg.OIDCIssuerURL,
		"aud":        cfg.OIDCAudience,
		"sub":        "user-1",
		"userTyCode": "R003",
		"exp":        now.Add(5 * time.Minute).Unix(),
		"nbf":        now.Add(-1 * time.Minute).Unix(),
	}
	token := signToken(t, privKey, "kid-1", claims)

	decoded, err := decoder.Decode(context.Background(), token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sub, _ := decoded["sub"].(string); sub != "user-1" {
		t.Fatalf("unexpected subject: %v", decoded["sub"])
	}
	if code, _ := decoded["userTyCode"].(string); code != "R003" {
		t.Fatalf("unexpected user type code: %v", decoded["userTyCode"])
	}
}

func TestDecode_DiscoversJWKSURL(t *testing.T) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	issuer := "https://issuer.test"
	jwksURL := "https://issuer.test/keys"
	jwks := buildJWKS(t, &privKey.PublicKey, "kid-1")
	discoveryCalls := 0
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			switch req.URL.String() {
			case issuer + "/.well-known/openid-configuration":
				discoveryCalls++
				return jsonResponse(http.StatusOK, `{"jwks_uri":"`+jwksURL+`"}`), nil
			case jwksURL:
				return jsonResponse(http.StatusOK, jwks), nil
			}
			return jsonResponse(http.StatusNotFound, `{}`), nil
		}),
	}

	cfg := config.Config{OIDCIssuerURL: issuer, OIDCClockSkewSecs: 60}
	decoder := NewDecoder(cfg, WithHTTPClient(client))

	now := time.Now().UTC()
	token := signToken(t, privKey, "kid-1", map[string]any{
		"iss": issuer,
		"sub": "user-1",
		"exp": now.Add(5 * time.Minute).Unix(),
	})
	if _, err := decoder.Decode(context.Background(), token); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := decoder.Decode(context.Background(), token); err != nil {
		t.Fatalf("second decode: %v", err)
	}
	if discoveryCalls != 1 {
		t.Fatalf("expected one discovery call, got %d", discoveryCalls)
	}
}

func TestDecode_DiscoveryFailureCached(t *testing.T) {
	issuer := "https://issuer.test"
	calls := 0
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			calls++
			return nil, errors.New("connection refused")
		}),
	}

	decoder := NewDecoder(config.Config{OIDCIssuerURL: issuer}, WithHTTPClient(client))

	if _, err := decoder.Decode(context.Background(), "a.b.c"); !errors.Is(err, domain.ErrDecoderUnavailable) {
		t.Fatalf("expected decoder unavailable, got %v", err)
	}
	if _, err := decoder.Decode(context.Background(), "a.b.c"); !errors.Is(err, domain.ErrDecoderUnavailable) {
		t.Fatalf("expected cached decoder unavailable, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected provider contacted once, got %d calls", calls)
	}
}

func TestDecode_MalformedToken(t *testing.T) {
	jwksURL := "https://jwks.test/keys"
	fetches := 0
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			fetches++
			return jsonResponse(http.StatusOK, `{"keys":[]}`), nil
		}),
	}
	decoder := NewDecoder(config.Config{OIDCJWKSURL: jwksURL}, WithHTTPClient(client))

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"two segments", "aaaa.bbbb"},
		{"bad base64", "!!.!!.!!"},
		{"garbage json", base64.RawURLEncoding.EncodeToString([]byte("nope")) + ".e30.e30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decoder.Decode(context.Background(), tc.token)
			if !errors.Is(err, domain.ErrDecodeFailure) {
				t.Fatalf("expected decode failure, got %v", err)
			}
		})
	}
	if fetches != 0 {
		t.Fatalf("expected no key fetch for malformed tokens, got %d", fetches)
	}
}

func TestDecode_InvalidClaims(t *testing.T) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwksURL := "https://jwks.test/keys"
	jwks := buildJWKS(t, &privKey.PublicKey, "kid-1")
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, jwks), nil
		}),
	}

	cfg := config.Config{
		OIDCIssuerURL:     "https://issuer.test",
		OIDCAudience:      "itsm-api",
		OIDCJWKSURL:       jwksURL,
		OIDCClockSkewSecs: 0,
	}
	decoder := NewDecoder(cfg, WithHTTPClient(client))

	now := time.Now().UTC()
	cases := []struct {
		name   string
		claims map[string]any
	}{
		{
			name: "missing exp",
			claims: map[string]any{
				"iss": cfg.OIDCIssuerURL,
				"aud": cfg.OIDCAudience,
			},
		},
		{
			name: "expired",
			claims: map[string]any{
				"iss": cfg.OIDCIssuerURL,
				"aud": cfg.OIDCAudience,
				"exp": now.Add(-5 * time.Minute).Unix(),
			},
		},
		{
			name: "nbf in future",
			claims: map[string]any{
				"iss": cfg.OIDCIssuerURL,
				"aud": cfg.OIDCAudience,
				"exp": now.Add(5 * time.Minute).Unix(),
				"nbf": now.Add(5 * time.Minute).Unix(),
			},
		},
		{
			name: "wrong issuer",
			claims: map[string]any{
				"iss": "https://wrong",
				"aud": cfg.OIDCAudience,
				"exp": now.Add(5 * time.Minute).Unix(),
			},
		},
		{
			name: "wrong audience",
			claims: map[string]any{
				"iss": cfg.OIDCIssuerURL,
				"aud": "wrong",
				"exp": now.Add(5 * time.Minute).Unix(),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token := signToken(t, privKey, "kid-1", tc.claims)
			_, err := decoder.Decode(context.Background(), token)
			if !errors.Is(err, domain.ErrDecodeFailure) {
				t.Fatalf("expected decode failure, got %v", err)
			}
		})
	}
}

func TestDecode_UnknownSigningKey(t *testing.T) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwksURL := "https://jwks.test/keys"
	jwks := buildJWKS(t, &privKey.PublicKey, "kid-1")
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, jwks), nil
		}),
	}
	decoder := NewDecoder(config.Config{OIDCJWKSURL: jwksURL}, WithHTTPClient(client))

	now := time.Now().UTC()
	token := signToken(t, privKey, "kid-other", map[string]any{
		"exp": now.Add(5 * time.Minute).Unix(),
	})
	_, err = decoder.Decode(context.Background(), token)
	if !errors.Is(err, domain.ErrDecodeFailure) {
		t.Fatalf("expected decode failure for unknown kid, got %v", err)
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func buildJWKS(t *testing.T, key *rsa.PublicKey, kid string) string {
	t.Helper()
	n := base64.RawURLEncoding.EncodeToString(key.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(bigIntToBytes(key.E))
	payload := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"alg": "RS256",
				"use": "sig",
				"n":   n,
				"e":   e,
			},
		},
	}
	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	return string(out)
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims map[string]any) string {
	t.Helper()
	header := map[string]any{
		"alg": "RS256",
		"typ": "JWT",
		"kid": kid,
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	claimsBytes, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	seg0 := base64.RawURLEncoding.EncodeToString(headerBytes)
	seg1 := base64.RawURLEncoding.EncodeToString(claimsBytes)
	signingInput := seg0 + "." + seg1
	hash := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hash[:])
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func bigIntToBytes(value int) []byte {
	out := []byte{}
	for v := value; v > 0; v >>= 8 {
		out = append([]byte{byte(v & 0xff)}, out...)
	}
	if len(out) == 0 {
		return []byte{0}
	}
	return out
}
