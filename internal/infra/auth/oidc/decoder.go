package oidc

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"itsmd/internal/config"
	"itsmd/internal/domain"
)

const (
	defaultHTTPTimeout = 5 * time.Second
	discoveryPath      = "/.well-known/openid-configuration"
)

// ClaimSet is the verified payload of a decoded token. Decode hands it out
// read-only; nothing in this package mutates it afterwards.
type ClaimSet map[string]any

// Decoder turns a raw bearer token into a verified ClaimSet. Provider
// metadata (the jwks_uri behind the issuer) is resolved on first use, not at
// construction, so the process can start and serve public endpoints while
// the provider is down. The resolution outcome, success or failure, is
// cached for the process lifetime: after a failed resolution every Decode
// fails fast with domain.ErrDecoderUnavailable instead of contacting the
// provider again.
type Decoder struct {
	issuer     string
	audience   string
	jwksURL    string
	clockSkew  time.Duration
	httpClient *http.Client
	now        func() time.Time

	initOnce sync.Once
	initErr  error
	jwks     *jwksCache
}

type Option func(*Decoder)

func WithHTTPClient(client *http.Client) Option {
	return func(d *Decoder) {
		if client != nil {
			d.httpClient = client
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Decoder) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDecoder(cfg config.Config, opts ...Option) *Decoder {
	d := &Decoder{
		issuer:     strings.TrimSpace(cfg.OIDCIssuerURL),
		audience:   strings.TrimSpace(cfg.OIDCAudience),
		jwksURL:    strings.TrimSpace(cfg.OIDCJWKSURL),
		clockSkew:  time.Duration(cfg.OIDCClockSkewSecs) * time.Second,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode verifies rawToken and returns its claims. Errors are normalized to
// exactly two kinds: domain.ErrDecoderUnavailable when provider metadata
// could not be resolved, domain.ErrDecodeFailure for every invalid-token
// condition.
func (d *Decoder) Decode(ctx context.Context, rawToken string) (ClaimSet, error) {
	d.initOnce.Do(func() { d.initErr = d.resolve(ctx) })
	if d.initErr != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecoderUnavailable, d.initErr)
	}

	tokenString := strings.TrimSpace(rawToken)
	if tokenString == "" {
		return nil, decodeFailure("empty token")
	}
	header, claims, signingInput, signature, err := parseCompact(tokenString)
	if err != nil {
		return nil, decodeFailuref("parse: %v", err)
	}
	if alg, _ := header["alg"].(string); alg != "RS256" {
		return nil, decodeFailure("unsupported algorithm")
	}
	if typ, ok := header["typ"].(string); ok && typ != "" && strings.ToUpper(typ) != "JWT" {
		return nil, decodeFailure("unexpected token type")
	}
	kid, _ := header["kid"].(string)
	pubKey, err := d.jwks.getKey(ctx, kid)
	if err != nil {
		if errors.Is(err, errKeyNotFound) {
			return nil, decodeFailure("unknown signing key")
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrDecoderUnavailable, err)
	}
	if err := verifyRS256(pubKey, signingInput, signature); err != nil {
		return nil, decodeFailure("signature mismatch")
	}
	if err := d.validateClaims(claims); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
	}
	return ClaimSet(claims), nil
}

// resolve determines the JWKS endpoint, via OIDC discovery unless the URL
// was configured directly. Called exactly once per process.
func (d *Decoder) resolve(ctx context.Context) error {
	if d.issuer == "" && d.jwksURL == "" {
		return errors.New("no issuer or jwks url configured")
	}
	jwksURL := d.jwksURL
	if jwksURL == "" {
		discovered, err := discoverJWKSURL(ctx, d.httpClient, d.issuer)
		if err != nil {
			return err
		}
		jwksURL = discovered
	}
	cache := newJWKSCache(jwksURL, d.httpClient)
	cache.now = d.now
	d.jwks = cache
	return nil
}

func discoverJWKSURL(ctx context.Context, client *http.Client, issuer string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultHTTPTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(issuer, "/")+discoveryPath, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.New("oidc discovery failed")
	}
	var payload struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.JWKSURI == "" {
		return "", errors.New("oidc discovery missing jwks_uri")
	}
	return payload.JWKSURI, nil
}

func parseCompact(token string) (map[string]any, map[string]any, string, []byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, nil, "", nil, errors.New("invalid token format")
	}
	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nil, "", nil, err
	}
	claimsBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, "", nil, err
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, nil, "", nil, err
	}
	var header map[string]any
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, nil, "", nil, err
	}
	var claims map[string]any
	if err := json.Unmarshal(claimsBytes, &claims); err != nil {
		return nil, nil, "", nil, err
	}
	return header, claims, parts[0] + "." + parts[1], signature, nil
}

func verifyRS256(pubKey *rsa.PublicKey, signingInput string, signature []byte) error {
	hash := sha256.Sum256([]byte(signingInput))
	return rsa.VerifyPKCS1v15(pubKey, crypto.SHA256, hash[:], signature)
}

func (d *Decoder) validateClaims(claims map[string]any) error {
	now := d.now()
	if d.issuer != "" {
		if iss, _ := claims["iss"].(string); iss != d.issuer {
			return errors.New("issuer mismatch")
		}
	}
	if d.audience != "" {
		if !audienceMatches(claims["aud"], d.audience) {
			return errors.New("audience mismatch")
		}
	}
	exp, ok := parseNumericDate(claims["exp"])
	if !ok {
		return errors.New("exp claim required")
	}
	if now.After(exp.Add(d.clockSkew)) {
		return errors.New("token expired")
	}
	if nbf, ok := parseNumericDate(claims["nbf"]); ok {
		if now.Add(d.clockSkew).Before(nbf) {
			return errors.New("token not yet valid")
		}
	}
	return nil
}

func parseNumericDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(n, 0), true
	default:
		return time.Time{}, false
	}
}

func audienceMatches(raw any, expected string) bool {
	switch v := raw.(type) {
	case string:
		return v == expected
	case []any:
		for _, entry := range v {
			if s, ok := entry.(string); ok && s == expected {
				return true
			}
		}
	}
	return false
}

func decodeFailure(reason string) error {
	return fmt.Errorf("%w: %s", domain.ErrDecodeFailure, reason)
}

func decodeFailuref(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrDecodeFailure, fmt.Sprintf(format, args...))
}
