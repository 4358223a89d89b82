package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"itsmd/internal/config"
	"itsmd/internal/domain"
	"itsmd/internal/infra/auth/identity"
	"itsmd/internal/infra/auth/oidc"
	"itsmd/internal/infra/ratelimit"
	"itsmd/internal/usecase"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubAuthenticator resolves fixed tokens to principals built through the
// real extractor, so authorities and raw claims look like production output.
type stubAuthenticator struct {
	principals map[string]domain.Principal
	calls      int
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (domain.Principal, error) {
	s.calls++
	principal, ok := s.principals[token]
	if !ok {
		return domain.Principal{}, domain.ErrDecodeFailure
	}
	return principal, nil
}

const (
	tokenAdmin    = "header.admin.sig"
	tokenCustomer = "header.customer.sig"
	tokenHandler  = "header.handler.sig"
)

func testAuthenticator() *stubAuthenticator {
	extractor := identity.NewExtractor(nil)
	build := func(username, code string) domain.Principal {
		return extractor.Build(oidc.ClaimSet{
			"sub":                "sub-" + username,
			"preferred_username": username,
			"userTyCode":         code,
		})
	}
	return &stubAuthenticator{principals: map[string]domain.Principal{
		tokenAdmin:    build("root", domain.CodeManager),
		tokenCustomer: build("cust", domain.CodeCustomer),
		tokenHandler:  build("hand", domain.CodeHandler),
	}}
}

func testServer(t *testing.T, cfg config.Config) (*Server, *stubAuthenticator) {
	t.Helper()
	authn := testAuthenticator()
	srv := NewServerWithDeps(cfg, ServerDeps{
		Authenticator:   authn,
		ServiceRequests: usecase.NewSrService(newMemorySrRepo()),
	})
	return srv, authn
}

func doRequest(srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestTokenFormatGuard(t *testing.T) {
	srv, authn := testServer(t, config.Config{})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"no dots", "Bearer abcdef", http.StatusUnauthorized},
		{"one dot", "Bearer aa.bb", http.StatusUnauthorized},
		{"lowercase scheme passes through", "bearer aa", http.StatusUnauthorized},
		{"basic scheme passes through", "Basic Zm9vOmJhcg==", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/protected/user-info", nil)
			req.Header.Set("Authorization", tc.header)
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("status %d want %d", w.Code, tc.status)
			}
			if strings.HasPrefix(tc.header, "Bearer ") {
				want := `{"error":"invalid_token","error_description":"Malformed JWT"}`
				if strings.TrimSpace(w.Body.String()) != want {
					t.Fatalf("unexpected body: %s", w.Body.String())
				}
			}
		})
	}
	if authn.calls != 0 {
		t.Fatalf("malformed tokens must never reach the authenticator, got %d calls", authn.calls)
	}
}

func TestPublicEndpointsNeedNoAuth(t *testing.T) {
	srv, authn := testServer(t, config.Config{})
	for _, path := range []string{"/healthz", "/api/public/health"} {
		w := doRequest(srv, http.MethodGet, path, "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, w.Code)
		}
	}
	if authn.calls != 0 {
		t.Fatalf("public endpoints must not authenticate, got %d calls", authn.calls)
	}
}

func TestProtectedEndpoints(t *testing.T) {
	srv, _ := testServer(t, config.Config{})

	cases := []struct {
		name     string
		path     string
		token    string
		status   int
		wantCode string
	}{
		{"no token", "/api/protected/user-info", "", http.StatusUnauthorized, "NOT_AUTHENTICATED"},
		{"bad token", "/api/protected/user-info", "x.y.z", http.StatusUnauthorized, ""},
		{"user info ok", "/api/protected/user-info", tokenCustomer, http.StatusOK, ""},
		{"admin allowed", "/api/protected/admin", tokenAdmin, http.StatusOK, ""},
		{"customer denied admin", "/api/protected/admin", tokenCustomer, http.StatusForbidden, "INSUFFICIENT_ROLE"},
		{"admin denied consultant", "/api/protected/consultant", tokenAdmin, http.StatusForbidden, "INSUFFICIENT_ROLE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(srv, http.MethodGet, tc.path, tc.token, "")
			if w.Code != tc.status {
				t.Fatalf("status %d want %d, body %s", w.Code, tc.status, w.Body.String())
			}
			if tc.wantCode != "" {
				var envelope errorEnvelope
				if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
					t.Fatalf("unmarshal envelope: %v", err)
				}
				if envelope.Error != tc.wantCode {
					t.Fatalf("error code %q want %q", envelope.Error, tc.wantCode)
				}
				if envelope.Status != tc.status || envelope.Timestamp == "" {
					t.Fatalf("incomplete envelope: %+v", envelope)
				}
			}
		})
	}
}

func TestUserInfoEchoesPrincipal(t *testing.T) {
	srv, _ := testServer(t, config.Config{})
	w := doRequest(srv, http.MethodGet, "/api/protected/user-info", tokenHandler, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	var info userInfoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if info.Username != "hand" || info.PrimaryTypeCode != domain.CodeHandler {
		t.Fatalf("unexpected user info: %+v", info)
	}
	if len(info.Authorities) == 0 || info.Authorities[0] != domain.RoleHandler {
		t.Fatalf("unexpected authorities: %v", info.Authorities)
	}
}

func TestSrEndToEnd(t *testing.T) {
	srv, _ := testServer(t, config.Config{})

	w := doRequest(srv, http.MethodPost, "/api/sr/create", tokenCustomer,
		`{"title":"printer down","content":"no response"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	var created srResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal created: %v", err)
	}
	if created.Stage != string(domain.StageRequest) || created.RequesterID != "cust" {
		t.Fatalf("unexpected created sr: %+v", created)
	}

	// Handler role passes the route guard and the business rule.
	w = doRequest(srv, http.MethodPut, "/api/sr/"+created.SrNo+"/receive", tokenHandler, "")
	if w.Code != http.StatusOK {
		t.Fatalf("receive: status %d body %s", w.Code, w.Body.String())
	}

	// Customer fails the receive route guard outright.
	w = doRequest(srv, http.MethodPut, "/api/sr/"+created.SrNo+"/receive", tokenCustomer, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("customer receive: status %d", w.Code)
	}

	// Admin passes the route guard but the R003 business rule denies.
	w = doRequest(srv, http.MethodPut, "/api/sr/"+created.SrNo+"/process", tokenAdmin, `{"details":"x"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("admin process: status %d body %s", w.Code, w.Body.String())
	}

	// Unknown SR is a 404.
	w = doRequest(srv, http.MethodGet, "/api/sr/SR-0000-000", tokenAdmin, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing sr: status %d", w.Code)
	}

	// Handler cannot delete; admin can.
	w = doRequest(srv, http.MethodDelete, "/api/sr/"+created.SrNo, tokenHandler, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("handler delete: status %d", w.Code)
	}
	w = doRequest(srv, http.MethodDelete, "/api/sr/"+created.SrNo, tokenAdmin, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("admin delete: status %d body %s", w.Code, w.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := testServer(t, config.Config{CORSAllowedOrigins: "https://app.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/sr/list", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow-origin %q", got)
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "3600" {
		t.Fatalf("max-age %q", got)
	}

	// Unlisted origins get no CORS headers at all.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unexpected CORS headers for unlisted origin")
	}
}

func TestRateLimit(t *testing.T) {
	authn := testAuthenticator()
	srv := NewServerWithDeps(config.Config{
		RateLimitRequests:      2,
		RateLimitWindowSeconds: 60,
	}, ServerDeps{
		Authenticator: authn,
		RateLimiter:   ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{}),
	})

	for i := 0; i < 2; i++ {
		w := doRequest(srv, http.MethodGet, "/api/protected/user-info", tokenAdmin, "")
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, w.Code)
		}
	}
	w := doRequest(srv, http.MethodGet, "/api/protected/user-info", tokenAdmin, "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}
