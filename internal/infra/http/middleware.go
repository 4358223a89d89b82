package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"itsmd/internal/domain"
	"itsmd/internal/infra/auth/identity"
	"itsmd/internal/infra/auth/oidc"

	"github.com/gin-gonic/gin"
)

const (
	principalContextKey    = "principal"
	userTypeCodeContextKey = "userTyCode"

	bearerPrefix = "Bearer "
)

// malformedTokenBody is the fixed response of the format guard. Field order
// is part of the contract.
type malformedTokenBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// tokenFormatGuard rejects Bearer tokens that are not JWT-shaped before any
// decoding happens, so the provider is never contacted for garbage input.
// Absent headers and other schemes pass through untouched. The prefix match
// is case sensitive.
func (s *Server) tokenFormatGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			c.Next()
			return
		}
		token := header[len(bearerPrefix):]
		if strings.Count(token, ".") < 2 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, malformedTokenBody{
				Error:            "invalid_token",
				ErrorDescription: "Malformed JWT",
			})
			return
		}
		c.Next()
	}
}

// authenticate resolves the bearer token into a Principal and stores it,
// together with the primary user-type code, in the request context. A
// missing token is not an error here; route guards decide whether anonymous
// access is acceptable.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}
		if s.authenticator == nil {
			writeEnvelope(c, http.StatusServiceUnavailable, "authentication is not configured")
			c.Abort()
			return
		}
		principal, err := s.authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(principalContextKey, principal)
		c.Set(userTypeCodeContextKey, identity.PrimaryTypeCode(oidc.ClaimSet(principal.RawClaims)))
		c.Next()
	}
}

// guard produces the per-route enforcement middleware. The requirement is
// declared at route registration and checked before the handler runs.
func (s *Server) guard(requirement domain.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, _ := principalFrom(c)
		if err := s.authorizer.Authorize(principal, requirement); err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

func principalFrom(c *gin.Context) (domain.Principal, bool) {
	raw, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := raw.(domain.Principal)
	return principal, ok
}

func userTypeCodeFrom(c *gin.Context) string {
	return c.GetString(userTypeCodeContextKey)
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowed := splitOrigins(s.cfg.CORSAllowedOrigins)
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || !originAllowed(allowed, origin) {
			c.Next()
			return
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Expose-Headers", "Authorization")
		c.Header("Vary", "Origin")
		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Max-Age", "3600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func splitOrigins(raw string) []string {
	var out []string
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func originAllowed(allowed []string, origin string) bool {
	for _, candidate := range allowed {
		if candidate == "*" || candidate == origin {
			return true
		}
	}
	return false
}

// rateLimit enforces a fixed window per client IP, widened with the subject
// when configured. Limiter errors fail open.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || s.limitRequests <= 0 {
			c.Next()
			return
		}
		key := "ip:" + c.ClientIP()
		if s.limitWithSubject {
			if principal, ok := principalFrom(c); ok && principal.Subject != "" {
				key += ":subject:" + principal.Subject
			}
		}
		decision, err := s.limiter.Allow(c.Request.Context(), key, s.limitRequests, s.limitWindow)
		if err != nil {
			c.Next()
			return
		}
		writeRateLimitHeaders(c, decision)
		if !decision.Allowed {
			writeEnvelope(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

func writeRateLimitHeaders(c *gin.Context, decision domain.RateLimitDecision) {
	if decision.Limit > 0 {
		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
	}
	if decision.Remaining >= 0 {
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
	if !decision.ResetAt.IsZero() {
		c.Header("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if !decision.Allowed {
			retryAfter := int64(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		}
	}
}
