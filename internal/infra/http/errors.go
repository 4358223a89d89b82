package http

import (
	"errors"
	"log"
	"net/http"
	"time"

	"itsmd/internal/domain"
	"itsmd/internal/infra/auth/rbac"

	"github.com/gin-gonic/gin"
)

// errorEnvelope is the uniform error body of every guarded endpoint.
type errorEnvelope struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

func writeEnvelope(c *gin.Context, status int, message string) {
	writeEnvelopeCode(c, status, http.StatusText(status), message)
}

func writeEnvelopeCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorEnvelope{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    status,
		Error:     code,
		Message:   message,
	})
}

// writeError maps every internal failure onto the envelope. Unknown errors
// collapse to an opaque 500; the detail goes to the server log only.
func writeError(c *gin.Context, err error) {
	if authz, ok := rbac.IsAuthzError(err); ok {
		status := http.StatusForbidden
		if authz.Code == rbac.CodeNotAuthenticated {
			status = http.StatusUnauthorized
		}
		writeEnvelopeCode(c, status, authz.Code, authz.Message)
		return
	}
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated),
		errors.Is(err, domain.ErrMalformedCredential),
		errors.Is(err, domain.ErrDecodeFailure):
		writeEnvelope(c, http.StatusUnauthorized, "invalid or missing credentials")
	case errors.Is(err, domain.ErrDecoderUnavailable):
		writeEnvelope(c, http.StatusServiceUnavailable, "authentication temporarily unavailable")
	case errors.Is(err, domain.ErrForbidden):
		writeEnvelope(c, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		writeEnvelope(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeEnvelope(c, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		writeEnvelope(c, http.StatusConflict, err.Error())
	default:
		log.Printf("internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		writeEnvelope(c, http.StatusInternalServerError, "internal error")
	}
}
