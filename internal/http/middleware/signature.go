// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements webhook request authentication. Bot-facing endpoints
// are authenticated by an HMAC-SHA256 signature over the raw request body,
// carried hex-encoded in the X-Signature header. The comparison is constant
// time; the body is re-buffered so downstream binding still works.
package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/bigbob/go-verify-backend/internal/security"
)

// RequireSignature returns a Gin middleware rejecting requests whose
// X-Signature header is missing or does not verify against the raw body
// under secret. Rejections are 401 with the standard error envelope shape.
func RequireSignature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sig := c.GetHeader(security.SignatureHeader)
		if sig == "" {
			unauthorized(c, "missing signature")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			unauthorized(c, "unreadable body")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !security.Verify([]byte(secret), body, sig) {
			log.Warn().
				Str("path", c.Request.URL.Path).
				Str("remote_ip", c.ClientIP()).
				Msg("webhook signature rejected")
			unauthorized(c, "invalid signature")
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"message":    msg,
	})
}
