// Package security provides request authentication and token generation
// primitives: HMAC signing of webhook bodies and opaque one-time tokens.
//
// Signed endpoints authenticate by an HMAC-SHA256 over the raw request body,
// hex-encoded and compared in constant time. Verification happens before any
// engine state is touched.
package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// SignatureHeader is the HTTP header carrying the hex HMAC of the raw body.
const SignatureHeader = "X-Signature"

// Sign returns the hex-encoded HMAC-SHA256 of message under secret.
func Sign(secret, message []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the valid hex HMAC-SHA256 of message
// under secret, using a constant-time comparison.
func Verify(secret, message []byte, signature string) bool {
	expected := Sign(secret, message)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// GenerateToken returns an opaque token of the form "<prefix>-<random>",
// where random is 16 bytes of URL-safe base64. Uniqueness is probabilistic;
// callers that need hard uniqueness enforce it with a database constraint.
func GenerateToken(prefix string) string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is not recoverable
	}
	return prefix + "-" + base64.RawURLEncoding.EncodeToString(buf)
}
