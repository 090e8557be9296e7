package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"doiver/internal/doiver"
)

// TokenSource mints and validates the per-session anti-forgery token carried
// by the asynchronous fetch endpoint. Tokens are HMAC-SHA256 over an expiry
// timestamp, so validation is stateless: no server-side session table.
type TokenSource struct {
	secret []byte
	ttl    time.Duration
	clock  doiver.Clock
}

// NewTokenSource creates a TokenSource. secret must be non-empty.
func NewTokenSource(secret string, ttl time.Duration, clock doiver.Clock) (*TokenSource, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret must not be empty")
	}
	return &TokenSource{secret: []byte(secret), ttl: ttl, clock: clock}, nil
}

// Issue returns a fresh token valid for the configured TTL.
func (t *TokenSource) Issue() string {
	expiry := strconv.FormatInt(t.clock.Now().Add(t.ttl).Unix(), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(expiry + ":" + t.sign(expiry)))
}

// Validate reports whether the token is well-formed, unexpired, and carries
// a matching signature.
func (t *TokenSource) Validate(token string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return false
	}

	expiry, sig, ok := strings.Cut(string(raw), ":")
	if !ok {
		return false
	}

	unix, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil || t.clock.Now().Unix() > unix {
		return false
	}

	return hmac.Equal([]byte(sig), []byte(t.sign(expiry)))
}

func (t *TokenSource) sign(expiry string) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(expiry))
	return hex.EncodeToString(mac.Sum(nil))
}
