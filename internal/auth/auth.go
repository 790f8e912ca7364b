// Package auth validates the two caller identities the dispatch endpoint
// accepts: user bearer tokens (HS256 JWT, subject claim) and the shared
// cron secret header carried by scheduled invocations.
package auth

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// CronSecretHeader carries the shared secret on scheduled invocations.
const CronSecretHeader = "x-cron-secret"

// MinCronSecretLength is the weakest secret the service will run with.
const MinCronSecretLength = 32

var (
	ErrMissingToken   = errors.New("auth: missing bearer token")
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrWeakCronSecret = errors.New("auth: configured cron secret is too short")
	ErrBadCronSecret  = errors.New("auth: cron secret missing or mismatched")
)

// Verifier resolves the subject of HS256 bearer tokens.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// SubjectFromRequest extracts and validates the Authorization bearer token,
// returning its subject claim.
func (v *Verifier) SubjectFromRequest(r *http.Request) (string, error) {
	raw := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return "", ErrMissingToken
	}
	return v.Subject(strings.TrimSpace(raw[len("Bearer "):]))
}

// Subject validates a token string and returns its subject claim.
func (v *Verifier) Subject(tokenString string) (string, error) {
	if len(v.secret) == 0 {
		return "", fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Ensure HS* (HMAC) only
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %T", token.Method)
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: no subject claim", ErrInvalidToken)
	}
	return sub, nil
}

// CheckCronSecret validates the shared-secret header on a scheduled request.
// A configured secret shorter than MinCronSecretLength is a configuration
// error (the service refuses to run the sweep at all), distinct from a caller
// presenting the wrong secret.
func CheckCronSecret(r *http.Request, configured string) error {
	if len(configured) < MinCronSecretLength {
		return ErrWeakCronSecret
	}
	presented := r.Header.Get(CronSecretHeader)
	if presented == "" || !hmac.Equal([]byte(presented), []byte(configured)) {
		return ErrBadCronSecret
	}
	return nil
}
