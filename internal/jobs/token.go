package jobs

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL is the lifetime of a job stream token (SPEC_FULL.md §5.3).
const tokenTTL = 2 * time.Hour

// refreshWindow is how close to expiry a token must be for NeedsRefresh to
// report true.
const refreshWindow = 30 * time.Minute

type jobClaims struct {
	JobID string `json:"jobId"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and validates the short-lived bearer tokens a client
// presents when opening a job's progress stream.
type TokenIssuer struct {
	secret []byte
}

// NewTokenIssuer builds a TokenIssuer signing with an HMAC secret.
func NewTokenIssuer(secret []byte) *TokenIssuer {
	return &TokenIssuer{secret: secret}
}

// Issue mints a token for jobID valid for tokenTTL.
func (t *TokenIssuer) Issue(jobID string) (string, time.Time, error) {
	expires := time.Now().Add(tokenTTL)
	claims := jobClaims{
		JobID: jobID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(t.secret)
	return signed, expires, err
}

// Validate parses token and returns the job ID it was issued for.
func (t *TokenIssuer) Validate(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jobClaims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jobClaims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("jobs: invalid token")
	}
	return claims.JobID, nil
}

// NeedsRefresh reports whether a token expiring at expiresAt is inside its
// refresh window.
func NeedsRefresh(expiresAt time.Time) bool {
	return time.Until(expiresAt) <= refreshWindow
}
