package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	verifyIssuer     = "vibebiz"
	defaultVerifyTTL = 48 * time.Hour
)

// Verifier signs and validates email-verification tokens. These are
// stateless HS256 JWTs delivered out-of-band; consuming one flips a pending
// user to active. Sessions never use JWTs — they are opaque, revocable,
// hash-backed tokens.
type Verifier struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type verifyClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// VerifierOption configures Verifier behavior.
type VerifierOption func(*Verifier)

// WithVerifyTTL configures the verification token lifetime.
func WithVerifyTTL(ttl time.Duration) VerifierOption {
	return func(v *Verifier) {
		if ttl > 0 {
			v.ttl = ttl
		}
	}
}

// WithVerifyClock overrides the time source (useful for tests).
func WithVerifyClock(fn func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

// NewVerifier constructs a Verifier with the given HMAC secret.
func NewVerifier(secret string, opts ...VerifierOption) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("verification secret is required")
	}
	v := &Verifier{
		secret: []byte(secret),
		ttl:    defaultVerifyTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// IssueToken signs a verification token for the user's email address.
func (v *Verifier) IssueToken(userID, email string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrInvalidInput
	}
	now := v.now().UTC()
	claims := verifyClaims{
		Email: strings.TrimSpace(strings.ToLower(email)),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    verifyIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// ParseToken validates a verification token and returns the bound user id
// and email. Every failure collapses to ErrInvalidToken.
func (v *Verifier) ParseToken(token string) (userID, email string, err error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "", ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &verifyClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithIssuer(verifyIssuer), jwt.WithTimeFunc(v.now))
	if err != nil {
		return "", "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*verifyClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Email, nil
}
