package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"opsglue/internal/resilience"
)

// TokenSource supplies the bearer token for outbound requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed API key.
type StaticToken string

// Token returns the key. An empty key yields an empty token.
func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// JWTSigner issues short-lived HS256 service tokens and reuses each token until
// it is close to expiry.
type JWTSigner struct {
	Secret   []byte
	Issuer   string
	Audience string
	Subject  string
	TTL      time.Duration

	now func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewJWTSigner creates a signer. A zero ttl defaults to five minutes.
func NewJWTSigner(secret []byte, issuer, audience, subject string, ttl time.Duration) *JWTSigner {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &JWTSigner{
		Secret:   secret,
		Issuer:   issuer,
		Audience: audience,
		Subject:  subject,
		TTL:      ttl,
		now:      time.Now,
	}
}

// Token returns a cached token or signs a new one once less than a fifth of the
// lifetime remains.
func (s *JWTSigner) Token(ctx context.Context) (string, error) {
	if len(s.Secret) == 0 {
		return "", resilience.NewConfigurationError("jwt signing secret is not set")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if s.token != "" && now.Add(s.TTL/5).Before(s.expires) {
		return s.token, nil
	}

	claims := jwt.RegisteredClaims{
		Issuer:    s.Issuer,
		Subject:   s.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
		ID:        uuid.New().String(),
	}
	if s.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}

	s.token = signed
	s.expires = now.Add(s.TTL)
	return signed, nil
}

func (s *JWTSigner) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
