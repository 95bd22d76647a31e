package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type discriminates the three credential kinds the service issues. A token
// presented for the wrong purpose is rejected even with a valid signature.
type Type string

const (
	TypeAccess        Type = "access"
	TypeRefresh       Type = "refresh"
	TypePasswordReset Type = "password_reset"
)

var (
	// ErrExpired means the token was once valid but its exp has passed.
	ErrExpired = errors.New("token expired")
	// ErrMalformed covers forged, truncated or wrongly-signed tokens.
	ErrMalformed = errors.New("token malformed or forged")
	// ErrWrongType means a structurally valid token of another kind was presented.
	ErrWrongType = errors.New("wrong token type")
)

// Claims is the signed payload. Subject, issuer, audience, iat, exp and jti
// live in RegisteredClaims; the rest is the snapshot embedded at issuance.
type Claims struct {
	TokenType   Type     `json:"type"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwtlib.RegisteredClaims
}

// Codec signs and verifies bearer credentials. It is purely functional over
// its inputs and the secrets fixed at construction; safe for unsynchronized
// concurrent use.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	audience      string
	now           func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock injects a time source, used by tests to simulate expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a Codec. refreshSecret may equal accessSecret; keeping
// them separate allows independent compromise recovery for refresh tokens.
func NewCodec(accessSecret, refreshSecret, issuer, audience string, opts ...Option) *Codec {
	c := &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		issuer:        issuer,
		audience:      audience,
		now:           time.Now,
	}
	if len(c.refreshSecret) == 0 {
		c.refreshSecret = c.accessSecret
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue signs a token of the given type. iat/exp/iss/aud are always set;
// refresh and password-reset tokens additionally get a unique jti so a
// single use can be detected.
func (c *Codec) Issue(claims Claims, typ Type, ttl time.Duration) (string, error) {
	now := c.now()
	claims.TokenType = typ
	claims.IssuedAt = jwtlib.NewNumericDate(now)
	claims.ExpiresAt = jwtlib.NewNumericDate(now.Add(ttl))
	claims.Issuer = c.issuer
	claims.Audience = jwtlib.ClaimStrings{c.audience}
	if typ != TypeAccess {
		claims.ID = uuid.New().String()
	}

	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return tok.SignedString(c.secretFor(typ))
}

// Verify parses and validates a token, requiring the expected type. The
// failure mode is one of ErrExpired, ErrMalformed or ErrWrongType.
func (c *Codec) Verify(raw string, want Type) (*Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(raw, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secretFor(want), nil
	},
		jwtlib.WithIssuer(c.issuer),
		jwtlib.WithAudience(c.audience),
		jwtlib.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.TokenType != want {
		return nil, ErrWrongType
	}
	return claims, nil
}

func (c *Codec) secretFor(typ Type) []byte {
	if typ == TypeRefresh {
		return c.refreshSecret
	}
	return c.accessSecret
}

// Fingerprint returns the SHA-256 hex digest of a raw token. Stores and the
// revocation registry key on fingerprints so raw token material never lands
// in the database or cache.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
