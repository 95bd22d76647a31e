package token

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec(opts ...Option) *Codec {
	return NewCodec("access-secret", "refresh-secret",
		"event-planner-auth", "event-planner-users", opts...)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	c := testCodec()

	raw, err := c.Issue(Claims{
		Email:            "alice@example.com",
		Roles:            []string{"organizer"},
		Permissions:      []string{"events:read"},
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "user-1"},
	}, TypeAccess, time.Hour)
	require.NoError(t, err)

	claims, err := c.Verify(raw, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, []string{"organizer"}, claims.Roles)
	assert.Equal(t, []string{"events:read"}, claims.Permissions)
	assert.Equal(t, TypeAccess, claims.TokenType)
	// Access tokens carry no jti; only single-use kinds need one.
	assert.Empty(t, claims.ID)
}

func TestNonAccessTokensCarryUniqueJTI(t *testing.T) {
	c := testCodec()

	a, err := c.Issue(Claims{RegisteredClaims: jwtlib.RegisteredClaims{Subject: "u"}}, TypeRefresh, time.Hour)
	require.NoError(t, err)
	b, err := c.Issue(Claims{RegisteredClaims: jwtlib.RegisteredClaims{Subject: "u"}}, TypeRefresh, time.Hour)
	require.NoError(t, err)

	ca, err := c.Verify(a, TypeRefresh)
	require.NoError(t, err)
	cb, err := c.Verify(b, TypeRefresh)
	require.NoError(t, err)
	assert.NotEmpty(t, ca.ID)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestExpiredTokenRejected(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	c := testCodec(WithClock(func() time.Time { return clock() }))

	raw, err := c.Issue(Claims{RegisteredClaims: jwtlib.RegisteredClaims{Subject: "u"}}, TypeAccess, time.Hour)
	require.NoError(t, err)

	_, err = c.Verify(raw, TypeAccess)
	require.NoError(t, err)

	clock = func() time.Time { return now.Add(time.Hour + time.Minute) }
	_, err = c.Verify(raw, TypeAccess)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestWrongTypeRejected(t *testing.T) {
	// Same secret for every kind, so the type claim alone must separate them.
	c := NewCodec("one-secret", "one-secret", "event-planner-auth", "event-planner-users")

	raw, err := c.Issue(Claims{RegisteredClaims: jwtlib.RegisteredClaims{Subject: "u"}}, TypePasswordReset, time.Hour)
	require.NoError(t, err)

	_, err = c.Verify(raw, TypePasswordReset)
	require.NoError(t, err)

	_, err = c.Verify(raw, TypeAccess)
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestForgedAndCrossSecretTokensRejected(t *testing.T) {
	c := testCodec()

	_, err := c.Verify("not.a.token", TypeAccess)
	assert.ErrorIs(t, err, ErrMalformed)

	// Refresh tokens are signed with the refresh secret; presenting one as
	// an access token fails the signature check before the type check.
	raw, err := c.Issue(Claims{RegisteredClaims: jwtlib.RegisteredClaims{Subject: "u"}}, TypeRefresh, time.Hour)
	require.NoError(t, err)
	_, err = c.Verify(raw, TypeAccess)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestIssuerAndAudienceBound(t *testing.T) {
	c := testCodec()
	other := NewCodec("access-secret", "refresh-secret", "someone-else", "event-planner-users")

	raw, err := other.Issue(Claims{RegisteredClaims: jwtlib.RegisteredClaims{Subject: "u"}}, TypeAccess, time.Hour)
	require.NoError(t, err)

	_, err = c.Verify(raw, TypeAccess)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFingerprintIsStableAndOpaque(t *testing.T) {
	fp := Fingerprint("raw-token-material")
	assert.Equal(t, Fingerprint("raw-token-material"), fp)
	assert.NotEqual(t, Fingerprint("other"), fp)
	assert.Len(t, fp, 64)
	assert.NotContains(t, fp, "raw-token")
}
