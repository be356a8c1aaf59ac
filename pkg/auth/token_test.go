package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/config"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "packfinderz", ExpirationMinutes: 30}

func TestAccessTokenRoundTripCarriesActor(t *testing.T) {
	now := time.Now().UTC()
	user := uuid.New()

	token, err := MintAccessToken(testJWT, now, Subject{UserID: user, Role: enums.ActorRoleDistributor, TokenID: "access-1"})
	require.NoError(t, err)

	claims, err := ParseAccessToken(testJWT, token)
	require.NoError(t, err)
	require.Equal(t, user, claims.UserID)
	require.Equal(t, enums.ActorRoleDistributor, claims.Role)
	require.Equal(t, "access-1", claims.ID)
	require.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestParseAccessTokenRejects(t *testing.T) {
	valid, err := MintAccessToken(testJWT, time.Now(), Subject{UserID: uuid.New(), Role: enums.ActorRoleBuyer})
	require.NoError(t, err)
	expired, err := MintAccessToken(testJWT, time.Now().Add(-time.Hour), Subject{UserID: uuid.New(), Role: enums.ActorRoleAdmin})
	require.NoError(t, err)

	otherIssuer := testJWT
	otherIssuer.Issuer = "elsewhere"

	cases := map[string]struct {
		cfg   config.JWTConfig
		token string
		want  error
	}{
		"tampered signature": {testJWT, valid + "x", jwt.ErrTokenSignatureInvalid},
		"expired":            {testJWT, expired, jwt.ErrTokenExpired},
		"wrong issuer":       {otherIssuer, valid, jwt.ErrTokenInvalidIssuer},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAccessToken(tc.cfg, tc.token)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseAccessTokenRejectsSystemActor(t *testing.T) {
	// Sign directly; MintAccessToken refuses to produce this token.
	claims := Claims{
		UserID: uuid.New(),
		Role:   enums.ActorRoleSystem,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testJWT.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWT.Secret))
	require.NoError(t, err)

	_, err = ParseAccessToken(testJWT, token)
	require.True(t, errors.Is(err, errNoActor), "got %v", err)
}

func TestMintAccessTokenRefusesUnusableSubject(t *testing.T) {
	for name, sub := range map[string]Subject{
		"empty role":  {UserID: uuid.New()},
		"system role": {UserID: uuid.New(), Role: enums.ActorRoleSystem},
		"nil user":    {Role: enums.ActorRoleBuyer},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := MintAccessToken(testJWT, time.Now(), sub)
			require.ErrorIs(t, err, errNoActor)
		})
	}
	_, err := MintAccessToken(config.JWTConfig{Secret: "s", Issuer: "i"}, time.Now(), Subject{UserID: uuid.New(), Role: enums.ActorRoleBuyer})
	require.Error(t, err, "zero ttl")
}
