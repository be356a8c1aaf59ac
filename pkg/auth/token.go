// Package auth signs and verifies the HS256 access tokens that identify a
// buyer, distributor or admin to the order API.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/config"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
)

var signingMethod = jwt.SigningMethodHS256

var errNoActor = errors.New("token carries no usable actor")

// Subject is who a token is minted for.
type Subject struct {
	UserID  uuid.UUID
	Role    enums.ActorRole
	TokenID string
}

// Claims is the verified body of an access token.
type Claims struct {
	UserID uuid.UUID       `json:"user_id"`
	Role   enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims pass. The system role belongs to
// workers and is never carried by a bearer token.
func (c Claims) Validate() error {
	if c.UserID == uuid.Nil || !c.Role.IsValid() || c.Role == enums.ActorRoleSystem {
		return errNoActor
	}
	return nil
}

// MintAccessToken signs a token for sub that expires after the configured TTL.
func MintAccessToken(cfg config.JWTConfig, now time.Time, sub Subject) (string, error) {
	if err := checkKey(cfg); err != nil {
		return "", err
	}
	ttl := cfg.AccessTokenTTL()
	if ttl <= 0 {
		return "", errors.New("jwt expiration minutes must be positive")
	}

	id := strings.TrimSpace(sub.TokenID)
	if id == "" {
		id = uuid.NewString()
	}
	claims := Claims{
		UserID: sub.UserID,
		Role:   sub.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        id,
		},
	}
	if err := claims.Validate(); err != nil {
		return "", fmt.Errorf("minting for role %q: %w", sub.Role, err)
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry, then the actor.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*Claims, error) {
	if err := checkKey(cfg); err != nil {
		return nil, err
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func checkKey(cfg config.JWTConfig) error {
	switch {
	case cfg.Secret == "":
		return errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return errors.New("jwt issuer is required")
	}
	return nil
}
