// Package appauth authenticates as a GitHub App and exchanges the App
// identity for an installation access token.
package appauth

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTLifetime is the longest lifetime GitHub accepts for an App JWT.
const JWTLifetime = 600 * time.Second

func ParsePrivateKey(pem []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parse app private key: %w", err)
	}
	return key, nil
}

// MintJWT signs an RS256 App JWT issued at now.
func MintJWT(key *rsa.PrivateKey, appID string, now time.Time) (string, error) {
	now = now.Truncate(time.Second)
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(JWTLifetime)),
		Issuer:    appID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign app jwt: %w", err)
	}
	return signed, nil
}
