// Package platform provides the PlatformClient stub adapter and the
// installation-access-token credential flow the (out-of-scope, per spec.md's
// Non-goals) real GitHub-App-backed implementation would use. Grounded on
// the teacher's signJWT/validateJWT pair (internal/server/handlers_auth.go),
// generalized from an HS256 session token to the RS256 GitHub App JWT a
// PlatformClient needs to mint before exchanging it for an installation
// token.
package platform

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AppCredentials holds a GitHub App's identity: its numeric app id and RSA
// private key (already parsed, see ParsePrivateKey), used to mint the short-lived app JWT that
// authenticates installation-token requests.
type AppCredentials struct {
	AppID      string
	PrivateKey *rsa.PrivateKey
}

// ParsePrivateKey parses a PEM-encoded RSA private key, as distributed by
// a GitHub App's settings page.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse RSA private key: %w", err)
	}
	return key, nil
}

// MintAppJWT signs a short-lived (10-minute) JWT identifying the app, the
// credential GitHub's installation-access-token endpoint expects.
func MintAppJWT(creds AppCredentials, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iat": now.Add(-30 * time.Second).Unix(), // clock-skew allowance
		"exp": now.Add(10 * time.Minute).Unix(),
		"iss": creds.AppID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(creds.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("sign app JWT: %w", err)
	}
	return signed, nil
}

// ValidateAppJWT parses and validates a signed app JWT against the app's
// public key, returning its claims. Used by tests and by any component that
// needs to introspect a minted token rather than trust it blindly.
func ValidateAppJWT(tokenString string, publicKey *rsa.PublicKey) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}
