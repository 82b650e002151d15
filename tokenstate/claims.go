package tokenstate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var parser = jwt.NewParser()

// DecodeClaims decodes the claims of a JWT without verifying its signature.
func DecodeClaims(token string) (jwt.MapClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("tokenstate: token is empty")
	}

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("tokenstate: failed to decode token: %w", err)
	}

	return claims, nil
}

// Expiry returns the exp claim of token. ok is false when the token cannot be
// decoded or has no usable exp claim.
func Expiry(token string) (time.Time, bool) {
	claims, err := DecodeClaims(token)
	if err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}

// BootstrapClaims extracts the issuer and subject of a refresh token.
//
// The token is decoded, not verified. The values are only used to derive the
// token endpoint and client ID when they are not configured explicitly.
func BootstrapClaims(refreshToken string) (issuer, subject string, err error) {
	claims, err := DecodeClaims(refreshToken)
	if err != nil {
		return "", "", err
	}

	issuer, err = claims.GetIssuer()
	if err != nil {
		return "", "", fmt.Errorf("tokenstate: invalid iss claim: %w", err)
	}

	subject, err = claims.GetSubject()
	if err != nil {
		return "", "", fmt.Errorf("tokenstate: invalid sub claim: %w", err)
	}

	return issuer, subject, nil
}
