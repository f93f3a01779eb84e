package auth

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// IssueToken mints an HS256 bearer token whose subject is the caller's
// account address.
func IssueToken(secret, address string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": address,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("issueToken: error signing token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates the token and returns the account address it was
// issued for.
func VerifyToken(secret, tokenString string) (address string, ok bool) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, valid := t.Method.(*jwt.SigningMethodHMAC); !valid {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return "", false
	}

	claims, valid := parsed.Claims.(jwt.MapClaims)
	if !valid {
		return "", false
	}

	address, ok = claims["sub"].(string)
	if !ok || address == "" {
		return "", false
	}
	return address, true
}
