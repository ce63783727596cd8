package firebase

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// DevTokenIssuer mints short-lived HS256 tokens for local development, where
// there is no Firebase project to verify against. Never enabled outside the
// development environment.
type DevTokenIssuer struct {
	secret []byte
	expiry time.Duration
}

func NewDevTokenIssuer(secret string, expirySeconds int64) *DevTokenIssuer {
	return &DevTokenIssuer{
		secret: []byte(secret),
		expiry: time.Duration(expirySeconds) * time.Second,
	}
}

func (d *DevTokenIssuer) Issue(uid string) (string, error) {
	claims := jwt.MapClaims{
		"sub": uid,
		"iss": "fanlink-dev",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(d.expiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(d.secret)
}

// Verify returns the uid from a dev token or an error for anything that is
// not a valid, unexpired token signed with the dev secret.
func (d *DevTokenIssuer) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return d.secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	uid, _ := claims["sub"].(string)
	if uid == "" {
		return "", fmt.Errorf("token has no subject")
	}

	return uid, nil
}
