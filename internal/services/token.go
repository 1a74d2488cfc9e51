package services

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// TokenIssuer mints opaque bearer tokens.
type TokenIssuer interface {
	// Issue returns a fresh, unpredictable token.
	Issue() (string, error)
	// Check rejects strings that cannot be a token minted by this issuer.
	Check(token string) error
}

// JWTTokenIssuer signs tokens as HS256 JWTs. The claims carry only a random
// id and the issue time; nothing identifies the user.
type JWTTokenIssuer struct {
	secret []byte
}

// NewJWTTokenIssuer creates a JWTTokenIssuer signing with secret.
func NewJWTTokenIssuer(secret string) *JWTTokenIssuer {
	return &JWTTokenIssuer{secret: []byte(secret)}
}

// Issue mints a new signed token.
func (i *JWTTokenIssuer) Issue() (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Id:       uuid.New().String(),
		IssuedAt: time.Now().Unix(),
	})

	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// Check verifies the token signature and algorithm.
func (i *JWTTokenIssuer) Check(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.StandardClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}
