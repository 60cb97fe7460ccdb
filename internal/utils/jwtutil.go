package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	RoleStaff = "STAFF"
	RoleAdmin = "ADMIN"
)

var ErrInvalidToken = errors.New("Invalid Token")

type Claims struct {
	UserId    int64    `json:"user_id"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles,omitempty"`
	Superuser bool     `json:"is_superuser,omitempty"`
	jwt.RegisteredClaims
}

// IsStaff reports whether the holder may use staff endpoints.
func (c *Claims) IsStaff() bool {
	if c.Superuser {
		return true
	}
	for _, r := range c.Roles {
		if r == RoleStaff || r == RoleAdmin {
			return true
		}
	}
	return false
}

func GenerateToken(secret []byte, userID int64, username string, roles []string, superuser bool, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().Add(ttl)
	claims := &Claims{
		UserId:    userID,
		Username:  username,
		Roles:     roles,
		Superuser: superuser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   username,
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(secret)
	return s, exp, err
}

func ParseToken(secret []byte, tokenStr string) (*Claims, error) {
	if len(secret) == 0 {
		return nil, errors.New("JWT secret is not configured")
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
