package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleWaiter  Role = "waiter"
	RoleChef    Role = "chef"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleWaiter, RoleChef:
		return true
	}
	return false
}

var (
	ErrMissingSecret  = errors.New("JWT_SECRET is not set")
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingTenant  = errors.New("token has no restaurant")
	ErrUnknownRole    = errors.New("token has unknown role")
	ErrUnexpectedAlgo = errors.New("unexpected signing method")
)

// Claims is the session credential issued by the authentication service.
type Claims struct {
	UserID       int64  `json:"id"`
	RestaurantID int64  `json:"restaurantId"`
	Role         Role   `json:"role"`
	Username     string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the verified caller derived from Claims.
type Principal struct {
	UserID       int64
	RestaurantID int64
	Role         Role
}

// ParseToken verifies an HS256 token and returns the caller it identifies.
func ParseToken(tokenStr, secret string) (*Principal, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrUnexpectedAlgo
			}
			return []byte(secret), nil
		},
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.RestaurantID == 0 {
		return nil, ErrMissingTenant
	}
	if !claims.Role.Valid() {
		return nil, ErrUnknownRole
	}

	return &Principal{
		UserID:       claims.UserID,
		RestaurantID: claims.RestaurantID,
		Role:         claims.Role,
	}, nil
}
