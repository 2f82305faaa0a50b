package dto

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the authenticated user through the request lifecycle
type JWTClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
