package handlers

import (
	"fmt"
	"time"

	"bridge-backend/internal/config"
	"bridge-backend/internal/dto"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims is re-exported for middleware use
type JWTClaims = dto.JWTClaims

// GenerateJWTToken issues a signed token for userID. Authentication itself
// lives in the platform's identity service; the bridge only verifies.
func GenerateJWTToken(userID string) (string, error) {
	expiry := 24 * time.Hour
	if config.AppConfig != nil && config.AppConfig.Auth.ExpiryHours > 0 {
		expiry = time.Duration(config.AppConfig.Auth.ExpiryHours) * time.Hour
	}

	claims := JWTClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret()))
}

// ValidateJWTToken verifies a token and returns its claims
func ValidateJWTToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret()), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		if claims.UserID == "" {
			return nil, fmt.Errorf("token has no user id")
		}
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func jwtSecret() string {
	if config.AppConfig != nil && config.AppConfig.Auth.JWTSecret != "" {
		return config.AppConfig.Auth.JWTSecret
	}
	return "dev-secret-do-not-use-in-production"
}
