package handlers

import (
	"testing"
	"time"

	"bridge-backend/internal/dto"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWTToken("user-42")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateJWTToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, "user-42", claims.Subject)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := ValidateJWTToken("not.a.token")
	require.Error(t, err)

	_, err = ValidateJWTToken("")
	require.Error(t, err)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	claims := dto.JWTClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("attacker-secret"))
	require.NoError(t, err)

	_, err = ValidateJWTToken(forged)
	require.Error(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	claims := dto.JWTClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret()))
	require.NoError(t, err)

	_, err = ValidateJWTToken(expired)
	require.Error(t, err)
}

func TestValidateRejectsEmptyUserID(t *testing.T) {
	claims := dto.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	anonymous, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret()))
	require.NoError(t, err)

	_, err = ValidateJWTToken(anonymous)
	require.Error(t, err)
}
