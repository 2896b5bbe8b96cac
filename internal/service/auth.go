package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomerJWTClaims are the claims minted by the user-management service.
// This service only validates them, it never issues tokens in production.
type CustomerJWTClaims struct {
	CustomerID uint   `json:"customer_id"`
	Email      string `json:"email"`
	jwt.RegisteredClaims
}

// IssueCustomerToken signs a customer token. Used by the seed command and
// tests to exercise the authenticated surface without the upstream service.
func IssueCustomerToken(secretKey string, customerID uint, email string, expireHours int) (string, error) {
	if secretKey == "" {
		return "", fmt.Errorf("%w: jwt secret is required", ErrValidation)
	}
	if customerID == 0 {
		return "", fmt.Errorf("%w: customer id is required", ErrValidation)
	}
	if expireHours <= 0 {
		expireHours = 24
	}
	now := time.Now()
	claims := CustomerJWTClaims{
		CustomerID: customerID,
		Email:      email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireHours) * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secretKey))
}
