// Package authtest mints credentials shaped like the ones the marketplace
// backend issues, for use in tests.
package authtest

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const secret = "authtest-secret"

// Credential signs claims as an HS256 credential.
func Credential(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign credential: %v", err)
	}
	return signed
}

// Flat builds a flat-shaped credential expiring after ttl.
func Flat(t testing.TB, id int64, role string, storeID any, ttl time.Duration) string {
	t.Helper()
	return Credential(t, jwt.MapClaims{
		"user_id":  id,
		"name":     "Test User",
		"role":     role,
		"store_id": storeID,
		"exp":      time.Now().Add(ttl).Unix(),
	})
}

// Nested builds a credential with identity fields under "user".
func Nested(t testing.TB, id int64, role string, storeID any, ttl time.Duration) string {
	t.Helper()
	return Credential(t, jwt.MapClaims{
		"user": map[string]any{
			"id":        id,
			"full_name": "Test User",
			"role":      role,
			"store_id":  storeID,
		},
		"exp": time.Now().Add(ttl).Unix(),
	})
}
