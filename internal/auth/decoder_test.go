package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/marketplace-session/internal/auth/authtest"
	"github.com/spec-kit/marketplace-session/internal/domain"
	apperrors "github.com/spec-kit/marketplace-session/pkg/util/errorutil"
)

func TestDecodeCredential_FlatAndNestedShapesMatch(t *testing.T) {
	flat, err := DecodeCredential(authtest.Flat(t, 42, "seller", 7, time.Hour))
	require.NoError(t, err)
	nested, err := DecodeCredential(authtest.Nested(t, 42, "seller", 7, time.Hour))
	require.NoError(t, err)

	assert.Equal(t, flat.Identity(), nested.Identity())
	assert.Equal(t, int64(42), flat.IdentityID)
	assert.Equal(t, "Test User", flat.DisplayName)
	assert.Equal(t, domain.RoleSeller, flat.Role)
	require.NotNil(t, flat.StoreID)
	assert.Equal(t, int64(7), *flat.StoreID)
}

func TestDecodeCredential_NullStoreID(t *testing.T) {
	claims, err := DecodeCredential(authtest.Flat(t, 1, "customer", nil, time.Hour))
	require.NoError(t, err)

	assert.Nil(t, claims.StoreID)
	assert.Nil(t, claims.Identity().StoreID)
}

func TestDecodeCredential_AlternateFieldNames(t *testing.T) {
	raw := authtest.Credential(t, jwt.MapClaims{
		"id":        "15",
		"full_name": "Alt Name",
		"role":      "admin",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	claims, err := DecodeCredential(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(15), claims.IdentityID)
	assert.Equal(t, "Alt Name", claims.DisplayName)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestDecodeCredential_UnknownRoleFallsBackToCustomer(t *testing.T) {
	claims, err := DecodeCredential(authtest.Flat(t, 1, "superuser", nil, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, claims.Role)
}

func TestDecodeCredential_Failures(t *testing.T) {
	noExp := authtest.Credential(t, jwt.MapClaims{"user_id": 1, "role": "seller"})
	notJSON := "header." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".sig"

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "absent", raw: "", want: ErrCredentialAbsent},
		{name: "blank", raw: "   ", want: ErrCredentialAbsent},
		{name: "two segments", raw: "a.b", want: ErrMalformed},
		{name: "four segments", raw: "a.b.c.d", want: ErrMalformed},
		{name: "bad base64", raw: "a.!!!.c", want: ErrPayloadEncoding},
		{name: "payload not json", raw: notJSON, want: ErrPayloadJSON},
		{name: "missing exp", raw: noExp, want: ErrMissingExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := DecodeCredential(tt.raw)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeDecodeFailed))
		})
	}
}

func TestDecodeCredential_HeaderIsNotInspected(t *testing.T) {
	valid := authtest.Flat(t, 3, "customer", nil, time.Hour)
	parts := strings.Split(valid, ".")

	claims, err := DecodeCredential("garbage." + parts[1] + ".sig")
	require.NoError(t, err)
	assert.Equal(t, int64(3), claims.IdentityID)
}

func TestValidateCredential_Expiry(t *testing.T) {
	now := time.Now()

	_, err := ValidateCredential(authtest.Flat(t, 1, "seller", 2, -time.Minute), now)
	assert.ErrorIs(t, err, ErrCredentialExpired)

	claims, err := ValidateCredential(authtest.Flat(t, 1, "seller", 2, time.Minute), now)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSeller, claims.Role)
}

func TestValidateCredential_ExpiryBoundary(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := authtest.Credential(t, jwt.MapClaims{"user_id": 1, "exp": exp.Unix()})

	_, err := ValidateCredential(raw, exp)
	assert.ErrorIs(t, err, ErrCredentialExpired)

	_, err = ValidateCredential(raw, exp.Add(-time.Millisecond))
	assert.NoError(t, err)
}

func TestDecodeCredential_NonNumericClaimsNormalise(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	storeID := func(v int64) *int64 { return &v }

	tests := []struct {
		name      string
		claims    jwt.MapClaims
		wantID    int64
		wantStore *int64
		wantRole  domain.Role
	}{
		{
			name:     "string user id",
			claims:   jwt.MapClaims{"exp": exp, "user_id": "u-abc", "role": "seller"},
			wantID:   0,
			wantRole: domain.RoleSeller,
		},
		{
			name:     "string store id",
			claims:   jwt.MapClaims{"exp": exp, "user_id": 4, "store_id": "none"},
			wantID:   4,
			wantRole: domain.RoleCustomer,
		},
		{
			name:     "boolean store id",
			claims:   jwt.MapClaims{"exp": exp, "user_id": 4, "store_id": true},
			wantID:   4,
			wantRole: domain.RoleCustomer,
		},
		{
			name:     "numeric role and name",
			claims:   jwt.MapClaims{"exp": exp, "user_id": 9, "role": 3, "name": false},
			wantID:   9,
			wantRole: domain.RoleCustomer,
		},
		{
			name:      "nested id not numeric falls back to flat",
			claims:    jwt.MapClaims{"exp": exp, "user_id": 11, "store_id": 2, "user": map[string]any{"id": "x"}},
			wantID:    11,
			wantStore: storeID(2),
			wantRole:  domain.RoleCustomer,
		},
		{
			name:     "user is not an object",
			claims:   jwt.MapClaims{"exp": exp, "user_id": 12, "role": "admin", "user": "bob"},
			wantID:   12,
			wantRole: domain.RoleAdmin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := DecodeCredential(authtest.Credential(t, tt.claims))
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, claims.IdentityID)
			assert.Equal(t, tt.wantStore, claims.StoreID)
			assert.Equal(t, tt.wantRole, claims.Role)
		})
	}
}

func TestDecodeCredential_NonNumericExpiryFailsClosed(t *testing.T) {
	raw := authtest.Credential(t, jwt.MapClaims{"user_id": 1, "exp": "later"})

	_, err := DecodeCredential(raw)
	assert.ErrorIs(t, err, ErrMissingExpiry)
}

func TestValidateCredential_FractionalExpiry(t *testing.T) {
	raw := authtest.Credential(t, jwt.MapClaims{"user_id": 1, "exp": 1000.5})

	_, err := ValidateCredential(raw, time.UnixMilli(1000200))
	assert.NoError(t, err)

	_, err = ValidateCredential(raw, time.UnixMilli(1000499))
	assert.NoError(t, err)

	_, err = ValidateCredential(raw, time.UnixMilli(1000500))
	assert.ErrorIs(t, err, ErrCredentialExpired)
}
