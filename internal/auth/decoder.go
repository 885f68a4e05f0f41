package auth

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/marketplace-session/internal/domain"
	apperrors "github.com/spec-kit/marketplace-session/pkg/util/errorutil"
)

var (
	ErrCredentialAbsent  = errors.New("credential absent")
	ErrMalformed         = errors.New("credential must have three dot-separated segments")
	ErrPayloadEncoding   = errors.New("credential payload is not base64url")
	ErrPayloadJSON       = errors.New("credential payload is not a JSON object")
	ErrMissingExpiry     = errors.New("credential has no exp claim")
	ErrCredentialExpired = errors.New("credential expired")
)

// Claims are the payload fields of a credential, normalised from either the flat
// or the user-nested shape.
type Claims struct {
	IdentityID  int64
	DisplayName string
	Role        domain.Role
	StoreID     *int64
	ExpiresAt   time.Time
}

// Identity projects the claims onto the session identity.
func (c *Claims) Identity() *domain.Identity {
	if c == nil {
		return nil
	}
	identity := &domain.Identity{
		ID:          c.IdentityID,
		DisplayName: c.DisplayName,
		Role:        c.Role,
	}
	if c.StoreID != nil {
		id := *c.StoreID
		identity.StoreID = &id
	}
	return identity
}

// ExpiredAt reports whether the claims are no longer valid at now. A
// credential is valid while exp*1000 is strictly greater than now in
// milliseconds; fractional exp values keep their precision.
func (c *Claims) ExpiredAt(now time.Time) bool {
	return c.ExpiresAt.UnixNano() <= now.UnixMilli()*int64(time.Millisecond)
}

// identityFields holds the raw identity claims. Values of an unexpected type
// normalise to their zero value instead of failing the decode.
type identityFields struct {
	UserID   json.RawMessage `json:"user_id"`
	ID       json.RawMessage `json:"id"`
	Name     json.RawMessage `json:"name"`
	FullName json.RawMessage `json:"full_name"`
	Role     json.RawMessage `json:"role"`
	StoreID  json.RawMessage `json:"store_id"`
}

type payload struct {
	identityFields
	Exp  json.RawMessage `json:"exp"`
	User json.RawMessage `json:"user"`
}

var segmentParser = jwt.NewParser()

// DecodeCredential extracts claims from the middle segment of a credential.
// The signature is not verified.
func DecodeCredential(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperrors.NewDecodeError("credential absent", ErrCredentialAbsent)
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, apperrors.NewDecodeError("malformed credential", ErrMalformed)
	}

	segment, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, apperrors.NewDecodeError("malformed credential", errors.Join(ErrPayloadEncoding, err))
	}

	var p payload
	if err := json.Unmarshal(segment, &p); err != nil {
		return nil, apperrors.NewDecodeError("malformed credential", errors.Join(ErrPayloadJSON, err))
	}
	exp, ok := rawNumber(p.Exp)
	if !ok {
		return nil, apperrors.NewDecodeError("credential expired", ErrMissingExpiry)
	}

	return normalize(p, exp), nil
}

// ValidateCredential decodes raw and rejects it once expired.
func ValidateCredential(raw string, now time.Time) (*Claims, error) {
	claims, err := DecodeCredential(raw)
	if err != nil {
		return nil, err
	}
	if claims.ExpiredAt(now) {
		return nil, apperrors.NewDecodeError("credential expired", ErrCredentialExpired)
	}
	return claims, nil
}

func normalize(p payload, exp float64) *Claims {
	flat := p.identityFields
	nested := flat
	var user identityFields
	if len(p.User) > 0 && json.Unmarshal(p.User, &user) == nil {
		nested = user
	}

	claims := &Claims{
		DisplayName: firstString(nested.Name, nested.FullName, flat.Name, flat.FullName),
		Role:        domain.ParseRole(firstString(nested.Role, flat.Role)),
		ExpiresAt:   expiryTime(exp),
	}
	if id, ok := firstNumber(nested.UserID, nested.ID, flat.UserID, flat.ID); ok {
		claims.IdentityID = id
	}

	storeID := nested.StoreID
	if isAbsent(storeID) {
		storeID = flat.StoreID
	}
	if id, ok := firstNumber(storeID); ok {
		claims.StoreID = &id
	}
	return claims
}

// expiryTime converts exp seconds to a time, saturating outside the int64
// nanosecond range.
func expiryTime(exp float64) time.Time {
	ns := exp * float64(time.Second)
	switch {
	case ns >= math.MaxInt64:
		return time.Unix(0, math.MaxInt64)
	case ns <= math.MinInt64:
		return time.Unix(0, math.MinInt64)
	}
	return time.Unix(0, int64(ns))
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// rawString returns raw as a string when it is a JSON string.
func rawString(raw json.RawMessage) (string, bool) {
	var v string
	if isAbsent(raw) || json.Unmarshal(raw, &v) != nil {
		return "", false
	}
	return v, true
}

// rawNumber accepts JSON numbers and strings holding a number.
func rawNumber(raw json.RawMessage) (float64, bool) {
	if isAbsent(raw) {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

func firstString(values ...json.RawMessage) string {
	for _, v := range values {
		if s, ok := rawString(v); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(values ...json.RawMessage) (int64, bool) {
	for _, v := range values {
		var n json.Number
		if isAbsent(v) || json.Unmarshal(v, &n) != nil {
			continue
		}
		if id, err := n.Int64(); err == nil {
			return id, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}
