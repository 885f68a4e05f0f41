package domain

// Role is the authorization role carried by a credential.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a raw claim value to a known role. Unknown or empty values
// fall back to the least privileged role.
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleSeller:
		return RoleSeller
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleCustomer
	}
}

// Identity is the in-memory projection of a valid credential.
type Identity struct {
	ID          int64  `json:"identity_id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
	StoreID     *int64 `json:"store_id"`
}

// IsSeller reports whether the identity carries the seller role.
func (i *Identity) IsSeller() bool {
	return i != nil && i.Role == RoleSeller
}
