package domain

type UserRole string

const (
	RoleGuest UserRole = "guest"
	RoleAdmin UserRole = "admin"
)

func (r UserRole) Valid() bool {
	return r == RoleGuest || r == RoleAdmin
}

// Identity is the authenticated caller, resolved from the session token.
// It is supplied per call and never persisted.
type Identity struct {
	UserID int64    `json:"user_id"`
	Role   UserRole `json:"role"`
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}
