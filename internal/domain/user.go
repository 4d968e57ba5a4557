package domain

import "time"

// UserRole enumerates the fixed account roles. Role is set at creation and
// never changes.
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleAgent    UserRole = "agent"
	RoleCustomer UserRole = "customer"
)

// User is an account within a tenant. TenantID is nil only for
// platform-level administrators.
type User struct {
	ID           string
	TenantID     *string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BelongsTo reports whether the user is a member of the given tenant.
func (u *User) BelongsTo(tenantID string) bool {
	return u.TenantID != nil && *u.TenantID == tenantID
}

// IsStaff reports whether the user may act on tickets beyond their own.
func (u *User) IsStaff() bool {
	return u.Role == RoleAgent || u.Role == RoleAdmin
}
