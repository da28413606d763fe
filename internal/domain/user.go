package domain

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// User represents a tenant-scoped identity.
// Values are immutable: every mutation returns a new User.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	TenantID  string    `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserParams holds the fields supplied when provisioning a user.
type NewUserParams struct {
	ID       string
	Username string
	Email    string
	FullName string
	Role     Role
	TenantID string
}

// ProfileUpdate holds the editable profile fields.
type ProfileUpdate struct {
	Username string
	Email    string
	FullName string
}

// NewUser creates an active user. All fields are required and the role must be defined.
func NewUser(p NewUserParams, now time.Time) (User, error) {
	var fields []FieldError
	fields = appendRequired(fields, "id", p.ID)
	fields = appendRequired(fields, "username", p.Username)
	fields = appendRequired(fields, "email", p.Email)
	fields = appendRequired(fields, "full_name", p.FullName)
	fields = appendRequired(fields, "tenant_id", p.TenantID)
	if !p.Role.IsValid() {
		fields = append(fields, FieldError{Field: "role", Message: "unknown role " + quote(string(p.Role))})
	}
	if len(fields) > 0 {
		return User{}, newValidationError(fields...)
	}

	return User{
		ID:        p.ID,
		Username:  p.Username,
		Email:     p.Email,
		FullName:  p.FullName,
		Role:      p.Role,
		IsActive:  true,
		TenantID:  p.TenantID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasRole reports whether the user holds exactly role r. No hierarchy is applied.
func (u User) HasRole(r Role) bool {
	return u.Role == r
}

// IsAuthorized reports whether the user is active and its role is in allowed.
func (u User) IsAuthorized(allowed RoleSet) bool {
	return u.IsActive && allowed.Contains(u.Role)
}

// Deactivate returns a soft-deleted copy. Calling it on an inactive user still bumps UpdatedAt.
func (u User) Deactivate(now time.Time) User {
	u.IsActive = false
	u.UpdatedAt = now
	return u
}

// Activate returns a reactivated copy.
func (u User) Activate(now time.Time) User {
	u.IsActive = true
	u.UpdatedAt = now
	return u
}

// ChangeRole returns a copy holding newRole.
func (u User) ChangeRole(newRole Role, now time.Time) (User, error) {
	if !newRole.IsValid() {
		return User{}, newValidationError(FieldError{Field: "role", Message: "unknown role " + quote(string(newRole))})
	}
	u.Role = newRole
	u.UpdatedAt = now
	return u, nil
}

// UpdateProfile returns a copy with the profile fields replaced.
// ID and TenantID are never touched.
func (u User) UpdateProfile(p ProfileUpdate, now time.Time) (User, error) {
	var fields []FieldError
	fields = appendRequired(fields, "username", p.Username)
	fields = appendRequired(fields, "email", p.Email)
	fields = appendRequired(fields, "full_name", p.FullName)
	if len(fields) > 0 {
		return User{}, newValidationError(fields...)
	}
	u.Username = p.Username
	u.Email = p.Email
	u.FullName = p.FullName
	u.UpdatedAt = now
	return u, nil
}

// UsernameKey returns the key used for per-tenant username uniqueness.
func (u User) UsernameKey() string {
	return FoldKey(u.Username)
}

// EmailKey returns the key used for per-tenant email uniqueness.
func (u User) EmailKey() string {
	return FoldKey(u.Email)
}

// FoldKey normalizes s for case-insensitive uniqueness comparison.
func FoldKey(s string) string {
	// Casers are stateful, so one per call.
	return cases.Fold().String(strings.TrimSpace(s))
}

func appendRequired(fields []FieldError, name, value string) []FieldError {
	if strings.TrimSpace(value) == "" {
		return append(fields, FieldError{Field: name, Message: "required"})
	}
	return fields
}
