package models

// UserRole is the coarse permission level resolved from the auth token.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleStaff   UserRole = "staff"
	RoleAdmin   UserRole = "admin"
)

// AuthUser is the authenticated principal of a request. Identity lives in the
// auth provider; nothing here is persisted.
type AuthUser struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Role  UserRole `json:"role"`
}
