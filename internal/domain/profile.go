package domain

import "time"

// Role enumerates what a principal may do with the shared store.
type Role string

const (
	// RoleAdmin may upload files and merge them into the store.
	RoleAdmin Role = "admin"
	// RoleViewer may only read and export the merged dataset.
	RoleViewer Role = "viewer"
)

// Profile is an authenticated principal as recorded in the profiles table.
type Profile struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Email     string    `json:"email" db:"email"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CanIngest reports whether the principal is privileged to write.
func (p *Profile) CanIngest() bool {
	return p.Role == RoleAdmin
}
