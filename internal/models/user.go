package models

import "time"

// UserRole defines the access level of a platform user.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// IsValid checks whether the role is recognized.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// CanAuthor reports whether the role may create exams and questions.
func (r UserRole) CanAuthor() bool {
	return r == RoleTeacher || r == RoleAdmin
}

// User mirrors the identity provider's user record. This service does
// not own user data; the struct carries only what handlers and reports
// need.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        UserRole  `json:"role"`
	Avatar      string    `json:"avatar,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}
