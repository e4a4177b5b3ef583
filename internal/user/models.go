package user

import (
	"time"

	"pulse/internal/constants"
)

type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Password      string     `json:"-"`
	GoogleID      string     `json:"-"`
	Role          string     `json:"role"`
	IsActive      bool       `json:"is_active"`
	PlanCode      string     `json:"plan_code"`
	EmailRequests int        `json:"email_requests"`
	ExportedAt    *time.Time `json:"exported_at"`
	Created       time.Time  `json:"created"`
	Updated       time.Time  `json:"updated"`
}

// Roles returns the roles granted to u. Admins also hold the customer role.
func (u *User) Roles() []string {
	if u.Role == constants.RoleAdmin {
		return []string{constants.RoleCustomer, constants.RoleAdmin}
	}
	return []string{constants.RoleCustomer}
}

// CanBeDeleted reports whether the account has no paid subscription.
func (u *User) CanBeDeleted() bool {
	return u.PlanCode == constants.PlanFree || u.PlanCode == constants.PlanNone
}

type Page struct {
	Results []User `json:"results"`
	Total   int    `json:"total"`
}

type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"omitempty,oneof=customer admin"`
	PlanCode string `json:"plan_code"`
}

type UpdateUserRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password"`
	Role     *string `json:"role" binding:"omitempty,oneof=customer admin"`
	PlanCode *string `json:"plan_code"`
	IsActive *bool   `json:"is_active"`
}

// UpdateProfileRequest is what a user may change on their own account.
type UpdateProfileRequest struct {
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password"`
}

type exportUser struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	PlanCode   string `json:"plan_code"`
	IsActive   bool   `json:"is_active"`
	Created    string `json:"created"`
	Updated    string `json:"updated"`
	ExportedAt string `json:"exported_at"`
}

type exportProject struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Origins string `json:"origins"`
	Active  bool   `json:"active"`
	Public  bool   `json:"public"`
	Created string `json:"created"`
}

// ExportData is the payload of the data export mail.
type ExportData struct {
	User     exportUser      `json:"user"`
	Projects []exportProject `json:"projects"`
}
