package model

import "strings"

// Bounds of an account username after surrounding whitespace is removed.
const (
	UsernameMinLen = 3
	UsernameMaxLen = 50
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=3,max=72"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=72"`
}

type CreateAccountRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=3,max=72"`
	Role     string `json:"role" validate:"omitempty,max=20"`
}

type UpdateAccountRequest struct {
	Password *string `json:"password" validate:"omitempty,min=3,max=72"`
	Role     *string `json:"role" validate:"omitempty,max=20"`
}

type UserRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"omitempty,email,max=255"`
}

type CourseRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=2000"`
	MaxCapacity int    `json:"max_capacity" validate:"required,gt=0"`
}

// Normalize trims the fields whose surrounding whitespace carries no meaning,
// so validation sees the values that will be stored.
func (r *RegisterRequest) Normalize() { r.Username = strings.TrimSpace(r.Username) }

func (r *LoginRequest) Normalize() { r.Username = strings.TrimSpace(r.Username) }

func (r *CreateAccountRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Role = strings.TrimSpace(r.Role)
}

func (r *UserRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
}

func (r *CourseRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}
