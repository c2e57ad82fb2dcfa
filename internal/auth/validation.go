package auth

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// RegisterRequest is the body of a registration call.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// MaxPasswordBytes is the longest password bcrypt will hash.
const MaxPasswordBytes = 72

// LoginRequest is the body of a login call.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HasAllFields reports whether every field was supplied.
func (r RegisterRequest) HasAllFields() bool {
	return r.Email != "" && r.Password != "" && r.Name != ""
}

// Validate checks what the password hash can store: bcrypt accepts at most
// MaxPasswordBytes.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(0, MaxPasswordBytes)),
		validation.Field(&r.Name, validation.Required),
	)
}

// Normalize trims surrounding whitespace from the email and name.
func (r *RegisterRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)
}

// HasAllFields reports whether both credentials were supplied.
func (r LoginRequest) HasAllFields() bool {
	return r.Email != "" && r.Password != ""
}

// Normalize trims surrounding whitespace from the email, matching
// RegisterRequest.Normalize.
func (r *LoginRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}
