package models

import (
	"sort"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin         Role = "ADMIN"
	RolePharmacyStaff Role = "STAFF"
	RoleCustomer      Role = "CUSTOMER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePharmacyStaff, RoleCustomer:
		return true
	}
	return false
}

func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Administrator"
	case RolePharmacyStaff:
		return "Pharmacy Staff"
	default:
		return "Customer"
	}
}

type UserProfile struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	Role        Role      `json:"role"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Address     string    `json:"address,omitempty"`
	PharmacyID  *int64    `json:"pharmacy_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (u UserProfile) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Session is the browser-side view of an authenticated user.
// User is nil until the profile has been fetched.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *UserProfile
}

type LoginCredentials struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type RegistrationData struct {
	Username    string `json:"username"               form:"username"     validate:"required,min=3,max=150"`
	Email       string `json:"email"                  form:"email"        validate:"required,email"`
	Password    string `json:"password"               form:"password"     validate:"required,min=8"`
	Password2   string `json:"password2"              form:"password2"    validate:"required,eqfield=Password"`
	Role        Role   `json:"role,omitempty"         form:"role"         validate:"omitempty,oneof=ADMIN STAFF CUSTOMER"`
	PhoneNumber string `json:"phone_number,omitempty" form:"phone_number"`
	Address     string `json:"address,omitempty"      form:"address"`
	FirstName   string `json:"first_name,omitempty"   form:"first_name"`
	LastName    string `json:"last_name,omitempty"    form:"last_name"`
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type RefreshedToken struct {
	Access string `json:"access"`
}

// APIError is the error payload returned by the backend.
type APIError struct {
	Message string              `json:"message,omitempty"`
	Detail  string              `json:"detail,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Status  int                 `json:"status,omitempty"`
}

// Text returns the most specific human readable message, or "" when the
// payload carries none.
func (e APIError) Text() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Message != "" {
		return e.Message
	}
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		if msgs := e.Errors[f]; len(msgs) > 0 {
			return f + ": " + msgs[0]
		}
	}
	return ""
}
