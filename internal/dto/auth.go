package dto

import (
	"time"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// Attachment is an uploaded document kept in memory until its background upload runs.
type Attachment struct {
	FileName    string
	ContentType string
	Data        []byte
}

// RegistrationRequest is the form submitted on the registration page.
type RegistrationRequest struct {
	FirstName string          `form:"firstName" validate:"required"`
	LastName  string          `form:"lastName" validate:"required"`
	Email     string          `form:"email" validate:"required"`
	Password  string          `form:"password" validate:"required"`
	Identity  string          `form:"identity" validate:"required"`
	Phone     string          `form:"phone" validate:"required"`
	Address   string          `form:"address" validate:"required"`
	Role      models.UserRole `form:"role" validate:"required"`

	Attachments map[models.DocumentKind]Attachment `form:"-"`
}

// RegistrationResult is returned once the account exists and the profile is written.
type RegistrationResult struct {
	UID       string    `json:"uid"`
	StudentID string    `json:"studentId,omitempty"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Message   string    `json:"message"`
}

// LoginRequest holds the credentials typed on the login page.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResult carries the session token. Routing happens through the session observer.
type LoginResult struct {
	UID       string    `json:"uid"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Message   string    `json:"message"`
}

// SessionView is what the front end polls to learn where to navigate.
type SessionView struct {
	UID         string                 `json:"uid"`
	State       models.SessionState    `json:"state"`
	Navigation  models.NavigationState `json:"navigation"`
	CurrentUser *models.UserProfile    `json:"currentUser,omitempty"`
}
