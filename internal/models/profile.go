package models

import (
	"strings"
	"time"
)

// UserRole is the role picked at registration. Values are matched exactly, case-sensitively.
type UserRole string

const (
	RoleStudent          UserRole = "Student"
	RoleTeacher          UserRole = "Teacher"
	RoleParent           UserRole = "Parent"
	RoleTeacherAssistant UserRole = "Teacher Assistant"
	RolePrincipal        UserRole = "Principal"
	RoleAdmin            UserRole = "Admin"
	RoleSGB              UserRole = "SGB"
)

// CollectionUsers is the document collection holding user profiles keyed by uid.
const CollectionUsers = "users"

// DocumentKind names one of the documents a student attaches at registration.
type DocumentKind string

const (
	DocumentIDCopy     DocumentKind = "idCopy"
	DocumentBirthCert  DocumentKind = "birthCert"
	DocumentClinicCard DocumentKind = "clinicCard"
)

// StudentDocumentKinds lists the attachments required from students, in upload order.
var StudentDocumentKinds = []DocumentKind{DocumentIDCopy, DocumentBirthCert, DocumentClinicCard}

// DocumentRef points at an uploaded document blob.
type DocumentRef struct {
	URL        string    `json:"url"`
	FileName   string    `json:"fileName"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// UserProfile is the identity and role record stored under the account uid.
type UserProfile struct {
	UID       string                       `json:"uid"`
	FirstName string                       `json:"firstName"`
	LastName  string                       `json:"lastName"`
	Email     string                       `json:"email"`
	Identity  string                       `json:"identity"`
	Phone     string                       `json:"phone"`
	Address   string                       `json:"address"`
	Role      UserRole                     `json:"role"`
	CreatedAt time.Time                    `json:"createdAt"`
	StudentID string                       `json:"studentId,omitempty"`
	Documents map[DocumentKind]DocumentRef `json:"documents,omitempty"`
}

// FullName joins first and last name.
func (p *UserProfile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
