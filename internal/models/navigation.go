package models

import (
	"encoding/json"
	"time"
)

// Destination is a view the portal can send a signed-in user to.
type Destination int

const (
	DestinationEntry Destination = iota
	DestinationStudent
	DestinationTeacher
	DestinationParent
	DestinationTeacherAssistant
	DestinationPrincipal
	DestinationAdmin
	DestinationSGB
)

var destinationNames = map[Destination]string{
	DestinationEntry:            "entry",
	DestinationStudent:          "student",
	DestinationTeacher:          "teacher",
	DestinationParent:           "parent",
	DestinationTeacherAssistant: "teacher-assistant",
	DestinationPrincipal:        "principal",
	DestinationAdmin:            "admin",
	DestinationSGB:              "sgb",
}

// String returns the destination name.
func (d Destination) String() string {
	if name, ok := destinationNames[d]; ok {
		return name
	}
	return "unknown"
}

// Path returns the view path of the destination.
func (d Destination) Path() string {
	if d == DestinationEntry {
		return "/"
	}
	return "/" + d.String() + "-profile"
}

// MarshalJSON encodes the destination by name.
func (d Destination) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// RouteDecision is the outcome of mapping a stored role to a destination.
type RouteDecision struct {
	Role         UserRole    `json:"role"`
	Destination  Destination `json:"destination"`
	Unrecognized bool        `json:"unrecognized"`
}

// DestinationForRole maps a stored role onto the closed destination set.
func DestinationForRole(role UserRole) RouteDecision {
	decision := RouteDecision{Role: role}
	switch role {
	case RoleStudent:
		decision.Destination = DestinationStudent
	case RoleTeacher:
		decision.Destination = DestinationTeacher
	case RoleParent:
		decision.Destination = DestinationParent
	case RoleTeacherAssistant:
		decision.Destination = DestinationTeacherAssistant
	case RolePrincipal:
		decision.Destination = DestinationPrincipal
	case RoleAdmin:
		decision.Destination = DestinationAdmin
	case RoleSGB:
		decision.Destination = DestinationSGB
	default:
		decision.Destination = DestinationStudent
		decision.Unrecognized = true
	}
	return decision
}

// NavigationStatus describes what the session's navigation slot currently shows.
type NavigationStatus string

const (
	NavigationPending   NavigationStatus = "pending"
	NavigationRouted    NavigationStatus = "routed"
	NavigationFailed    NavigationStatus = "failed"
	NavigationSignedOut NavigationStatus = "signed_out"
)

// NavigationState is the per-session slot read by the front end.
type NavigationState struct {
	Status      NavigationStatus `json:"status"`
	Destination string           `json:"destination,omitempty"`
	Path        string           `json:"path,omitempty"`
	Message     string           `json:"message,omitempty"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// RouteOutcome is the result of resolving a signed-in account's destination.
type RouteOutcome struct {
	Status   NavigationStatus
	Decision RouteDecision
	Profile  *UserProfile
	Attempts int
	Message  string
}

// Navigation converts the outcome into the session navigation slot.
func (o RouteOutcome) Navigation(now time.Time) NavigationState {
	state := NavigationState{Status: o.Status, Message: o.Message, UpdatedAt: now}
	if o.Status == NavigationRouted {
		state.Destination = o.Decision.Destination.String()
		state.Path = o.Decision.Destination.Path()
	}
	return state
}
