package domain

import "errors"

// ErrMembershipNotFound is returned by membership lookups when no row
// exists for a (room, user) pair. Callers treat it as "viewer by default",
// not as a failure.
var ErrMembershipNotFound = errors.New("membership not found")

// Role is a participant's membership role within a room.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Capability is the access scope a session grant carries for its room.
// Owners and editors write; everyone else reads.
type Capability string

const (
	CapabilityRead      Capability = "READ"
	CapabilityReadWrite Capability = "READ_WRITE"
)

// CapabilityForRole maps a resolved membership role to a capability.
func CapabilityForRole(r Role) Capability {
	switch r {
	case RoleOwner, RoleEditor:
		return CapabilityReadWrite
	}
	return CapabilityRead
}

// Principal identifies the caller of a request: an authenticated user or a
// generated anonymous guest.
type Principal struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Membership is a persisted (room, user) -> role record.
type Membership struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// SessionGrant is the ephemeral, room-scoped capability issued per request.
// RoomID may be empty for an unscoped read-only grant.
type SessionGrant struct {
	PrincipalID string     `json:"principalId"`
	DisplayName string     `json:"displayName,omitempty"`
	Anonymous   bool       `json:"anonymous,omitempty"`
	RoomID      string     `json:"roomId,omitempty"`
	Capability  Capability `json:"capability"`
}
