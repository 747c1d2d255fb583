// Package session defines the client-held session record and the storage
// contract used to persist it across restarts. A session is the pair of the
// backend-issued bearer token and the cached user identity that was last
// known to be associated with it.
package session

// Role is the portal role attached to a user. The backend distinguishes
// administrators from students; every other value collapses to student.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// ParseRole maps a server-provided role string onto a known Role.
// The login endpoint may omit the role entirely, in which case the
// client assumes student.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleStudent
}

// IdentifierKind records how the user identified themselves at login.
type IdentifierKind string

const (
	IdentifierEmail    IdentifierKind = "email"
	IdentifierUsername IdentifierKind = "username"
)

// User is the cached identity persisted alongside the token. Exactly one of
// Email or Username is set, matching the identifier used at login.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// IdentifierKind reports which identifier slot the user logged in with.
func (u *User) IdentifierKind() IdentifierKind {
	if u.Email != "" {
		return IdentifierEmail
	}
	return IdentifierUsername
}

// Store persists the two logical session slots: the bearer token and the
// serialized user record. Implementations are single-writer within a process;
// concurrent writers from multiple processes are outside the contract.
type Store interface {
	// Save writes both slots. Contents are not validated.
	Save(token string, user *User) error

	// Load returns whatever is persisted. An empty token means no session.
	// A user record that fails to deserialize is treated as corrupt state:
	// Load clears both slots and reports them absent rather than returning
	// an error the UI would have to handle.
	Load() (token string, user *User, err error)

	// Clear removes both slots. Idempotent.
	Clear() error
}
