package api

import (
	"context"

	"tabi-api/domain"
)

// BoardStore gives handlers transactional access to room boards.
type BoardStore interface {
	Fetch(ctx context.Context, roomID string) (*domain.Board, error)
	// Update runs fn against the room's current board inside one atomic
	// transaction and reports the committed revision.
	Update(ctx context.Context, roomID string, fn func(*domain.Board) (commit bool, err error)) (int64, error)
}

// Memberships resolves and registers (room, user) roles.
type Memberships interface {
	Role(ctx context.Context, roomID, userID string) (domain.Role, error)
	EnsureMember(ctx context.Context, roomID, userID string, role domain.Role) error
}

// Authenticator is implemented by types able to verify bearer credentials
// into principals.
type Authenticator interface {
	PrincipalFromAuthHeader(string) (domain.Principal, error)
}

// SessionIssuer signs room-scoped session grants and verifies tokens it
// issued earlier.
type SessionIssuer interface {
	Issue(ctx context.Context, grant domain.SessionGrant) (status int, body []byte, err error)
	Verify(token string) (domain.SessionGrant, error)
}

// Publisher pushes committed mutations toward the broadcast side.
type Publisher interface {
	Publish(ctx context.Context, envs []domain.MutationEnvelope) error
}

// Deduper prevents reprocessing of replayed mutation batches.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, roomID, key string) (bool, error)
	// AddMany records the keys in one round trip; the result slice marks
	// which keys were newly added.
	AddMany(ctx context.Context, roomID string, keys []string) ([]bool, error)
	// Remove deletes a previously added key, used when downstream
	// processing fails.
	Remove(ctx context.Context, roomID, key string) error
}
