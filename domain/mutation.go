package domain

import "github.com/bytedance/sonic"

// Mutation represents one write intent against a room's board.
type Mutation struct {
	// ID carries the idempotency key when the mutation is published to the
	// broadcast queue.
	ID             string                 `json:"id,omitempty"`
	IdempotencyKey string                 `json:"idempotencyKey"`
	Type           string                 `json:"type"`
	Data           sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp      int64                  `json:"timestamp"`
}

// MutationEnvelope wraps a committed mutation with the room it applied to,
// the actor that issued it, and the board revision it produced.
type MutationEnvelope struct {
	RoomID   string   `json:"roomId"`
	ActorID  string   `json:"actorId"`
	Revision int64    `json:"revision"`
	Mutation Mutation `json:"mutation"`
}
