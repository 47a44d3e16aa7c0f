// Package docstore holds the shared per-room board documents. Each board
// lives under a single Redis key; writes go through optimistic WATCH
// transactions so compound read-then-write sequences commit atomically and
// each board has a single effective writer at a time.
package docstore

import (
	"context"
	"errors"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"tabi-api/domain"
)

const maxTxRetries = 8

// ErrConflict is returned when a board transaction keeps losing the
// optimistic race and the retry budget runs out.
var ErrConflict = errors.New("board transaction conflict")

// Store reads and transactionally updates room boards.
type Store struct {
	client *redis.Client
}

// NewStore creates a Store backed by the provided Redis client.
func NewStore(client *redis.Client) *Store {
	if client == nil {
		panic("docstore.NewStore: redis client is nil")
	}
	return &Store{client: client}
}

func boardKey(roomID string) string {
	return "board:" + roomID
}

// Fetch returns the room's current board snapshot. A room that was never
// written to yields a fresh empty board; the board is only persisted once
// the first transaction commits.
func (s *Store) Fetch(ctx context.Context, roomID string) (*domain.Board, error) {
	raw, err := s.client.Get(ctx, boardKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewBoard(), nil
	}
	if err != nil {
		return nil, err
	}
	return decodeBoard(raw)
}

// Update loads the room's board, hands it to fn, and commits the modified
// snapshot when fn asks for it. The whole load-modify-store runs under a
// WATCH on the board key: a concurrent commit to the same room aborts the
// transaction and the sequence is retried against the new snapshot. Commit
// bumps the board revision; the committed revision is returned.
func (s *Store) Update(ctx context.Context, roomID string, fn func(*domain.Board) (commit bool, err error)) (int64, error) {
	key := boardKey(roomID)
	var revision int64

	txn := func(tx *redis.Tx) error {
		b, err := s.loadForUpdate(ctx, tx, key)
		if err != nil {
			return err
		}
		commit, err := fn(b)
		if err != nil {
			return err
		}
		revision = b.Revision
		if !commit {
			return nil
		}
		b.Revision++
		revision = b.Revision
		raw, err := sonic.Marshal(b)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return revision, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return 0, err
	}
	return 0, ErrConflict
}

func (s *Store) loadForUpdate(ctx context.Context, tx *redis.Tx, key string) (*domain.Board, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewBoard(), nil
	}
	if err != nil {
		return nil, err
	}
	return decodeBoard(raw)
}

func decodeBoard(raw []byte) (*domain.Board, error) {
	var b domain.Board
	if err := sonic.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	b.Normalize()
	return &b, nil
}
