package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"tabi-api/domain"
)

type stubBackend struct {
	roleFn   func(ctx context.Context, roomID, userID string) (domain.Role, error)
	ensureFn func(ctx context.Context, roomID, userID string, role domain.Role) error
}

func (s *stubBackend) Role(ctx context.Context, roomID, userID string) (domain.Role, error) {
	if s.roleFn == nil {
		return "", errors.New("unexpected Role call")
	}
	return s.roleFn(ctx, roomID, userID)
}

func (s *stubBackend) EnsureMember(ctx context.Context, roomID, userID string, role domain.Role) error {
	if s.ensureFn == nil {
		return errors.New("unexpected EnsureMember call")
	}
	return s.ensureFn(ctx, roomID, userID, role)
}

func newCacheFixture(t *testing.T, base backend) *RoleCache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRoleCache(base, client, time.Minute)
}

func TestRoleCacheMissThenHit(t *testing.T) {
	var calls int
	cache := newCacheFixture(t, &stubBackend{
		roleFn: func(ctx context.Context, roomID, userID string) (domain.Role, error) {
			calls++
			return domain.RoleOwner, nil
		},
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		role, err := cache.Role(ctx, "r1", "u1")
		if err != nil {
			t.Fatalf("role: %v", err)
		}
		if role != domain.RoleOwner {
			t.Fatalf("unexpected role %q", role)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one backend call, got %d", calls)
	}
}

func TestRoleCacheCachesNegativeLookups(t *testing.T) {
	var calls int
	cache := newCacheFixture(t, &stubBackend{
		roleFn: func(ctx context.Context, roomID, userID string) (domain.Role, error) {
			calls++
			return "", ErrNotFound
		},
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := cache.Role(ctx, "r1", "u1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one backend call, got %d", calls)
	}
}

func TestRoleCacheEnsureMemberInvalidates(t *testing.T) {
	role := domain.Role("")
	backendErr := error(ErrNotFound)
	cache := newCacheFixture(t, &stubBackend{
		roleFn: func(ctx context.Context, roomID, userID string) (domain.Role, error) {
			return role, backendErr
		},
		ensureFn: func(ctx context.Context, roomID, userID string, r domain.Role) error {
			role, backendErr = r, nil
			return nil
		},
	})

	ctx := context.Background()
	if _, err := cache.Role(ctx, "r1", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := cache.EnsureMember(ctx, "r1", "u1", domain.RoleViewer); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	got, err := cache.Role(ctx, "r1", "u1")
	if err != nil {
		t.Fatalf("role after join: %v", err)
	}
	if got != domain.RoleViewer {
		t.Fatalf("stale cache entry served after join, got %q", got)
	}
}

func TestRoleCachePassesBackendErrors(t *testing.T) {
	boom := errors.New("table offline")
	cache := newCacheFixture(t, &stubBackend{
		roleFn: func(ctx context.Context, roomID, userID string) (domain.Role, error) {
			return "", boom
		},
	})
	if _, err := cache.Role(context.Background(), "r1", "u1"); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
}
