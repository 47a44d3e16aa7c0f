package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"tabi-api/domain"
)

// ErrNotFound is returned when no membership row exists for a
// (room, user) pair.
var ErrNotFound = domain.ErrMembershipNotFound

// Storage provides access to the membership table.
type Storage struct {
	memberships *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, membershipsTable string) (*Storage, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Storage{memberships: svc.NewClient(membershipsTable)}, nil
}

type membershipEntity struct {
	aztables.Entity
	Role string `json:"Role"`
}

func decodeMembershipEntity(data []byte) (domain.Membership, error) {
	var ent membershipEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Membership{}, err
	}
	return domain.Membership{
		RoomID: ent.PartitionKey,
		UserID: ent.RowKey,
		Role:   domain.Role(ent.Role),
	}, nil
}

// Role looks up the membership role for a user in a room. A missing row is
// reported as ErrNotFound.
func (s *Storage) Role(ctx context.Context, roomID, userID string) (domain.Role, error) {
	ent, err := s.memberships.GetEntity(ctx, roomID, userID, nil)
	if err != nil {
		if hasStatusCode(err, http.StatusNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	m, err := decodeMembershipEntity(ent.Value)
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

// EnsureMember inserts a membership row if none exists. An existing row is
// left untouched whatever role it holds, so concurrent joins and repeated
// self-registration collapse into one record.
func (s *Storage) EnsureMember(ctx context.Context, roomID, userID string, role domain.Role) error {
	ent := membershipEntity{
		Entity: aztables.Entity{PartitionKey: roomID, RowKey: userID},
		Role:   string(role),
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	if _, err := s.memberships.AddEntity(ctx, data, nil); err != nil {
		if hasStatusCode(err, http.StatusConflict) {
			return nil
		}
		return err
	}
	return nil
}

func hasStatusCode(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}
