package docstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"tabi-api/domain"
)

// Publisher hands committed mutations to the broadcast queue that feeds the
// replication side of the system. Subscriber fan-out happens downstream.
type Publisher struct {
	queue *azqueue.QueueClient
}

// NewPublisher creates a Publisher from the given connection string and
// queue name.
func NewPublisher(connStr, queueName string) (*Publisher, error) {
	opts := azqueue.ClientOptions{
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
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &Publisher{queue: q}, nil
}

// Publish enqueues the committed mutations for broadcast, in commit order.
func (p *Publisher) Publish(ctx context.Context, envs []domain.MutationEnvelope) error {
	for _, env := range envs {
		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		if _, err := p.queue.EnqueueMessage(ctx, string(data), nil); err != nil {
			return err
		}
	}
	return nil
}
