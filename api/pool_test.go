package api

import (
	"context"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"tabi-api/domain"
)

type blockingPublisher struct {
	mu       sync.Mutex
	got      [][]domain.MutationEnvelope
	released chan struct{}
}

func (p *blockingPublisher) Publish(ctx context.Context, envs []domain.MutationEnvelope) error {
	p.mu.Lock()
	p.got = append(p.got, envs)
	p.mu.Unlock()
	if p.released != nil {
		<-p.released
	}
	return nil
}

func (p *blockingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

func testLogger() *log.Logger {
	l := log.New()
	l.SetOutput(discard{})
	return l
}

func TestBroadcasterPublishesJobs(t *testing.T) {
	t.Cleanup(shutdownBroadcaster)

	pub := &blockingPublisher{}
	initBroadcaster(pub, testLogger())

	env := domain.MutationEnvelope{RoomID: "r1", ActorID: "u1", Revision: 1}
	if !tryPublishJob(publishJob{envs: []domain.MutationEnvelope{env}}) {
		t.Fatal("publish job rejected")
	}

	deadline := time.After(2 * time.Second)
	for pub.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never published")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestTryPublishJobWithoutPoolFails(t *testing.T) {
	t.Cleanup(shutdownBroadcaster)

	if tryPublishJob(publishJob{}) {
		t.Fatal("publish should fail before the pool is initialized")
	}
}

func TestShutdownBroadcasterDrainsWorkers(t *testing.T) {
	pub := &blockingPublisher{released: make(chan struct{})}
	initBroadcaster(pub, testLogger())

	tryPublishJob(publishJob{envs: []domain.MutationEnvelope{{RoomID: "r1"}}})
	close(pub.released)
	shutdownBroadcaster()

	if tryPublishJob(publishJob{}) {
		t.Fatal("publish should fail after shutdown")
	}
}
