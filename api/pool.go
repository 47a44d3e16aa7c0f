package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"tabi-api/domain"
)

type publishJob struct {
	envs []domain.MutationEnvelope
}

var (
	once            sync.Once
	jobs            chan publishJob
	workerCount     int
	jobBuf          int
	publishTimeout  time.Duration
	handoffTimeout  time.Duration
	bg              = context.Background()
	globalPublisher Publisher
	globalLog       *log.Logger
	workerWG        sync.WaitGroup
)

// shutdownBroadcaster stops worker goroutines and clears shared state. It
// is intended for tests.
func shutdownBroadcaster() {
	if jobs != nil {
		close(jobs)
		jobs = nil
	}

	workerWG.Wait()

	globalPublisher = nil
	globalLog = nil
	workerCount = 0
	jobBuf = 0
	publishTimeout = 0
	handoffTimeout = 0
	once = sync.Once{}
	workerWG = sync.WaitGroup{}
}

// initBroadcaster starts the pool that pushes committed mutations to the
// broadcast queue off the request path.
func initBroadcaster(publisher Publisher, logger *log.Logger) {
	once.Do(func() {
		globalPublisher = publisher
		if logger == nil {
			panic("Logger is not initialized")
		}
		globalLog = logger

		workerCount = envInt("PUBLISH_WORKERS", 16)
		jobBuf = envInt("PUBLISH_BUFFER", 4096)
		publishTimeout = envDur("PUBLISH_TIMEOUT", 30*time.Second)
		handoffTimeout = envDur("PUBLISH_HANDOFF_TIMEOUT", 15*time.Millisecond)

		jobs = make(chan publishJob, jobBuf)
		for i := 0; i < workerCount; i++ {
			workerWG.Add(1)
			go worker(i, jobs)
		}
		globalLog.Infof("broadcaster started, workers: %d, buffer: %d, timeout: %v, handoff: %v", workerCount, jobBuf, publishTimeout, handoffTimeout)
	})
}

func worker(id int, jobCh <-chan publishJob) {
	defer workerWG.Done()
	for j := range jobCh {
		ctx, cancel := context.WithTimeout(bg, publishTimeout)
		err := globalPublisher.Publish(ctx, j.envs)
		cancel()

		if err != nil {
			// The board itself already committed; a lost broadcast only
			// delays subscribers until their next snapshot fetch.
			globalLog.Errorf("broadcast publish failed, err: %v, room: %s, count: %d, worker: %d", err, jobRoom(j), len(j.envs), id)
		}
	}
}

func jobRoom(j publishJob) string {
	if len(j.envs) == 0 {
		return ""
	}
	return j.envs[0].RoomID
}

func tryPublishJob(job publishJob) bool {
	if jobs == nil {
		return false
	}

	if ok, closed := trySendNonBlocking(jobs, job); closed {
		return false
	} else if ok {
		return true
	}

	if handoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(handoffTimeout)
	defer timer.Stop()

	ok, closed := sendWithTimer(jobs, job, timer.C)
	if closed {
		return false
	}
	return ok
}

func trySendNonBlocking(ch chan publishJob, job publishJob) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan publishJob, job publishJob, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- job:
		return true, false
	case <-timer:
		return false, false
	}
}
