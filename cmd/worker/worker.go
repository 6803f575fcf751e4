package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	appkafka "example.com/chirp/internal/broker"
	"example.com/chirp/internal/logger"
	"example.com/chirp/internal/metrics"
	"example.com/chirp/internal/models"
	"example.com/chirp/internal/store"
)

var logg = logger.New()

// ErrUnknownEvent is returned by Handle for event types the worker does not
// reconcile.
var ErrUnknownEvent = errors.New("unknown event type")

// Worker consumes reconcile events from Kafka and re-applies the idempotent
// half of multi-document writes: follow sets, tweet counts and like counts.
type Worker struct {
	store        store.StoreInterface
	reader       appkafka.KafkaReader
	workerCount  int
	jobQueueSize int
}

// New creates a new concurrent Worker using pre-initialized dependencies.
func New(store store.StoreInterface, reader appkafka.KafkaReader, workerCount, jobQueueSize int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	return &Worker{
		store:        store,
		reader:       reader,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
	}
}

// Run starts message reading and concurrent processing.
func (w *Worker) Run(ctx context.Context) {
	if w.workerCount <= 0 {
		w.workerCount = 1
	}
	if w.jobQueueSize <= 0 {
		w.jobQueueSize = 10
	}

	logg.Info("worker", "Starting "+fmt.Sprint(w.workerCount)+" workers with queue size "+fmt.Sprint(w.jobQueueSize))

	jobs := make(chan []byte, w.jobQueueSize)
	var wg sync.WaitGroup

	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processLoop(ctx, jobs)
		}()
	}

	w.readLoop(ctx, jobs)

	close(jobs)
	wg.Wait()
	logg.Info("worker", "All workers stopped gracefully")
}

// readLoop reads Kafka messages and pushes them into a job queue.
func (w *Worker) readLoop(ctx context.Context, jobs chan<- []byte) {
	var retry int
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, err := w.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
				logg.Error("worker", "Kafka read error, backing off", err)
				if !waitWithContext(ctx, backoff) {
					return
				}
				retry++
				continue
			}
			retry = 0

			if len(msg.Value) == 0 {
				if !waitWithContext(ctx, 50*time.Millisecond) {
					return
				}
				continue
			}

			// Blocks until a slot frees up; a dropped event would never be
			// reconciled.
			for enqueued := false; !enqueued; {
				select {
				case jobs <- msg.Value:
					enqueued = true
				case <-ctx.Done():
					return
				case <-time.After(100 * time.Millisecond):
					logg.Info("worker", "Queue full, waiting to enqueue Kafka message")
				}
			}
		}
	}
}

// processLoop decodes and applies queued events until the queue closes.
// Events still queued when ctx is cancelled are drained with a fresh
// deadline so a shutdown does not lose them.
func (w *Worker) processLoop(ctx context.Context, jobs <-chan []byte) {
	for data := range jobs {
		if ctx.Err() == nil {
			w.process(ctx, data)
			continue
		}
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		w.process(drainCtx, data)
		cancel()
	}
}

// process handles one message and records the outcome. Malformed and
// unknown events are skipped; there is nothing to retry for them.
func (w *Worker) process(ctx context.Context, data []byte) {
	ev, err := appkafka.DecodeEvent(data)
	if err != nil {
		logg.Error("worker", "Invalid event in Kafka message", err)
		metrics.WorkerEventsProcessed.WithLabelValues("invalid", "skipped").Inc()
		return
	}

	err = w.Handle(ctx, ev)
	switch {
	case err == nil:
		metrics.WorkerEventsProcessed.WithLabelValues(string(ev.Type), "ok").Inc()
		logg.Debug("worker", "Reconciled "+string(ev.Type)+" for actor "+logger.Anonymize(ev.ActorID))
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrSelfFollow), errors.Is(err, ErrUnknownEvent):
		metrics.WorkerEventsProcessed.WithLabelValues(string(ev.Type), "skipped").Inc()
		logg.Info("worker", "Skipping "+string(ev.Type)+" event: "+err.Error())
	default:
		metrics.WorkerEventsProcessed.WithLabelValues(string(ev.Type), "error").Inc()
		logg.Error("worker", "Failed to reconcile "+string(ev.Type)+" event", err)
	}
}

// Handle applies a single event to the store. Every branch is idempotent, so
// replays and duplicate deliveries leave the store unchanged.
func (w *Worker) Handle(ctx context.Context, ev models.Event) error {
	switch ev.Type {
	case models.EventUserFollowed:
		return w.store.Follow(ctx, ev.ActorID, ev.TargetID)
	case models.EventTweetCreated, models.EventTweetDeleted:
		return w.store.SyncTweetCount(ctx, ev.ActorID)
	case models.EventTweetLiked, models.EventTweetUnliked:
		return w.store.SyncLikeCount(ctx, ev.TargetID, models.TweetRef{ID: ev.TweetID})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down the Kafka reader and the store.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	err := w.reader.Close()
	if err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
	}

	logg.Info("worker", "Closing store")
	w.store.Close()
	return err
}
