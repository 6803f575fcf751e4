package appkafka

import (
	"context"
	"fmt"
	"time"

	"example.com/chirp/internal/logger"
	"example.com/chirp/internal/metrics"
	"example.com/chirp/internal/models"
	json "github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	gobreaker "github.com/sony/gobreaker/v2"
)

var logg = logger.New()

// Publisher emits reconcile events. Implementations must not block a request
// for longer than their write timeout.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// BreakerConfig controls when the event circuit opens.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32        // trial requests allowed while half-open
	Interval         time.Duration // failure count reset period while closed
	Timeout          time.Duration // time spent open before probing
	FailureThreshold uint32        // consecutive failures that open the circuit
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "kafka-events",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// EventPublisher writes events to Kafka through a circuit breaker. While the
// circuit is open Publish fails immediately.
type EventPublisher struct {
	writer  KafkaWriter
	breaker *gobreaker.CircuitBreaker[any]
}

func NewEventPublisher(w KafkaWriter, cfg BreakerConfig) *EventPublisher {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logg.Info("broker", fmt.Sprintf("Circuit %s changed from %s to %s", name, from, to))
		},
	}
	return &EventPublisher{
		writer:  w,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// Publish serializes ev and writes it keyed by the user whose documents the
// event repairs, so events for one user stay ordered.
func (p *EventPublisher) Publish(ctx context.Context, ev models.Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(PartitionKey(ev)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		metrics.EventPublishErrors.WithLabelValues(string(ev.Type)).Inc()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

// State reports the breaker state ("closed", "half-open", "open").
func (p *EventPublisher) State() string {
	return p.breaker.State().String()
}

// PartitionKey returns the id of the user owning the repaired documents.
func PartitionKey(ev models.Event) string {
	switch ev.Type {
	case models.EventTweetLiked, models.EventTweetUnliked:
		return ev.TargetID
	default:
		return ev.ActorID
	}
}

// NopPublisher drops events; used when EVENTS_ENABLED=false.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.Event) error { return nil }

// DecodeEvent parses a message value written by EventPublisher.
func DecodeEvent(data []byte) (models.Event, error) {
	var ev models.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return models.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return models.Event{}, fmt.Errorf("decode event: missing type")
	}
	return ev, nil
}
