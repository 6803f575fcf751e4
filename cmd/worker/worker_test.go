package worker

import (
	"context"
	"testing"
	"time"

	appkafka "example.com/chirp/internal/broker"
	"example.com/chirp/internal/metrics"
	"example.com/chirp/internal/models"
	"example.com/chirp/internal/store"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runWorkerOnce processes a single Kafka message for testing.
func runWorkerOnce(ctx context.Context, st store.StoreInterface, kafkaReader appkafka.KafkaReader) error {
	msg, err := kafkaReader.ReadMessage(ctx)
	if err != nil {
		return err
	}
	if len(msg.Value) == 0 {
		return nil
	}

	ev, err := appkafka.DecodeEvent(msg.Value)
	if err != nil {
		return err
	}
	return New(st, kafkaReader, 1, 1).Handle(ctx, ev)
}

func eventMessage(t *testing.T, ev models.Event) kafka.Message {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(appkafka.PartitionKey(ev)), Value: data}
}

func newUser(t *testing.T, st *store.MockStore, name string) string {
	t.Helper()
	id, err := st.CreateUser(context.Background(), models.User{Name: name, Email: name + "@example.com", Password: "x"})
	require.NoError(t, err)
	return id
}

func newTweet(t *testing.T, st *store.MockStore, author string) models.Tweet {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	tw := models.Tweet{ID: uuid.NewString(), AuthorID: author, Body: "hello there", Favoriters: []string{}, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, st.CreateTweet(context.Background(), tw))
	return tw
}

func withTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ---------- Positive tests ----------

// A follow whose second write never happened is completed by the worker.
func TestWorker_CompletesHalfAppliedFollow(t *testing.T) {
	mockStore := store.NewMock()
	a := newUser(t, mockStore, "almaz")
	b := newUser(t, mockStore, "nur")
	mockStore.Users[a].Following = []string{b}

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{eventMessage(t, models.Event{Type: models.EventUserFollowed, ActorID: a, TargetID: b})},
	}
	require.NoError(t, runWorkerOnce(withTimeout(t), mockStore, mockKafka))

	assert.Equal(t, []string{b}, mockStore.Users[a].Following)
	assert.Equal(t, []string{a}, mockStore.Users[b].Followers)
}

func TestWorker_RecountsTweets(t *testing.T) {
	mockStore := store.NewMock()
	a := newUser(t, mockStore, "almaz")
	newTweet(t, mockStore, a)
	mockStore.Users[a].Tweets = 7

	for _, typ := range []models.EventType{models.EventTweetCreated, models.EventTweetDeleted} {
		mockKafka := &appkafka.MockKafka{
			ReadMessages: []kafka.Message{eventMessage(t, models.Event{Type: typ, ActorID: a})},
		}
		require.NoError(t, runWorkerOnce(withTimeout(t), mockStore, mockKafka))
		assert.Equal(t, 1, mockStore.Users[a].Tweets, typ)
	}
}

func TestWorker_RecountsLikes(t *testing.T) {
	mockStore := store.NewMock()
	a := newUser(t, mockStore, "almaz")
	b := newUser(t, mockStore, "nur")
	tw := newTweet(t, mockStore, b)
	mockStore.Tweets[0].Favoriters = []string{a}
	mockStore.Tweets[0].FavoritesCount = 3

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{eventMessage(t, models.Event{Type: models.EventTweetLiked, ActorID: a, TargetID: b, TweetID: tw.ID})},
	}
	require.NoError(t, runWorkerOnce(withTimeout(t), mockStore, mockKafka))
	assert.Equal(t, 1, mockStore.Tweets[0].FavoritesCount)
}

// Replaying an event leaves the store unchanged.
func TestWorker_HandleIsIdempotent(t *testing.T) {
	mockStore := store.NewMock()
	a := newUser(t, mockStore, "almaz")
	b := newUser(t, mockStore, "nur")
	w := New(mockStore, &appkafka.MockKafka{}, 1, 1)

	ev := models.Event{Type: models.EventUserFollowed, ActorID: a, TargetID: b}
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Handle(context.Background(), ev))
	}
	assert.Equal(t, []string{b}, mockStore.Users[a].Following)
	assert.Equal(t, []string{a}, mockStore.Users[b].Followers)
}

// ---------- Negative tests ----------

// Simulate Kafka read error
func TestWorker_KafkaReadError(t *testing.T) {
	err := runWorkerOnce(withTimeout(t), store.NewMock(), &appkafka.MockKafkaFail{})
	assert.Error(t, err)
}

func TestWorker_InvalidEventJSON(t *testing.T) {
	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{{Value: []byte("{invalid-json}")}},
	}
	err := runWorkerOnce(withTimeout(t), store.NewMock(), mockKafka)
	assert.Error(t, err)
}

func TestWorker_UnknownEventType(t *testing.T) {
	w := New(store.NewMock(), &appkafka.MockKafka{}, 1, 1)
	err := w.Handle(context.Background(), models.Event{Type: "tweet.shared"})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestWorker_MissingUser(t *testing.T) {
	w := New(store.NewMock(), &appkafka.MockKafka{}, 1, 1)
	err := w.Handle(context.Background(), models.Event{Type: models.EventTweetCreated, ActorID: "ghost"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWorker_StoreFailure(t *testing.T) {
	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{eventMessage(t, models.Event{Type: models.EventTweetCreated, ActorID: "author123"})},
	}
	err := runWorkerOnce(withTimeout(t), &store.MockStoreFail{}, mockKafka)
	assert.Error(t, err)
}

func TestWorker_EmptyKafkaMessage(t *testing.T) {
	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{{Value: nil}},
	}
	err := runWorkerOnce(withTimeout(t), store.NewMock(), mockKafka)
	assert.NoError(t, err)
}

func TestWorker_ProcessRecordsOutcome(t *testing.T) {
	mockStore := store.NewMock()
	a := newUser(t, mockStore, "almaz")
	w := New(mockStore, &appkafka.MockKafka{}, 1, 1)

	created := string(models.EventTweetCreated)
	ok := metrics.WorkerEventsProcessed.WithLabelValues(created, "ok")
	skipped := metrics.WorkerEventsProcessed.WithLabelValues(created, "skipped")
	invalid := metrics.WorkerEventsProcessed.WithLabelValues("invalid", "skipped")
	okBefore, skippedBefore, invalidBefore := testutil.ToFloat64(ok), testutil.ToFloat64(skipped), testutil.ToFloat64(invalid)

	w.process(context.Background(), eventMessage(t, models.Event{Type: models.EventTweetCreated, ActorID: a}).Value)
	w.process(context.Background(), eventMessage(t, models.Event{Type: models.EventTweetCreated, ActorID: "ghost"}).Value)
	w.process(context.Background(), []byte(`{"actor_id":"x"}`))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, skippedBefore+1, testutil.ToFloat64(skipped))
	assert.Equal(t, invalidBefore+1, testutil.ToFloat64(invalid))
}
