package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmmiddleware "github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sekolah-go-api/internal/correlation"
)

func TestWatermillPublisherPublishesToTopic(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 1}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(context.Background(), "sekolah.submissions")
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubSub, "sekolah.submissions", zerolog.Nop())
	submissionID := uint(7)
	ctx := correlation.WithID(context.Background(), "req-123")
	err = publisher.PublishSubmissionEvent(ctx, SubmissionEvent{
		Type:         EventItemSubmitted,
		ItemID:       3,
		ItemKind:     "test",
		SubmissionID: &submissionID,
		AnonymousID:  "anon-1",
		ActorID:      11,
		Recipients:   2,
		Source:       "caller-set",
		Version:      "0.1",
	})
	require.NoError(t, err)

	select {
	case msg := <-messages:
		msg.Ack()
		require.Equal(t, "item_submitted", msg.Metadata.Get("event_type"))
		require.Equal(t, eventSource, msg.Metadata.Get("source"))
		require.Equal(t, "req-123", msg.Metadata.Get(wmmiddleware.CorrelationIDMetadataKey))
		require.Equal(t, "req-123", wmmiddleware.MessageCorrelationID(msg))

		var decoded SubmissionEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		require.Equal(t, msg.UUID, decoded.ID)
		require.Equal(t, uint(3), decoded.ItemID)
		require.Equal(t, "anon-1", decoded.AnonymousID)
		require.Equal(t, "req-123", decoded.CorrelationID)
		require.Equal(t, eventSource, decoded.Source)
		require.Equal(t, eventVersion, decoded.Version)
		require.False(t, decoded.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("expected message on topic")
	}
}

func TestWatermillPublisherOmitsCorrelationWithoutRequest(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 1}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(context.Background(), "sekolah.items")
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubSub, "sekolah.items", zerolog.Nop())
	require.NoError(t, publisher.PublishSubmissionEvent(context.Background(), SubmissionEvent{Type: EventItemPublished, ItemID: 4}))

	select {
	case msg := <-messages:
		msg.Ack()
		require.Empty(t, wmmiddleware.MessageCorrelationID(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("expected message on topic")
	}
}

func TestRecordingPublisher(t *testing.T) {
	rec := &RecordingPublisher{}
	require.NoError(t, rec.PublishSubmissionEvent(context.Background(), SubmissionEvent{Type: EventItemCorrected}))
	require.Len(t, rec.Events(), 1)

	rec.Err = errors.New("broker down")
	require.Error(t, rec.PublishSubmissionEvent(context.Background(), SubmissionEvent{Type: EventItemCorrected}))
	require.Len(t, rec.Events(), 1)
}

func TestLoggerAdapterWritesFields(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewLoggerAdapter(zerolog.New(&buf)).With(watermill.LogFields{"topic": "t1"})
	adapter.Error("publish failed", errors.New("boom"), watermill.LogFields{"attempt": 2})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "publish failed", entry["message"])
	require.Equal(t, "t1", entry["topic"])
	require.Equal(t, "boom", entry["error"])
	require.EqualValues(t, 2, entry["attempt"])
}

func TestNewKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(PublisherConfig{Topic: "x"}, zerolog.Nop())
	require.Error(t, err)
}
