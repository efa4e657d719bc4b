package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

func TestWatermillPublisherPublishesEvents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))
	defer pubsub.Close()

	messages, err := pubsub.Subscribe(context.Background(), "predict.results")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	publisher := NewWatermillPublisher(pubsub, "predict.results", logger)

	event := RecomputeCompletedEvent{
		ExamID:      1,
		TriggeredBy: "staff-1",
		Outcomes:    map[string]string{"score": "updated"},
		OccurredAt:  time.Now().UTC(),
	}
	if err := publisher.PublishRecomputeCompleted(context.Background(), event); err != nil {
		t.Fatalf("PublishRecomputeCompleted failed: %v", err)
	}

	select {
	case msg := <-messages:
		if got := msg.Metadata.Get("event_type"); got != EventRecomputeCompleted {
			t.Errorf("event_type = %q, want %q", got, EventRecomputeCompleted)
		}
		var decoded RecomputeCompletedEvent
		if err := json.Unmarshal(msg.Payload, &decoded); err != nil {
			t.Fatalf("payload unmarshal failed: %v", err)
		}
		if decoded.ExamID != 1 || decoded.Outcomes["score"] != "updated" {
			t.Errorf("decoded = %+v", decoded)
		}
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}
