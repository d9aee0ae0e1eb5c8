package memory

import (
	"context"
	"testing"

	"github.com/JakeFAU/contact-harvester/internal/publisher"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), publisher.Message{Topic: "runs", Data: map[string]int{"sent": 2}})
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), publisher.Message{
		Topic:      "runs",
		Data:       "payload",
		Attributes: map[string]string{"kind": "complete"},
	})
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[1].Attributes["kind"] != "complete" {
		t.Fatalf("attributes not recorded: %+v", msgs[1])
	}

	msgs[0].Topic = "modified"
	if pub.Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}
}
