// Package publisher defines the notification message published when a run
// finishes, along with the interface the Pub/Sub and in-memory publishers
// implement.
package publisher

import "context"

// Message is one notification: a JSON-encodable body plus string attributes
// usable for subscription filters.
type Message struct {
	Topic      string
	Data       any
	Attributes map[string]string
}

// Publisher delivers messages and returns the broker-assigned ID.
type Publisher interface {
	Publish(ctx context.Context, msg Message) (string, error)
}
