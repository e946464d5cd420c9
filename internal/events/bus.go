package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Handler consumes one delivered envelope. Handlers run on the subscriber's
// goroutine; a slow handler delays later messages on the same channel.
type Handler func(ctx context.Context, env Envelope)

// Bus is the publish/subscribe channel between the API layer and the
// background consumers.
type Bus interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
	Subscribe(ctx context.Context, channel string, handler Handler) error
}

// newEnvelope marshals a payload and stamps id and timestamp.
func newEnvelope(channel string, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        uuid.NewString(),
		Channel:   channel,
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}, nil
}
