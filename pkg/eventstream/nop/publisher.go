// Package nop provides a Publisher that discards every event. It is the
// default when event streaming is not configured.
package nop

import (
	"context"

	"github.com/loomworks/loom/pkg/eventstream"
)

// Publisher discards all events.
type Publisher struct{}

// NewPublisher creates a no-op publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) PublishNode(_ context.Context, _ *eventstream.NodePersistedEvent) error {
	return nil
}

func (p *Publisher) Close() error {
	return nil
}

// Ensure Publisher implements eventstream.Publisher
var _ eventstream.Publisher = (*Publisher)(nil)
