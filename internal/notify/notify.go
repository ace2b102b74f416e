// Package notify delivers rendered change descriptions to external channels.
package notify

import (
	"context"
	"fmt"
)

// Message is one rendered change notification. Body carries the full report;
// Summary is a reduced one-line form used when the full message cannot be
// delivered.
type Message struct {
	Monitor string
	Summary string
	Body    string
}

// Sink delivers messages to an external channel.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// DeliveryError reports a failed delivery attempt.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver via %s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
