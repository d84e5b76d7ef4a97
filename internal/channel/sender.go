// Package channel holds the message delivery adapters. Each adapter makes
// exactly one send attempt; retry policy belongs to the job executor.
package channel

import (
	"context"
	"fmt"
)

// Message is one personalized send.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers one message on one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Registry maps a campaign channel name to its adapter.
type Registry map[string]Sender

func (r Registry) For(channel string) (Sender, error) {
	s, ok := r[channel]
	if !ok {
		return nil, fmt.Errorf("no sender registered for channel %q", channel)
	}
	return s, nil
}
