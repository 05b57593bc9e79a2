package queue

import (
	"context"
	"errors"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Handler processes one delivery body. Returning true settles the delivery;
// false leaves it for redelivery.
type Handler func(ctx context.Context, body string) bool

var ErrUnknownBackend = errors.New("unknown queue backend")
