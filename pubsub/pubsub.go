package pubsub

import (
	"context"
	"errors"
)

var (
	ErrTransport = errors.New("transport error")
	ErrClosed    = errors.New("link closed")
)

// PubSub is a link to remote peers: Publish sends, Subscribe registers the
// receive callback. Implementations never echo a message back to the link
// that published it.
type PubSub interface {
	Publish(msg *Message) error
	Subscribe(callback MessageHandler) error
	Close() error
}

type MessageHandler func(ctx context.Context, msg *Message) error

type Message struct {
	Topic  string
	Data   []byte
	Header map[string]string
}
