package pubsub

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/kit/endpoint"
	"github.com/oklog/ulid/v2"

	"github.com/mirror520/pullsub/keyexpr"
	"github.com/mirror520/pullsub/pubsub"
	"github.com/mirror520/pullsub/sample"
)

const HeaderTimestamp = "Pullsub-Timestamp"

var ErrInvalidMessage = errors.New("invalid message")

func EncodeSample(s *sample.Sample) *pubsub.Message {
	return &pubsub.Message{
		Topic: s.Key.String(),
		Data:  s.Payload,
		Header: map[string]string{
			HeaderTimestamp: s.Timestamp.String(),
		},
	}
}

// DecodeSample keeps the timestamp assigned by the origin session.
func DecodeSample(msg *pubsub.Message) (*sample.Sample, error) {
	key, err := keyexpr.Parse(msg.Topic)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	raw, ok := msg.Header[HeaderTimestamp]
	if !ok {
		return nil, fmt.Errorf("%w: timestamp not found", ErrInvalidMessage)
	}

	ts, err := ulid.ParseStrict(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	s, err := sample.New(key, msg.Data, ts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	return s, nil
}

// DeliverHandler feeds every received message to endpoint as a sample.
func DeliverHandler(endpoint endpoint.Endpoint) pubsub.MessageHandler {
	return func(ctx context.Context, msg *pubsub.Message) error {
		s, err := DecodeSample(msg)
		if err != nil {
			return err
		}

		_, err = endpoint(ctx, s)
		return err
	}
}
