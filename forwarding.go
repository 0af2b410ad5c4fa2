package pullsub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/kit/endpoint"

	"github.com/mirror520/pullsub/pubsub"
	"github.com/mirror520/pullsub/sample"
	transport "github.com/mirror520/pullsub/transport/pubsub"
)

// Connect attaches sess to remote peers through link: received samples are
// delivered locally, and samples put on the returned session are sent to the
// peers. Closing the returned session closes the link.
//
// Each received sample is delivered within timeout, after which reliable
// subscriptions that are still full report ErrBackpressure and the sample is
// lost for them. A zero timeout lets a full reliable queue block the link.
func Connect(sess Session, link pubsub.PubSub, timeout time.Duration) (Session, error) {
	endpoint := DeliverEndpoint(sess)
	if timeout > 0 {
		endpoint = DeliverTimeoutMiddleware(timeout)(endpoint)
	}

	if err := link.Subscribe(transport.DeliverHandler(endpoint)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	return ForwardingMiddleware(link)(sess), nil
}

func DeliverTimeoutMiddleware(timeout time.Duration) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request any) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return next(ctx, request)
		}
	}
}

func ForwardingMiddleware(link pubsub.PubSub) SessionMiddleware {
	return func(next Session) Session {
		return &forwardingMiddleware{
			link: link,
			next: next,
		}
	}
}

type forwardingMiddleware struct {
	link pubsub.PubSub
	next Session
}

func (mw *forwardingMiddleware) Subscribe(expr string, info SubInfo, handler Handler) (*Subscription, error) {
	sub, err := mw.next.Subscribe(expr, info, handler)
	if err != nil {
		return nil, err
	}

	sub.bind(mw)
	return sub, nil
}

// Put routes locally first; the sample is forwarded even when a local
// delivery failed.
func (mw *forwardingMiddleware) Put(ctx context.Context, key string, payload []byte) (*sample.Sample, error) {
	s, err := mw.next.Put(ctx, key, payload)
	if s == nil {
		return nil, err
	}

	if perr := mw.link.Publish(transport.EncodeSample(s)); perr != nil {
		err = errors.Join(err, fmt.Errorf("%w: %w", ErrTransport, perr))
	}

	return s, err
}

func (mw *forwardingMiddleware) Deliver(ctx context.Context, s *sample.Sample) error {
	return mw.next.Deliver(ctx, s)
}

func (mw *forwardingMiddleware) Pull(ctx context.Context, id SubscriptionID) (*sample.Sample, error) {
	return mw.next.Pull(ctx, id)
}

func (mw *forwardingMiddleware) CloseSubscription(id SubscriptionID) error {
	return mw.next.CloseSubscription(id)
}

func (mw *forwardingMiddleware) Close() error {
	err := mw.next.Close()

	if lerr := mw.link.Close(); lerr != nil {
		err = errors.Join(err, fmt.Errorf("%w: %w", ErrTransport, lerr))
	}

	return err
}
