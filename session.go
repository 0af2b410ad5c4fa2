// Package pullsub is an in-process publish/subscribe session. Samples put
// under a concrete key are routed to every subscription whose key
// expression intersects it: push subscriptions run their handler in line,
// pull subscriptions buffer the sample until the consumer polls for it.
package pullsub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/mirror520/pullsub/conf"
	"github.com/mirror520/pullsub/keyexpr"
	"github.com/mirror520/pullsub/sample"
)

type Session interface {
	// Subscribe declares a subscription on a key expression. Push
	// subscriptions require a handler; for pull subscriptions it is optional
	// and runs on every pulled sample.
	Subscribe(expr string, info SubInfo, handler Handler) (*Subscription, error)

	// Put publishes payload under a concrete key. It returns the routed
	// sample together with the joined delivery failures, if any.
	Put(ctx context.Context, key string, payload []byte) (*sample.Sample, error)

	// Deliver routes a sample built elsewhere, e.g. received from a peer.
	Deliver(ctx context.Context, s *sample.Sample) error

	// Pull dequeues the oldest buffered sample of a subscription without
	// blocking. A nil sample with a nil error means the queue is empty.
	Pull(ctx context.Context, id SubscriptionID) (*sample.Sample, error)

	// CloseSubscription is idempotent; pending samples are discarded.
	CloseSubscription(id SubscriptionID) error

	// Close closes every subscription, then the session itself.
	Close() error
}

type SessionMiddleware func(Session) Session

type session struct {
	log           *zap.Logger
	cfg           conf.Session
	clock         *sample.Clock
	subscriptions map[SubscriptionID]*Subscription
	closed        bool
	sync.RWMutex
}

// Open never fails: remote peers, if any, are attached afterwards.
func Open(cfg conf.Session) Session {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = conf.DefaultQueueCapacity
	}

	return &session{
		log: zap.L().With(
			zap.String("component", "session"),
		),
		cfg:           cfg,
		clock:         sample.NewClock(),
		subscriptions: make(map[SubscriptionID]*Subscription),
	}
}

func (s *session) Subscribe(expr string, info SubInfo, handler Handler) (*Subscription, error) {
	k, err := keyexpr.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}

	if err := info.validate(); err != nil {
		return nil, err
	}

	if info.Mode == Push && handler == nil {
		return nil, ErrHandlerRequired
	}

	sub := &Subscription{
		id:      NewSubscriptionID(),
		keyExpr: k,
		info:    info,
		handler: handler,
		sess:    s,
	}

	if info.Mode == Pull {
		sub.queue = newSampleQueue(s.cfg.QueueCapacity)
	}

	s.Lock()
	defer s.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	s.subscriptions[sub.id] = sub
	return sub, nil
}

func (s *session) Put(ctx context.Context, key string, payload []byte) (*sample.Sample, error) {
	k, err := keyexpr.Parse(key)
	if err != nil {
		return nil, err
	}

	if !k.IsConcrete() {
		return nil, fmt.Errorf("%w: '%s'", ErrNonConcreteKey, key)
	}

	ts, err := s.clock.Now()
	if err != nil {
		return nil, err
	}

	smp, err := sample.New(k, payload, ts)
	if err != nil {
		return nil, err
	}

	matches, err := s.match(smp.Key)
	if err != nil {
		return nil, err
	}

	return smp, s.route(ctx, smp, matches)
}

func (s *session) Deliver(ctx context.Context, smp *sample.Sample) error {
	if smp == nil || !smp.Key.IsConcrete() {
		return ErrNonConcreteKey
	}

	matches, err := s.match(smp.Key)
	if err != nil {
		return err
	}

	return s.route(ctx, smp, matches)
}

// match snapshots the open subscriptions intersecting key, in declaration
// order.
func (s *session) match(key keyexpr.KeyExpr) ([]*Subscription, error) {
	s.RLock()
	defer s.RUnlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	matches := make([]*Subscription, 0)
	for _, sub := range s.subscriptions {
		if sub.keyExpr.Intersects(key) {
			matches = append(matches, sub)
		}
	}

	slices.SortFunc(matches, func(a, b *Subscription) int {
		return a.id.compare(b.id)
	})

	return matches, nil
}

func (s *session) route(ctx context.Context, smp *sample.Sample, matches []*Subscription) error {
	var errs []error
	for _, sub := range matches {
		dctx := ctx
		cancel := func() {}
		if sub.info.Mode == Pull && sub.info.Reliability == Reliable && s.cfg.BlockTimeout > 0 {
			dctx, cancel = context.WithTimeout(ctx, s.cfg.BlockTimeout)
		}

		dropped, err := sub.deliver(dctx, smp)
		cancel()

		if dropped {
			s.log.Debug("oldest sample dropped",
				zap.String("subscription_id", sub.id.String()),
				zap.String("key", smp.Key.String()),
			)
		}

		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *session) Pull(ctx context.Context, id SubscriptionID) (*sample.Sample, error) {
	s.RLock()
	if s.closed {
		s.RUnlock()
		return nil, ErrSessionClosed
	}
	sub, ok := s.subscriptions[id]
	s.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubscription, id)
	}

	smp, err := sub.pull(ctx)
	if errors.Is(err, errQueueClosed) {
		if s.isClosed() {
			return nil, ErrSessionClosed
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubscription, id)
	}

	return smp, err
}

func (s *session) CloseSubscription(id SubscriptionID) error {
	s.Lock()
	sub, ok := s.subscriptions[id]
	delete(s.subscriptions, id)
	s.Unlock()

	if ok {
		sub.close()
	}

	return nil
}

func (s *session) Close() error {
	s.Lock()
	if s.closed {
		s.Unlock()
		return nil
	}

	s.closed = true
	subs := s.subscriptions
	s.subscriptions = make(map[SubscriptionID]*Subscription)
	s.Unlock()

	for _, sub := range subs {
		sub.close()
	}

	return nil
}

func (s *session) isClosed() bool {
	s.RLock()
	defer s.RUnlock()
	return s.closed
}
