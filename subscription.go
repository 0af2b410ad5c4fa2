package pullsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/mirror520/pullsub/keyexpr"
	"github.com/mirror520/pullsub/sample"
)

type SubscriptionID ulid.ULID

func NewSubscriptionID() SubscriptionID {
	return SubscriptionID(ulid.Make())
}

func ParseSubscriptionID(id string) (SubscriptionID, error) {
	u, err := ulid.Parse(id)
	if err != nil {
		return SubscriptionID{}, err
	}

	return SubscriptionID(u), nil
}

func (id SubscriptionID) String() string {
	return ulid.ULID(id).String()
}

func (id SubscriptionID) compare(other SubscriptionID) int {
	return ulid.ULID(id).Compare(ulid.ULID(other))
}

func (id SubscriptionID) MarshalText() ([]byte, error) {
	return ulid.ULID(id).MarshalText()
}

func (id *SubscriptionID) UnmarshalText(text []byte) error {
	return (*ulid.ULID)(id).UnmarshalText(text)
}

type Mode int

const (
	Push Mode = iota
	Pull
)

func ParseMode(s string) (Mode, error) {
	switch s {
	case "push":
		return Push, nil
	case "pull":
		return Pull, nil
	default:
		return -1, ErrInvalidSubInfo
	}
}

func (m Mode) String() string {
	switch m {
	case Push:
		return "push"
	case Pull:
		return "pull"
	default:
		return "unknown"
	}
}

type Reliability int

const (
	Reliable Reliability = iota
	BestEffort
)

func ParseReliability(s string) (Reliability, error) {
	switch s {
	case "reliable", "":
		return Reliable, nil
	case "best_effort":
		return BestEffort, nil
	default:
		return -1, ErrInvalidSubInfo
	}
}

func (r Reliability) String() string {
	switch r {
	case Reliable:
		return "reliable"
	case BestEffort:
		return "best_effort"
	default:
		return "unknown"
	}
}

type SubInfo struct {
	Mode        Mode
	Reliability Reliability
}

func (info SubInfo) validate() error {
	if info.Mode != Push && info.Mode != Pull {
		return fmt.Errorf("%w: mode %d", ErrInvalidSubInfo, info.Mode)
	}

	if info.Reliability != Reliable && info.Reliability != BestEffort {
		return fmt.Errorf("%w: reliability %d", ErrInvalidSubInfo, info.Reliability)
	}

	return nil
}

// Handler receives samples on the goroutine that delivers them: the caller of
// Put for push subscriptions, the caller of Pull for pull subscriptions.
// A handler must not close its own subscription or session synchronously.
type Handler func(ctx context.Context, s *sample.Sample) error

type Subscription struct {
	id      SubscriptionID
	keyExpr keyexpr.KeyExpr
	info    SubInfo
	handler Handler
	queue   *sampleQueue // pull mode only

	// the outermost session the subscription was declared through
	sess Session

	// held for reading while the handler runs, so close waits for
	// in-flight deliveries
	mu     sync.RWMutex
	closed bool
}

func (sub *Subscription) ID() SubscriptionID {
	return sub.id
}

func (sub *Subscription) KeyExpr() keyexpr.KeyExpr {
	return sub.keyExpr
}

func (sub *Subscription) Info() SubInfo {
	return sub.info
}

// Len returns the number of buffered samples.
func (sub *Subscription) Len() int {
	if sub.queue == nil {
		return 0
	}
	return sub.queue.len()
}

// Dropped returns how many samples a full BestEffort queue evicted.
func (sub *Subscription) Dropped() uint64 {
	if sub.queue == nil {
		return 0
	}
	return sub.queue.droppedCount()
}

func (sub *Subscription) Closed() bool {
	sub.mu.RLock()
	defer sub.mu.RUnlock()
	return sub.closed
}

// bind routes Pull and Close through s. Middlewares rebind after a
// successful Subscribe, before the subscription is handed out.
func (sub *Subscription) bind(s Session) {
	sub.sess = s
}

// Pull dequeues the oldest buffered sample; see Session.Pull.
func (sub *Subscription) Pull(ctx context.Context) (*sample.Sample, error) {
	return sub.sess.Pull(ctx, sub.id)
}

func (sub *Subscription) Close() error {
	return sub.sess.CloseSubscription(sub.id)
}

func (sub *Subscription) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		ID          SubscriptionID  `json:"id"`
		KeyExpr     keyexpr.KeyExpr `json:"key_expr"`
		Mode        string          `json:"mode"`
		Reliability string          `json:"reliability"`
	}{
		ID:          sub.id,
		KeyExpr:     sub.keyExpr,
		Mode:        sub.info.Mode.String(),
		Reliability: sub.info.Reliability.String(),
	})
}

func (sub *Subscription) deliver(ctx context.Context, s *sample.Sample) (dropped bool, err error) {
	if sub.info.Mode == Push {
		sub.mu.RLock()
		defer sub.mu.RUnlock()

		if sub.closed {
			return false, nil
		}

		return false, sub.invoke(ctx, s)
	}

	dropped, err = sub.queue.push(ctx, s, sub.info.Reliability)
	if err != nil {
		if errors.Is(err, errQueueClosed) {
			return false, nil
		}

		return false, fmt.Errorf("%w: subscription %s: %w", ErrBackpressure, sub.id, err)
	}

	return dropped, nil
}

func (sub *Subscription) pull(ctx context.Context) (*sample.Sample, error) {
	if sub.queue == nil {
		return nil, nil
	}

	s, err := sub.queue.pop()
	if err != nil || s == nil {
		return nil, err
	}

	if sub.handler == nil {
		return s, nil
	}

	sub.mu.RLock()
	defer sub.mu.RUnlock()

	if sub.closed {
		return nil, errQueueClosed
	}

	return s, sub.invoke(ctx, s)
}

func (sub *Subscription) invoke(ctx context.Context, s *sample.Sample) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: subscription %s: panic: %v", ErrHandlerFailed, sub.id, r)
		}
	}()

	if err := sub.handler(ctx, s); err != nil {
		return fmt.Errorf("%w: subscription %s: %w", ErrHandlerFailed, sub.id, err)
	}

	return nil
}

// close reports whether this call closed the subscription.
func (sub *Subscription) close() bool {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return false
	}
	sub.closed = true
	sub.mu.Unlock()

	if sub.queue != nil {
		sub.queue.close()
	}

	return true
}
