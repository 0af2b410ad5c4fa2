package pullsub

import (
	"context"

	"go.uber.org/zap"

	"github.com/mirror520/pullsub/sample"
)

func LoggingMiddleware(log *zap.Logger) SessionMiddleware {
	return func(next Session) Session {
		return &loggingMiddleware{
			log.With(
				zap.String("service", "pullsub"),
				zap.String("middleware", "logging"),
			),
			next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Session
}

func (mw *loggingMiddleware) Subscribe(expr string, info SubInfo, handler Handler) (*Subscription, error) {
	log := mw.log.With(
		zap.String("action", "subscribe"),
		zap.String("key_expr", expr),
		zap.String("mode", info.Mode.String()),
		zap.String("reliability", info.Reliability.String()),
	)

	sub, err := mw.next.Subscribe(expr, info, handler)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	sub.bind(mw)

	log.Info("subscription declared", zap.String("subscription_id", sub.ID().String()))
	return sub, nil
}

func (mw *loggingMiddleware) Put(ctx context.Context, key string, payload []byte) (*sample.Sample, error) {
	log := mw.log.With(
		zap.String("action", "put"),
		zap.String("key", key),
		zap.Int("size", len(payload)),
	)

	s, err := mw.next.Put(ctx, key, payload)
	if err != nil {
		log.Error(err.Error())
		return s, err
	}

	log.Debug("sample put", zap.String("timestamp", s.Timestamp.String()))
	return s, nil
}

func (mw *loggingMiddleware) Deliver(ctx context.Context, s *sample.Sample) error {
	log := mw.log.With(
		zap.String("action", "deliver"),
	)

	if s != nil {
		log = log.With(zap.String("key", s.Key.String()))
	}

	err := mw.next.Deliver(ctx, s)
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Debug("sample delivered")
	return nil
}

func (mw *loggingMiddleware) Pull(ctx context.Context, id SubscriptionID) (*sample.Sample, error) {
	log := mw.log.With(
		zap.String("action", "pull"),
		zap.String("subscription_id", id.String()),
	)

	s, err := mw.next.Pull(ctx, id)
	if err != nil {
		log.Error(err.Error())
		return s, err
	}

	if s == nil {
		log.Debug("queue empty")
		return nil, nil
	}

	log.Debug("sample pulled", zap.String("key", s.Key.String()))
	return s, nil
}

func (mw *loggingMiddleware) CloseSubscription(id SubscriptionID) error {
	log := mw.log.With(
		zap.String("action", "close_subscription"),
		zap.String("subscription_id", id.String()),
	)

	err := mw.next.CloseSubscription(id)
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("subscription closed")
	return nil
}

func (mw *loggingMiddleware) Close() error {
	log := mw.log.With(
		zap.String("action", "close"),
	)

	err := mw.next.Close()
	if err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("session closed")
	return nil
}
