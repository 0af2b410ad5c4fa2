package pullsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mirror520/pullsub/conf"
	"github.com/mirror520/pullsub/pubsub/inproc"
)

func TestLoggingMiddleware(t *testing.T) {
	assert := assert.New(t)

	core, logs := observer.New(zapcore.DebugLevel)
	sess := LoggingMiddleware(zap.New(core))(Open(conf.Session{}))

	ctx := context.Background()

	sub, err := sess.Subscribe("demo/**", pullReliable, nil)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	sess.Put(ctx, "demo/a", []byte("1"))
	sess.Pull(ctx, sub.ID())
	sub.Pull(ctx)
	sess.Put(ctx, "demo/*", nil)
	sub.Close()
	sess.Close()

	actions := make([]string, 0)
	for _, entry := range logs.All() {
		actions = append(actions, entry.ContextMap()["action"].(string)+":"+entry.Message)
	}

	assert.Equal([]string{
		"subscribe:subscription declared",
		"put:sample put",
		"pull:sample pulled",
		"pull:queue empty",
		"put:non-concrete key: 'demo/*'",
		"close_subscription:subscription closed",
		"close:session closed",
	}, actions)

	errs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	if assert.Len(errs, 1) {
		assert.Equal("demo/*", errs[0].ContextMap()["key"])
	}
}

func TestSubscriptionHandleUsesMiddlewares(t *testing.T) {
	assert := assert.New(t)

	core, logs := observer.New(zapcore.DebugLevel)

	inner := LoggingMiddleware(zap.New(core))(Open(conf.Session{}))
	sess, err := Connect(inner, inproc.NewBus().Connect(), 0)
	if err != nil {
		assert.Fail(err.Error())
		return
	}
	defer sess.Close()

	ctx := context.Background()

	sub, err := sess.Subscribe("demo/**", pullReliable, nil)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	sess.Put(ctx, "demo/a", []byte("1"))

	s, err := sub.Pull(ctx)
	assert.NoError(err)
	assert.NotNil(s)

	assert.NoError(sub.Close())
	assert.True(sub.Closed())

	assert.Equal(1, logs.FilterMessage("sample pulled").Len())
	assert.Equal(1, logs.FilterMessage("subscription closed").Len())
}
