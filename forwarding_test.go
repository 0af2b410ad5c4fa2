package pullsub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mirror520/pullsub/conf"
	"github.com/mirror520/pullsub/pubsub"
	"github.com/mirror520/pullsub/pubsub/inproc"
)

type forwardingTestSuite struct {
	suite.Suite
	bus    *inproc.Bus
	local  Session
	remote Session
}

func (suite *forwardingTestSuite) SetupTest() {
	suite.bus = inproc.NewBus()

	local, err := Connect(Open(conf.Session{}), suite.bus.Connect(), 0)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	remote, err := Connect(Open(conf.Session{}), suite.bus.Connect(), 0)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.local = local
	suite.remote = remote
}

func (suite *forwardingTestSuite) TearDownTest() {
	suite.local.Close()
	suite.remote.Close()
}

func (suite *forwardingTestSuite) TestPutReachesPeers() {
	ctx := context.Background()

	remoteSub, _ := suite.remote.Subscribe("/demo/example/**", pullReliable, nil)
	localSub, _ := suite.local.Subscribe("/demo/example/**", pullReliable, nil)

	put, err := suite.local.Put(ctx, "/demo/example/a", []byte("hello"))
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	s, err := remoteSub.Pull(ctx)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal("/demo/example/a", s.Key.String())
	suite.Equal("hello", string(s.Payload))
	suite.Equal(put.Timestamp, s.Timestamp)

	// routed locally once, never echoed back
	suite.Equal(1, localSub.Len())

	s, _ = remoteSub.Pull(ctx)
	suite.Nil(s)
}

func (suite *forwardingTestSuite) TestDeliverIsNotForwarded() {
	ctx := context.Background()

	remoteSub, _ := suite.remote.Subscribe("demo/**", pullReliable, nil)

	suite.NoError(suite.local.Deliver(ctx, newTestSample("demo/a")))
	suite.Zero(remoteSub.Len())
}

func (suite *forwardingTestSuite) TestCloseClosesLink() {
	ctx := context.Background()

	remoteSub, _ := suite.remote.Subscribe("demo/**", pullReliable, nil)

	suite.NoError(suite.local.Close())

	_, err := suite.local.Put(ctx, "demo/a", nil)
	suite.ErrorIs(err, ErrSessionClosed)

	// the closed peer no longer receives
	_, err = suite.remote.Put(ctx, "demo/b", nil)
	suite.NoError(err)
	suite.Equal(1, remoteSub.Len())
}

func TestForwardingTestSuite(t *testing.T) {
	suite.Run(t, new(forwardingTestSuite))
}

type failingLink struct {
	pubsub.PubSub
}

func (l *failingLink) Publish(msg *pubsub.Message) error {
	return errors.New("unreachable")
}

func (l *failingLink) Subscribe(callback pubsub.MessageHandler) error {
	return nil
}

func (l *failingLink) Close() error {
	return nil
}

func TestForwardingPublishFailure(t *testing.T) {
	sess, err := Connect(Open(conf.Session{}), &failingLink{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	sub, _ := sess.Subscribe("demo/**", pullReliable, nil)

	s, err := sess.Put(context.Background(), "demo/a", nil)
	if s == nil {
		t.Fatal("sample not returned")
	}

	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}

	if sub.Len() != 1 {
		t.Fatal("local delivery skipped")
	}
}

func TestDeliverTimeoutUnblocksPublisher(t *testing.T) {
	bus := inproc.NewBus()

	local, err := Connect(Open(conf.Session{}), bus.Connect(), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer local.Close()

	remote, err := Connect(Open(conf.Session{QueueCapacity: 1}), bus.Connect(), 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer remote.Close()

	sub, _ := remote.Subscribe("demo/**", pullReliable, nil)

	ctx := context.Background()
	if _, err := remote.Put(ctx, "demo/a", nil); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := local.Put(ctx, "demo/b", nil)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}

	case <-time.After(2 * time.Second):
		t.Fatal("publisher stalled by a full peer queue")
	}

	if sub.Len() != 1 {
		t.Fatalf("unexpected queue length %d", sub.Len())
	}
}
