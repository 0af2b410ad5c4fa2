package pullsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mirror520/pullsub/conf"
	"github.com/mirror520/pullsub/persistence/inmem"
	"github.com/mirror520/pullsub/sample"
)

func TestEndpoints(t *testing.T) {
	assert := assert.New(t)

	sess := Open(conf.Session{})
	defer sess.Close()

	repo := inmem.NewSampleRepository()
	defer repo.Close()

	if _, err := AttachStorage(sess, "demo/**", repo); err != nil {
		assert.Fail(err.Error())
		return
	}

	endpoints := MakeEndpoints(sess, repo)
	ctx := context.Background()

	resp, err := endpoints.Subscribe(ctx, SubscribeRequest{
		KeyExpr: "demo/example/**",
		Info:    pullReliable,
	})
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	sub := resp.(*Subscription)

	resp, err = endpoints.Put(ctx, PutRequest{Key: "demo/example/a", Payload: []byte("1")})
	if assert.NoError(err) {
		assert.Equal("demo/example/a", resp.(*sample.Sample).Key.String())
	}

	resp, err = endpoints.Pull(ctx, PullRequest{ID: sub.ID()})
	if assert.NoError(err) {
		assert.Equal("1", string(resp.(*sample.Sample).Payload))
	}

	resp, err = endpoints.Pull(ctx, PullRequest{ID: sub.ID()})
	assert.NoError(err)
	assert.Nil(resp.(*sample.Sample))

	resp, err = endpoints.Query(ctx, QueryRequest{Selector: "demo/*/a"})
	if assert.NoError(err) {
		assert.Len(resp.([]*sample.Sample), 1)
	}

	_, err = endpoints.Query(ctx, QueryRequest{Selector: "demo//a"})
	assert.ErrorIs(err, ErrMalformedKeyExpr)

	_, err = endpoints.CloseSubscription(ctx, CloseSubscriptionRequest{ID: sub.ID()})
	assert.NoError(err)

	_, err = endpoints.Pull(ctx, PullRequest{ID: sub.ID()})
	assert.ErrorIs(err, ErrUnknownSubscription)

	_, err = DeliverEndpoint(sess)(ctx, newTestSample("demo/remote"))
	assert.NoError(err)

	found, err := repo.Find(newTestSample("demo/remote").Key)
	if assert.NoError(err) {
		assert.Equal("demo/remote", string(found.Payload))
	}

	for _, endpoint := range []func(context.Context, any) (any, error){
		endpoints.Subscribe,
		endpoints.Put,
		endpoints.Pull,
		endpoints.CloseSubscription,
		endpoints.Query,
		DeliverEndpoint(sess),
	} {
		_, err := endpoint(ctx, "garbage")
		assert.ErrorIs(err, ErrInvalidRequest)
	}

	assert.Nil(MakeEndpoints(sess, nil).Query)
}
