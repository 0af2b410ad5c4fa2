package pullsub

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"

	"github.com/mirror520/pullsub/keyexpr"
	"github.com/mirror520/pullsub/sample"
)

var ErrInvalidRequest = errors.New("invalid request")

type SubscribeRequest struct {
	KeyExpr string
	Info    SubInfo
	Handler Handler
}

func SubscribeEndpoint(sess Session) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		req, ok := request.(SubscribeRequest)
		if !ok {
			return nil, ErrInvalidRequest
		}

		return sess.Subscribe(req.KeyExpr, req.Info, req.Handler)
	}
}

type PutRequest struct {
	Key     string
	Payload []byte
}

func PutEndpoint(sess Session) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		req, ok := request.(PutRequest)
		if !ok {
			return nil, ErrInvalidRequest
		}

		return sess.Put(ctx, req.Key, req.Payload)
	}
}

type PullRequest struct {
	ID SubscriptionID
}

// PullEndpoint responds with a nil *sample.Sample when the queue is empty.
func PullEndpoint(sess Session) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		req, ok := request.(PullRequest)
		if !ok {
			return nil, ErrInvalidRequest
		}

		return sess.Pull(ctx, req.ID)
	}
}

type CloseSubscriptionRequest struct {
	ID SubscriptionID
}

func CloseSubscriptionEndpoint(sess Session) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		req, ok := request.(CloseSubscriptionRequest)
		if !ok {
			return nil, ErrInvalidRequest
		}

		return nil, sess.CloseSubscription(req.ID)
	}
}

func DeliverEndpoint(sess Session) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		s, ok := request.(*sample.Sample)
		if !ok {
			return nil, ErrInvalidRequest
		}

		return nil, sess.Deliver(ctx, s)
	}
}

type QueryRequest struct {
	Selector string
}

func QueryEndpoint(repo sample.Repository) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		req, ok := request.(QueryRequest)
		if !ok {
			return nil, ErrInvalidRequest
		}

		selector, err := keyexpr.Parse(req.Selector)
		if err != nil {
			return nil, err
		}

		return repo.Query(selector)
	}
}

type EndpointSet struct {
	Subscribe         endpoint.Endpoint
	Put               endpoint.Endpoint
	Pull              endpoint.Endpoint
	CloseSubscription endpoint.Endpoint
	Query             endpoint.Endpoint // nil without storage
}

func MakeEndpoints(sess Session, repo sample.Repository) *EndpointSet {
	endpoints := &EndpointSet{
		Subscribe:         SubscribeEndpoint(sess),
		Put:               PutEndpoint(sess),
		Pull:              PullEndpoint(sess),
		CloseSubscription: CloseSubscriptionEndpoint(sess),
	}

	if repo != nil {
		endpoints.Query = QueryEndpoint(repo)
	}

	return endpoints
}
