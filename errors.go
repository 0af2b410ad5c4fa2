package pullsub

import (
	"errors"

	"github.com/mirror520/pullsub/keyexpr"
	"github.com/mirror520/pullsub/pubsub"
	"github.com/mirror520/pullsub/sample"
)

var (
	ErrMalformedKeyExpr    = keyexpr.ErrMalformedKeyExpr
	ErrNonConcreteKey      = sample.ErrNonConcreteKey
	ErrInvalidPattern      = errors.New("invalid pattern")
	ErrInvalidSubInfo      = errors.New("invalid subscription info")
	ErrHandlerRequired     = errors.New("push subscription requires a handler")
	ErrUnknownSubscription = errors.New("unknown subscription")
	ErrSessionClosed       = errors.New("session closed")
	ErrHandlerFailed       = errors.New("handler failed")
	ErrBackpressure        = errors.New("reliable queue full")
	ErrTransport           = pubsub.ErrTransport
)
