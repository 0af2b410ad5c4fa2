package pubsub

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mirror520/pullsub/conf"
)

type factory func(cfg conf.Link) (PubSub, error)

var (
	factories = make(map[conf.TransportProvider]factory)
	mu        sync.RWMutex
)

func AddFactory(provider conf.TransportProvider, factory factory) {
	mu.Lock()
	factories[provider] = factory
	mu.Unlock()
}

// NewPubSub connects a link with the configured provider. Every failure
// wraps ErrTransport.
func NewPubSub(cfg conf.Link) (PubSub, error) {
	mu.RLock()
	factory, ok := factories[cfg.Provider]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrTransport, errors.New("provider not supported"))
	}

	ps, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, cfg.Provider, err)
	}

	return ps, nil
}
