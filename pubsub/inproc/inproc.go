// Package inproc links sessions living in the same process. Messages are
// handed to the other links of the bus synchronously, on the publisher's
// goroutine.
package inproc

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mirror520/pullsub/conf"
	"github.com/mirror520/pullsub/pubsub"
)

var (
	buses   = make(map[string]*Bus)
	busesMu sync.Mutex
)

// NewPubSub connects to the process-wide bus named after cfg.Prefix.
func NewPubSub(cfg conf.Link) (pubsub.PubSub, error) {
	busesMu.Lock()
	bus, ok := buses[cfg.Prefix]
	if !ok {
		bus = NewBus()
		buses[cfg.Prefix] = bus
	}
	busesMu.Unlock()

	return bus.Connect(), nil
}

type Bus struct {
	links  map[uint64]*pubSub
	nextID uint64
	sync.RWMutex
}

func NewBus() *Bus {
	return &Bus{
		links: make(map[uint64]*pubSub),
	}
}

func (b *Bus) Connect() pubsub.PubSub {
	b.Lock()
	defer b.Unlock()

	b.nextID++
	ps := &pubSub{
		log: zap.L().With(
			zap.String("pubsub", "inproc"),
		),
		id:  b.nextID,
		bus: b,
	}
	b.links[ps.id] = ps

	return ps
}

func (b *Bus) peers(id uint64) []*pubSub {
	b.RLock()
	defer b.RUnlock()

	peers := make([]*pubSub, 0, len(b.links))
	for peerID, peer := range b.links {
		if peerID != id {
			peers = append(peers, peer)
		}
	}
	return peers
}

func (b *Bus) disconnect(id uint64) {
	b.Lock()
	delete(b.links, id)
	b.Unlock()
}

type pubSub struct {
	log       *zap.Logger
	id        uint64
	bus       *Bus
	callbacks []pubsub.MessageHandler
	closed    bool
	sync.RWMutex
}

func (ps *pubSub) Publish(msg *pubsub.Message) error {
	ps.RLock()
	closed := ps.closed
	ps.RUnlock()

	if closed {
		return pubsub.ErrClosed
	}

	for _, peer := range ps.bus.peers(ps.id) {
		peer.receive(msg)
	}

	return nil
}

func (ps *pubSub) receive(msg *pubsub.Message) {
	ps.RLock()
	if ps.closed {
		ps.RUnlock()
		return
	}
	callbacks := ps.callbacks
	ps.RUnlock()

	for _, callback := range callbacks {
		if err := callback(context.Background(), clone(msg)); err != nil {
			ps.log.Error(err.Error(),
				zap.Uint64("link", ps.id),
				zap.String("topic", msg.Topic),
			)
		}
	}
}

func (ps *pubSub) Subscribe(callback pubsub.MessageHandler) error {
	ps.Lock()
	defer ps.Unlock()

	if ps.closed {
		return pubsub.ErrClosed
	}

	ps.callbacks = append(ps.callbacks, callback)
	return nil
}

func (ps *pubSub) Close() error {
	ps.Lock()
	if ps.closed {
		ps.Unlock()
		return nil
	}
	ps.closed = true
	ps.callbacks = nil
	ps.Unlock()

	ps.bus.disconnect(ps.id)
	return nil
}

func clone(msg *pubsub.Message) *pubsub.Message {
	data := make([]byte, len(msg.Data))
	copy(data, msg.Data)

	header := make(map[string]string, len(msg.Header))
	for k, v := range msg.Header {
		header[k] = v
	}

	return &pubsub.Message{
		Topic:  msg.Topic,
		Data:   data,
		Header: header,
	}
}
