package nats

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/mirror520/pullsub/conf"
	"github.com/mirror520/pullsub/pubsub"
)

// HeaderTopic carries the unescaped topic next to the subject.
const HeaderTopic = "Pullsub-Topic"

var (
	escaper   = strings.NewReplacer("%", "%25", ".", "%2E", "*", "%2A", ">", "%3E", " ", "%20")
	unescaper = strings.NewReplacer("%2E", ".", "%2A", "*", "%3E", ">", "%20", " ", "%25", "%")
)

func NewPubSub(cfg conf.Link) (pubsub.PubSub, error) {
	log := zap.L().With(
		zap.String("pubsub", "nats"),
	)

	url := strings.Join(cfg.Connect, ",")
	if url == "" {
		env, ok := os.LookupEnv("NATS_URL")
		if !ok {
			env = nats.DefaultURL
		}
		url = env
	}

	prefix := strings.Trim(cfg.Prefix, ".")
	if prefix == "" {
		prefix = conf.DefaultSubjectPrefix
	}

	nc, err := nats.Connect(url,
		nats.Name(prefix),
		nats.NoEcho(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, err
	}

	return &pubSub{
		log:           log,
		nc:            nc,
		prefix:        prefix,
		subscriptions: make([]*nats.Subscription, 0),
	}, nil
}

type pubSub struct {
	log           *zap.Logger
	nc            *nats.Conn
	prefix        string
	subscriptions []*nats.Subscription
	closed        bool
	sync.Mutex
}

func (ps *pubSub) Publish(msg *pubsub.Message) error {
	m := nats.NewMsg(Subject(ps.prefix, msg.Topic))
	m.Data = msg.Data

	for k, v := range msg.Header {
		m.Header.Set(k, v)
	}
	m.Header.Set(HeaderTopic, msg.Topic)

	return ps.nc.PublishMsg(m)
}

func (ps *pubSub) Subscribe(callback pubsub.MessageHandler) error {
	ps.Lock()
	defer ps.Unlock()

	if ps.closed {
		return pubsub.ErrClosed
	}

	sub, err := ps.nc.Subscribe(ps.prefix+".>", func(m *nats.Msg) {
		msg := &pubsub.Message{
			Topic:  m.Header.Get(HeaderTopic),
			Data:   m.Data,
			Header: make(map[string]string, len(m.Header)),
		}

		if msg.Topic == "" {
			msg.Topic = Topic(ps.prefix, m.Subject)
		}

		for k := range m.Header {
			if k != HeaderTopic {
				msg.Header[k] = m.Header.Get(k)
			}
		}

		if err := callback(context.Background(), msg); err != nil {
			ps.log.Error(err.Error(),
				zap.String("subject", m.Subject),
				zap.String("topic", msg.Topic),
			)
		}
	})
	if err != nil {
		return err
	}

	ps.subscriptions = append(ps.subscriptions, sub)
	return nil
}

func (ps *pubSub) Close() error {
	ps.Lock()
	if ps.closed {
		ps.Unlock()
		return nil
	}
	ps.closed = true
	subs := ps.subscriptions
	ps.subscriptions = nil
	ps.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			ps.log.Warn(err.Error(), zap.String("subject", sub.Subject))
		}
	}

	return ps.nc.Drain()
}

// Subject maps a topic onto a NATS subject below prefix, one token per
// topic segment.
func Subject(prefix string, topic string) string {
	segments := strings.Split(strings.TrimPrefix(topic, "/"), "/")
	for i, seg := range segments {
		segments[i] = escaper.Replace(seg)
	}

	return prefix + "." + strings.Join(segments, ".")
}

// Topic reverses Subject; a leading separator is not recovered.
func Topic(prefix string, subject string) string {
	tokens := strings.Split(strings.TrimPrefix(subject, prefix+"."), ".")
	for i, tok := range tokens {
		tokens[i] = unescaper.Replace(tok)
	}

	return strings.Join(tokens, "/")
}
