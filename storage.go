package pullsub

import (
	"context"

	"github.com/mirror520/pullsub/sample"
)

// AttachStorage keeps the newest sample of every key matching expr in repo.
func AttachStorage(sess Session, expr string, repo sample.Repository) (*Subscription, error) {
	info := SubInfo{
		Mode:        Push,
		Reliability: Reliable,
	}

	return sess.Subscribe(expr, info, func(ctx context.Context, s *sample.Sample) error {
		return repo.Store(s)
	})
}
