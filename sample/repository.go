package sample

import "github.com/mirror520/pullsub/keyexpr"

// Repository keeps the newest sample of every concrete key it is given.
type Repository interface {
	// Command
	Store(s *Sample) error

	// Query
	Find(key keyexpr.KeyExpr) (*Sample, error)
	Query(selector keyexpr.KeyExpr) ([]*Sample, error)

	Close() error
}
