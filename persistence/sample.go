package persistence

import (
	"errors"

	"github.com/mirror520/pullsub/conf"
	"github.com/mirror520/pullsub/persistence/db"
	"github.com/mirror520/pullsub/persistence/inmem"
	"github.com/mirror520/pullsub/persistence/kv"
	"github.com/mirror520/pullsub/sample"
)

func NewSampleRepository(cfg conf.Persistence) (sample.Repository, error) {
	switch cfg.Driver {
	case conf.SQLite:
		return db.NewSampleRepository(cfg)
	case conf.BadgerDB:
		return kv.NewSampleRepository(cfg)
	case conf.InMem:
		return inmem.NewSampleRepository(), nil
	default:
		return nil, errors.New("driver not supported")
	}
}
