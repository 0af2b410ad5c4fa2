package kv

import (
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/mirror520/pullsub/conf"
	"github.com/mirror520/pullsub/keyexpr"
	"github.com/mirror520/pullsub/sample"
)

const keyPrefix = "sample:"

type sampleRepository struct {
	db *badger.DB
}

func NewSampleRepository(cfg conf.Persistence) (sample.Repository, error) {
	opts := badger.DefaultOptions(cfg.Host + "/" + cfg.Name)
	if cfg.InMem {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	repo := new(sampleRepository)
	repo.db = db

	return repo, nil
}

// Store keeps s unless the stored sample of the same key is newer.
func (repo *sampleRepository) Store(s *sample.Sample) error {
	bs, err := json.Marshal(s)
	if err != nil {
		return err
	}

	key := []byte(keyPrefix + s.Key.Path())

	return repo.db.Update(func(txn *badger.Txn) error {
		current, err := get(txn, key)
		if err != nil && !errors.Is(err, sample.ErrSampleNotFound) {
			return err
		}

		if current != nil && !s.Newer(current) {
			return nil
		}

		return txn.Set(key, bs)
	})
}

func (repo *sampleRepository) Find(key keyexpr.KeyExpr) (*sample.Sample, error) {
	var s *sample.Sample

	if err := repo.db.View(func(txn *badger.Txn) error {
		found, err := get(txn, []byte(keyPrefix+key.Path()))
		if err != nil {
			return err
		}

		s = found
		return nil
	}); err != nil {
		return nil, err
	}

	return s, nil
}

// Query scans the literal prefix of selector; keys come back in path order.
func (repo *sampleRepository) Query(selector keyexpr.KeyExpr) ([]*sample.Sample, error) {
	samples := make([]*sample.Sample, 0)

	prefix := []byte(keyPrefix + selector.Prefix())

	err := repo.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var s *sample.Sample
				if err := json.Unmarshal(val, &s); err != nil {
					return err
				}

				if selector.Intersects(s.Key) {
					samples = append(samples, s)
				}

				return nil
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return samples, nil
}

func (repo *sampleRepository) Close() error {
	return repo.db.Close()
}

func get(txn *badger.Txn, key []byte) (*sample.Sample, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, sample.ErrSampleNotFound
		}

		return nil, err
	}

	var s *sample.Sample
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &s)
	}); err != nil {
		return nil, err
	}

	return s, nil
}
