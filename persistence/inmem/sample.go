package inmem

import (
	"slices"
	"strings"
	"sync"

	"github.com/mirror520/pullsub/keyexpr"
	"github.com/mirror520/pullsub/sample"
)

type sampleRepository struct {
	samples map[string]*sample.Sample // path -> newest sample
	sync.RWMutex
}

func NewSampleRepository() sample.Repository {
	return &sampleRepository{
		samples: make(map[string]*sample.Sample),
	}
}

func (repo *sampleRepository) Store(s *sample.Sample) error {
	repo.Lock()
	defer repo.Unlock()

	path := s.Key.Path()
	if current, ok := repo.samples[path]; ok && !s.Newer(current) {
		return nil
	}

	repo.samples[path] = s
	return nil
}

func (repo *sampleRepository) Find(key keyexpr.KeyExpr) (*sample.Sample, error) {
	repo.RLock()
	defer repo.RUnlock()

	s, ok := repo.samples[key.Path()]
	if !ok {
		return nil, sample.ErrSampleNotFound
	}

	return s, nil
}

func (repo *sampleRepository) Query(selector keyexpr.KeyExpr) ([]*sample.Sample, error) {
	repo.RLock()
	defer repo.RUnlock()

	samples := make([]*sample.Sample, 0)
	for _, s := range repo.samples {
		if selector.Intersects(s.Key) {
			samples = append(samples, s)
		}
	}

	slices.SortFunc(samples, func(a, b *sample.Sample) int {
		return strings.Compare(a.Key.Path(), b.Key.Path())
	})

	return samples, nil
}

func (repo *sampleRepository) Close() error {
	return nil
}
