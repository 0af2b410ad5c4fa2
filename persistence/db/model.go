package db

import (
	"github.com/oklog/ulid/v2"

	"github.com/mirror520/pullsub/keyexpr"
	"github.com/mirror520/pullsub/model"
	"github.com/mirror520/pullsub/sample"
)

type Sample struct {
	Path      string `gorm:"primaryKey"`
	Key       string
	Payload   []byte
	Timestamp string `gorm:"size:26"`
	model.Time
}

func NewSample(s *sample.Sample) *Sample {
	return &Sample{
		Path:      s.Key.Path(),
		Key:       s.Key.String(),
		Payload:   s.Payload,
		Timestamp: s.Timestamp.String(),
	}
}

func (s *Sample) reconstitute() (*sample.Sample, error) {
	key, err := keyexpr.Parse(s.Key)
	if err != nil {
		return nil, err
	}

	ts, err := ulid.ParseStrict(s.Timestamp)
	if err != nil {
		return nil, err
	}

	return &sample.Sample{
		Key:       key,
		Payload:   s.Payload,
		Timestamp: ts,
	}, nil
}
