package sample

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mirror520/pullsub/keyexpr"
)

var (
	ErrSampleNotFound = errors.New("sample not found")
	ErrNonConcreteKey = errors.New("non-concrete key")
)

// Sample is immutable once built; it is shared by every subscription it is
// routed to.
type Sample struct {
	Key       keyexpr.KeyExpr `json:"key"`
	Payload   []byte          `json:"payload"`
	Timestamp ulid.ULID       `json:"timestamp"`
}

func New(key keyexpr.KeyExpr, payload []byte, ts ulid.ULID) (*Sample, error) {
	if !key.IsConcrete() {
		return nil, ErrNonConcreteKey
	}

	data := make([]byte, len(payload))
	copy(data, payload)

	return &Sample{
		Key:       key,
		Payload:   data,
		Timestamp: ts,
	}, nil
}

func (s *Sample) Time() time.Time {
	return ulid.Time(s.Timestamp.Time())
}

// Newer reports whether s was stamped after other.
func (s *Sample) Newer(other *Sample) bool {
	return s.Timestamp.Compare(other.Timestamp) > 0
}

// Clock hands out strictly increasing ULID timestamps.
type Clock struct {
	entropy *ulid.MonotonicEntropy
	sync.Mutex
}

func NewClock() *Clock {
	return &Clock{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (c *Clock) Now() (ulid.ULID, error) {
	c.Lock()
	defer c.Unlock()

	return ulid.New(ulid.Now(), c.entropy)
}
