package sample

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mirror520/pullsub/keyexpr"
)

func TestNewSample(t *testing.T) {
	assert := assert.New(t)

	clock := NewClock()
	ts, err := clock.Now()
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	payload := []byte("1")
	s, err := New(keyexpr.MustParse("/demo/example/a"), payload, ts)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	payload[0] = '2'
	assert.Equal("1", string(s.Payload))
	assert.Equal("/demo/example/a", s.Key.String())
	assert.False(s.Time().IsZero())

	_, err = New(keyexpr.MustParse("/demo/example/**"), payload, ts)
	assert.ErrorIs(err, ErrNonConcreteKey)
}

func TestClockIsMonotonic(t *testing.T) {
	assert := assert.New(t)

	clock := NewClock()

	prev, err := clock.Now()
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	for i := 0; i < 10000; i++ {
		next, err := clock.Now()
		if err != nil {
			assert.Fail(err.Error())
			return
		}

		if !assert.Equal(1, next.Compare(prev)) {
			return
		}
		prev = next
	}
}

func TestSampleJSON(t *testing.T) {
	assert := assert.New(t)

	ts, _ := NewClock().Now()
	s, _ := New(keyexpr.MustParse("demo/x"), []byte("v"), ts)

	bs, err := json.Marshal(s)
	if err != nil {
		assert.Fail(err.Error())
		return
	}

	var got *Sample
	if err := json.Unmarshal(bs, &got); err != nil {
		assert.Fail(err.Error())
		return
	}

	assert.True(s.Key.Equal(got.Key))
	assert.Equal(s.Payload, got.Payload)
	assert.Equal(s.Timestamp, got.Timestamp)
	assert.False(got.Newer(s))
}
