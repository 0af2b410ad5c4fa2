package kv

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/suite"

	"github.com/mirror520/pullsub/conf"
	"github.com/mirror520/pullsub/keyexpr"
	"github.com/mirror520/pullsub/sample"
)

type sampleRepositoryTestSuite struct {
	suite.Suite
	clock   *sample.Clock
	samples sample.Repository
}

func (suite *sampleRepositoryTestSuite) SetupSuite() {
	suite.clock = sample.NewClock()

	cfg := conf.Persistence{
		Driver: conf.BadgerDB,
		Name:   "samples",
		InMem:  true,
	}

	samples, err := NewSampleRepository(cfg)
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.samples = samples
}

func (suite *sampleRepositoryTestSuite) newSample(key string, payload string) *sample.Sample {
	ts, err := suite.clock.Now()
	suite.Require().NoError(err)

	s, err := sample.New(keyexpr.MustParse(key), []byte(payload), ts)
	suite.Require().NoError(err)

	return s
}

func (suite *sampleRepositoryTestSuite) TestStoreAndFind() {
	s := suite.newSample("/demo/example/find", "v1")
	if err := suite.samples.Store(s); err != nil {
		suite.Fail(err.Error())
		return
	}

	found, err := suite.samples.Find(keyexpr.MustParse("demo/example/find"))
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal("/demo/example/find", found.Key.String())
	suite.Equal("v1", string(found.Payload))
	suite.Equal(s.Timestamp, found.Timestamp)
}

func (suite *sampleRepositoryTestSuite) TestStoreKeepsNewest() {
	older := suite.newSample("demo/latest/a", "old")
	newer := suite.newSample("demo/latest/a", "new")

	suite.NoError(suite.samples.Store(newer))
	suite.NoError(suite.samples.Store(older))

	found, err := suite.samples.Find(keyexpr.MustParse("demo/latest/a"))
	if err != nil {
		suite.Fail(err.Error())
		return
	}

	suite.Equal("new", string(found.Payload))

	newest := suite.newSample("demo/latest/a", "newest")
	suite.NoError(suite.samples.Store(newest))

	found, _ = suite.samples.Find(keyexpr.MustParse("demo/latest/a"))
	suite.Equal("newest", string(found.Payload))
}

func (suite *sampleRepositoryTestSuite) TestFindMissing() {
	_, err := suite.samples.Find(keyexpr.MustParse("demo/missing"))
	suite.ErrorIs(err, sample.ErrSampleNotFound)
}

func (suite *sampleRepositoryTestSuite) TestQuery() {
	for _, key := range []string{
		"query/b/x",
		"query/a/x",
		"query/a/y/z",
		"query_other/a",
		"other/a",
	} {
		suite.NoError(suite.samples.Store(suite.newSample(key, ulid.Make().String())))
	}

	keys := func(selector string) []string {
		samples, err := suite.samples.Query(keyexpr.MustParse(selector))
		suite.Require().NoError(err)

		keys := make([]string, len(samples))
		for i, s := range samples {
			keys[i] = s.Key.Path()
		}
		return keys
	}

	suite.Equal([]string{"query/a/x", "query/a/y/z", "query/b/x"}, keys("query/**"))
	suite.Equal([]string{"query/a/x", "query/b/x"}, keys("query/*/x"))
	suite.Equal([]string{"query/a/y/z"}, keys("/query/a/y/z"))
	suite.Equal([]string{"other/a", "query_other/a"}, keys("*/a"))
	suite.Empty(keys("nothing/**"))
}

func (suite *sampleRepositoryTestSuite) TearDownSuite() {
	suite.samples.Close()
}

func TestSampleRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(sampleRepositoryTestSuite))
}
