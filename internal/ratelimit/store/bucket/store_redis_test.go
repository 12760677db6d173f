package bucket

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"medgate/internal/ratelimit/ports"
)

type RedisBucketStoreSuite struct {
	counterStoreSuite
	mr     *miniredis.Miniredis
	client *redis.Client
}

func TestRedisBucketStoreSuite(t *testing.T) {
	s := new(RedisBucketStoreSuite)
	s.newStore = func() ports.CounterStore {
		s.mr.FlushAll()
		return NewRedis(s.client, WithCallTimeout(time.Second))
	}
	suite.Run(t, s)
}

func (s *RedisBucketStoreSuite) SetupSuite() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
}

func (s *RedisBucketStoreSuite) TearDownSuite() {
	_ = s.client.Close()
}

func (s *RedisBucketStoreSuite) TestKeyExpiresWithWindow() {
	_, err := s.store.Increment(s.ctx, "rl:general:ip:ttl", testNow, authPolicy)
	s.Require().NoError(err)
	s.Equal(authPolicy.Window, s.mr.TTL("rl:general:ip:ttl"))

	for range authPolicy.Capacity {
		_, err = s.store.Increment(s.ctx, "rl:general:ip:ttl", testNow, authPolicy)
		s.Require().NoError(err)
	}
	s.Equal(authPolicy.BlockFor, s.mr.TTL("rl:general:ip:ttl"), "blocked keys live until the block ends")
}

func (s *RedisBucketStoreSuite) TestUnavailableServerReturnsError() {
	mr := miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	store := NewRedis(client)
	mr.Close()

	_, err := store.Increment(s.ctx, "rl:auth:ip:down", testNow, authPolicy)
	s.Error(err)
	_, err = store.Peek(s.ctx, "rl:auth:ip:down")
	s.Error(err)
	s.Error(store.Reset(s.ctx, "rl:auth:ip:down"))
}
