package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"medgate/internal/ratelimit/metrics"
	"medgate/pkg/platform/circuit"
)

type ResilientStoreSuite struct {
	suite.Suite
	ctx     context.Context
	mr      *miniredis.Miniredis
	client  *redis.Client
	metrics *metrics.Metrics
	breaker *circuit.Breaker
	store   *ResilientStore
}

func TestResilientStoreSuite(t *testing.T) {
	suite.Run(t, new(ResilientStoreSuite))
}

func (s *ResilientStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr(), MaxRetries: -1})
	s.T().Cleanup(func() { _ = s.client.Close() })
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.breaker = circuit.New("redis-counters", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))
	s.store = NewResilient(NewRedis(s.client), New(), s.breaker,
		WithResilientMetrics(s.metrics),
		WithProbeInterval(time.Minute),
	)
}

func (s *ResilientStoreSuite) TestHealthyPrimaryServesDecisions() {
	res, err := s.store.Increment(s.ctx, "rl:auth:ip:healthy", testNow, authPolicy)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.False(res.Degraded)
	s.True(s.mr.Exists("rl:auth:ip:healthy"))
}

func (s *ResilientStoreSuite) TestFailingPrimaryFallsBack() {
	s.mr.Close()

	s.Run("each failure is served by the fallback", func() {
		res, err := s.store.Increment(s.ctx, "rl:auth:ip:down", testNow, authPolicy)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.True(res.Degraded)
		s.False(s.store.Degraded(), "breaker not yet open")
	})

	s.Run("breaker opens at threshold", func() {
		res, err := s.store.Increment(s.ctx, "rl:auth:ip:down", testNow, authPolicy)
		s.Require().NoError(err)
		s.True(res.Degraded)
		s.Equal(3, res.Remaining, "fallback keeps counting")
		s.True(s.store.Degraded())
		s.Equal(1.0, testutil.ToFloat64(s.metrics.BreakerOpen))
	})

	s.Run("open breaker skips primary until the probe interval", func() {
		res, err := s.store.Increment(s.ctx, "rl:auth:ip:down", testNow.Add(time.Second), authPolicy)
		s.Require().NoError(err)
		s.True(res.Degraded)
		s.Equal(3.0, testutil.ToFloat64(s.metrics.Degraded))
	})
}

func (s *ResilientStoreSuite) TestRecoveryClosesBreaker() {
	for range 2 {
		s.breaker.RecordFailure()
	}
	s.Require().True(s.store.Degraded())

	res, err := s.store.Increment(s.ctx, "rl:auth:ip:recover", testNow, authPolicy)
	s.Require().NoError(err)
	s.False(res.Degraded, "probe reached the healthy primary")
	s.False(s.store.Degraded())
}
