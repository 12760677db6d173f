package authlockout

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"medgate/internal/ratelimit/config"
	"medgate/internal/ratelimit/metrics"
	"medgate/internal/ratelimit/store/bucket"
	requesttime "medgate/pkg/platform/middleware/requesttime"
)

type AuthLockoutServiceSuite struct {
	suite.Suite
	store   *bucket.InMemoryBucketStore
	metrics *metrics.Metrics
	service *Service
	t0      time.Time
}

func TestAuthLockoutServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthLockoutServiceSuite))
}

func (s *AuthLockoutServiceSuite) SetupTest() {
	s.store = bucket.New()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var err error
	s.service, err = New(s.store, WithConfig(config.DefaultConfig()), WithMetrics(s.metrics))
	s.Require().NoError(err)
}

func (s *AuthLockoutServiceSuite) at(offset time.Duration) context.Context {
	return requesttime.WithTime(context.Background(), s.t0.Add(offset))
}

func (s *AuthLockoutServiceSuite) TestNew() {
	_, err := New(nil)
	s.Error(err)

	cfg := config.DefaultConfig()
	cfg.Lockout.Capacity = 0
	_, err = New(s.store, WithConfig(cfg))
	s.Error(err)
}

func (s *AuthLockoutServiceSuite) TestLockoutLifecycle() {
	s.Run("fresh identifier is allowed with full quota", func() {
		res, err := s.service.CheckAllowed(s.at(0), "jane")
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(5, res.Remaining)
	})

	s.Run("failures up to capacity do not lock", func() {
		for i := range 5 {
			res, err := s.service.RecordFailure(s.at(time.Duration(i)*time.Second), "jane")
			s.Require().NoError(err)
			s.True(res.Allowed)
		}
		res, err := s.service.CheckAllowed(s.at(10*time.Second), "jane")
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(0, res.Remaining)
	})

	s.Run("next failure locks the identifier", func() {
		res, err := s.service.RecordFailure(s.at(20*time.Second), "jane")
		s.Require().NoError(err)
		s.False(res.Allowed)
		s.Equal(900, res.RetryAfter)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.AuthLockoutsTotal))
		s.Equal(6.0, testutil.ToFloat64(s.metrics.AuthFailures))
	})

	s.Run("check reports the lock without extending it", func() {
		for _, offset := range []time.Duration{time.Minute, 10 * time.Minute} {
			res, err := s.service.CheckAllowed(s.at(offset), "jane")
			s.Require().NoError(err)
			s.False(res.Allowed)
		}
		res, err := s.service.CheckAllowed(s.at(20*time.Second+15*time.Minute), "jane")
		s.Require().NoError(err)
		s.True(res.Allowed)
	})

	s.Run("identifiers are case-insensitive and isolated", func() {
		res, err := s.service.CheckAllowed(s.at(time.Minute), "JANE")
		s.Require().NoError(err)
		s.False(res.Allowed)

		res, err = s.service.CheckAllowed(s.at(time.Minute), "john")
		s.Require().NoError(err)
		s.True(res.Allowed)
	})
}

func (s *AuthLockoutServiceSuite) TestResetClearsLock() {
	for i := range 6 {
		_, err := s.service.RecordFailure(s.at(time.Duration(i)*time.Second), "sam")
		s.Require().NoError(err)
	}
	s.Require().NoError(s.service.Reset(s.at(time.Minute), "sam"))

	res, err := s.service.CheckAllowed(s.at(time.Minute), "sam")
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(5, res.Remaining)
}

func (s *AuthLockoutServiceSuite) TestNamespaceSeparateFromRequestLimits() {
	for i := range 6 {
		_, err := s.service.RecordFailure(s.at(time.Duration(i)*time.Second), "auth")
		s.Require().NoError(err)
	}
	w, err := s.store.Peek(context.Background(), "rl:auth:ip:auth")
	s.Require().NoError(err)
	s.Nil(w)
}
