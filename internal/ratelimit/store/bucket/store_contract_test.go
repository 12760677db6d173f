package bucket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"medgate/internal/ratelimit/models"
	"medgate/internal/ratelimit/ports"
)

var (
	testNow    = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	authPolicy = models.Policy{Capacity: 5, Window: time.Minute, BlockFor: 15 * time.Minute}
)

// counterStoreSuite holds the behavior every ports.CounterStore must share.
// Concrete suites embed it and set newStore.
type counterStoreSuite struct {
	suite.Suite
	newStore func() ports.CounterStore
	store    ports.CounterStore
	ctx      context.Context
}

func (s *counterStoreSuite) SetupTest() {
	s.store = s.newStore()
	s.ctx = context.Background()
}

func (s *counterStoreSuite) TestSixAuthRequests() {
	key := "rl:auth:ip:10.0.0.1"
	for i, want := range []int{4, 3, 2, 1, 0} {
		res, err := s.store.Increment(s.ctx, key, testNow.Add(time.Duration(i)*time.Second), authPolicy)
		s.Require().NoError(err)
		s.True(res.Allowed, "request %d", i+1)
		s.Equal(want, res.Remaining)
		s.Equal(5, res.Limit)
	}

	res, err := s.store.Increment(s.ctx, key, testNow.Add(10*time.Second), authPolicy)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(0, res.Remaining)
	s.Equal(900, res.RetryAfter)

	s.Run("block holds across window reset", func() {
		res, err := s.store.Increment(s.ctx, key, testNow.Add(5*time.Minute), authPolicy)
		s.Require().NoError(err)
		s.False(res.Allowed)
		s.Equal(600, res.RetryAfter)
	})

	s.Run("allowed after block expires", func() {
		res, err := s.store.Increment(s.ctx, key, testNow.Add(10*time.Second+15*time.Minute), authPolicy)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(authPolicy.Capacity-1, res.Remaining)
	})
}

func (s *counterStoreSuite) TestConcurrentIncrementsLoseNoUpdates() {
	const (
		capacity   = 10
		goroutines = 50
	)
	policy := models.Policy{Capacity: capacity, Window: time.Minute, BlockFor: time.Minute}

	var wg sync.WaitGroup
	var allowed, denied atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.store.Increment(s.ctx, "rl:general:ip:concurrent", testNow, policy)
			if err != nil {
				return
			}
			if res.Allowed {
				allowed.Add(1)
			} else {
				denied.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(capacity), allowed.Load(), "exactly capacity requests are allowed")
	s.Equal(int32(goroutines-capacity), denied.Load())

	w, err := s.store.Peek(s.ctx, "rl:general:ip:concurrent")
	s.Require().NoError(err)
	s.Require().NotNil(w)
	s.Equal(capacity, w.Consumed)
	s.NotNil(w.BlockUntil)
}

func (s *counterStoreSuite) TestPeekAndReset() {
	key := "rl:search:id:peek"

	s.Run("unknown key peeks nil", func() {
		w, err := s.store.Peek(s.ctx, key)
		s.Require().NoError(err)
		s.Nil(w)
	})

	s.Run("peek reflects consumption without consuming", func() {
		for range 2 {
			_, err := s.store.Increment(s.ctx, key, testNow, authPolicy)
			s.Require().NoError(err)
		}
		w, err := s.store.Peek(s.ctx, key)
		s.Require().NoError(err)
		s.Require().NotNil(w)
		s.Equal(2, w.Consumed)
		s.True(w.Start.Equal(testNow))
		s.Nil(w.BlockUntil)

		w, err = s.store.Peek(s.ctx, key)
		s.Require().NoError(err)
		s.Equal(2, w.Consumed)
	})

	s.Run("reset clears the window", func() {
		s.Require().NoError(s.store.Reset(s.ctx, key))
		w, err := s.store.Peek(s.ctx, key)
		s.Require().NoError(err)
		s.Nil(w)

		res, err := s.store.Increment(s.ctx, key, testNow, authPolicy)
		s.Require().NoError(err)
		s.Equal(authPolicy.Capacity-1, res.Remaining)
	})
}

func (s *counterStoreSuite) TestKeysAreIndependent() {
	for range authPolicy.Capacity + 1 {
		_, err := s.store.Increment(s.ctx, "rl:auth:ip:a", testNow, authPolicy)
		s.Require().NoError(err)
	}
	res, err := s.store.Increment(s.ctx, "rl:auth:ip:b", testNow, authPolicy)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(authPolicy.Capacity-1, res.Remaining)
}
