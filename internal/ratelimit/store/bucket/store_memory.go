package bucket

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"medgate/internal/ratelimit/models"
)

const (
	defaultShardCount         = 32
	defaultMaxBucketsPerShard = 10000
)

// InMemoryBucketStore implements ports.CounterStore with a sharded map.
// Each shard has its own mutex so unrelated keys never contend. Counters are
// per process; use RedisBucketStore when several instances share quotas.
type InMemoryBucketStore struct {
	shards      []*shard
	maxPerShard int
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*entry
}

type entry struct {
	window   models.Window
	horizon  time.Time // after this the entry carries no state worth keeping
	lastSeen time.Time
}

// Option configures the in-memory store.
type Option func(*InMemoryBucketStore)

// WithShardCount sets the number of shards. Values below 1 are ignored.
func WithShardCount(n int) Option {
	return func(s *InMemoryBucketStore) {
		if n > 0 {
			s.shards = newShards(n)
		}
	}
}

// WithMaxBucketsPerShard caps the keys held per shard. When full, expired
// entries are purged first, then the least recently seen entry is evicted.
func WithMaxBucketsPerShard(n int) Option {
	return func(s *InMemoryBucketStore) {
		if n > 0 {
			s.maxPerShard = n
		}
	}
}

// New creates a new in-memory bucket store.
func New(opts ...Option) *InMemoryBucketStore {
	s := &InMemoryBucketStore{
		shards:      newShards(defaultShardCount),
		maxPerShard: defaultMaxBucketsPerShard,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newShards(n int) []*shard {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{buckets: make(map[string]*entry)}
	}
	return shards
}

// Increment applies one consume attempt for key.
func (s *InMemoryBucketStore) Increment(_ context.Context, key string, now time.Time, policy models.Policy) (*models.Result, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var current *models.Window
	e, ok := sh.buckets[key]
	if ok {
		current = &e.window
	} else {
		s.makeRoom(sh, now)
		e = &entry{}
		sh.buckets[key] = e
	}

	next, result := models.Advance(current, key, now, policy)
	e.window = next
	e.lastSeen = now
	e.horizon = next.Start.Add(policy.Window)
	if next.BlockUntil != nil && next.BlockUntil.After(e.horizon) {
		e.horizon = *next.BlockUntil
	}
	return &result, nil
}

// Reset clears the counter for a key.
func (s *InMemoryBucketStore) Reset(_ context.Context, key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.buckets, key)
	return nil
}

// Peek returns a copy of the stored window.
func (s *InMemoryBucketStore) Peek(_ context.Context, key string) (*models.Window, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.buckets[key]
	if !ok {
		return nil, nil
	}
	w := e.window
	if w.BlockUntil != nil {
		until := *w.BlockUntil
		w.BlockUntil = &until
	}
	return &w, nil
}

// Stats returns the total number of keys and the count per shard.
func (s *InMemoryBucketStore) Stats() (total int, perShard []int) {
	perShard = make([]int, len(s.shards))
	for i, sh := range s.shards {
		sh.mu.Lock()
		perShard[i] = len(sh.buckets)
		sh.mu.Unlock()
		total += perShard[i]
	}
	return total, perShard
}

func (s *InMemoryBucketStore) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// makeRoom must be called while holding sh.mu.
func (s *InMemoryBucketStore) makeRoom(sh *shard, now time.Time) {
	if len(sh.buckets) < s.maxPerShard {
		return
	}
	for k, e := range sh.buckets {
		if !now.Before(e.horizon) {
			delete(sh.buckets, k)
		}
	}
	if len(sh.buckets) < s.maxPerShard {
		return
	}
	var oldestKey string
	var oldest time.Time
	for k, e := range sh.buckets {
		if oldestKey == "" || e.lastSeen.Before(oldest) {
			oldestKey, oldest = k, e.lastSeen
		}
	}
	delete(sh.buckets, oldestKey)
}
