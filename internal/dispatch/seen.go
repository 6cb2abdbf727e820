package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeenSet remembers processed message ids for a bounded time.
type SeenSet interface {
	// Claim marks id as seen. It returns false when id was already claimed
	// and has not expired.
	Claim(ctx context.Context, id string, ttl time.Duration) (bool, error)
	// Release forgets id so a redelivery is processed again.
	Release(ctx context.Context, id string) error
}

// MemorySeenSet is a process-local SeenSet. Expired ids are swept in the
// background; Stop ends the sweeper.
type MemorySeenSet struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemorySeenSet(now func() time.Time) *MemorySeenSet {
	if now == nil {
		now = time.Now
	}
	s := &MemorySeenSet{expires: make(map[string]time.Time), now: now, stop: make(chan struct{})}
	go s.sweepLoop(time.Minute)
	return s
}

func (s *MemorySeenSet) Claim(_ context.Context, id string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if exp, ok := s.expires[id]; ok && now.Before(exp) {
		return false, nil
	}
	s.expires[id] = now.Add(ttl)
	return true, nil
}

func (s *MemorySeenSet) Release(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.expires, id)
	s.mu.Unlock()
	return nil
}

// Stop ends the sweeper.
func (s *MemorySeenSet) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Len reports how many ids are held, expired or not.
func (s *MemorySeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expires)
}

func (s *MemorySeenSet) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep drops expired ids.
func (s *MemorySeenSet) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, exp := range s.expires {
		if !now.Before(exp) {
			delete(s.expires, id)
		}
	}
}

// RedisSeenSet shares the seen set between instances.
type RedisSeenSet struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisSeenSet(client redis.UniversalClient) *RedisSeenSet {
	return &RedisSeenSet{client: client, prefix: "seen:"}
}

func (s *RedisSeenSet) Claim(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+id, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *RedisSeenSet) Release(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.prefix+id).Err()
}
