package auth

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const nonceCacheSize = 100_000

// NonceStore rejects replayed (sourceId, nonce) pairs. Entries are retained
// for 2*maxSkew and pruned by a background sweep, per §4.A step 4 and the
// §5 "nonce store: concurrent map with expiry sweep every 60s" requirement.
type NonceStore struct {
	mu       sync.Mutex
	cache    *lru.Cache[string, time.Time]
	maxSkew  time.Duration
	stopOnce sync.Once
	stop     chan struct{}
}

// NewNonceStore creates a NonceStore and starts its sweep goroutine.
func NewNonceStore(maxSkew time.Duration) *NonceStore {
	c, err := lru.New[string, time.Time](nonceCacheSize)
	if err != nil {
		panic(err)
	}
	s := &NonceStore{cache: c, maxSkew: maxSkew, stop: make(chan struct{})}
	go s.sweepLoop()
	return s
}

func key(sourceID, nonce string) string {
	return sourceID + "\x00" + nonce
}

// Accept records (sourceId, nonce) if unseen and returns true; returns false
// if the pair was already recorded (a replay).
func (s *NonceStore) Accept(sourceID, nonce string, now time.Time) bool {
	k := key(sourceID, nonce)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.cache.Get(k); seen {
		return false
	}
	s.cache.Add(k, now)
	return true
}

func (s *NonceStore) sweepLoop() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(time.Now())
		case <-s.stop:
			return
		}
	}
}

func (s *NonceStore) sweep(now time.Time) {
	cutoff := now.Add(-2 * s.maxSkew)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.cache.Keys() {
		ts, ok := s.cache.Peek(k)
		if ok && ts.Before(cutoff) {
			s.cache.Remove(k)
		}
	}
}

// Close stops the sweep goroutine.
func (s *NonceStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}
