package mesh

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const dedupeCacheSize = 50_000

// Dedupe tracks (originId, version) pairs already applied, so a gossip
// record received via multiple paths is only applied once, per §4.C
// ("ordering & duplicates").
type Dedupe struct {
	mu    sync.Mutex
	cache *lru.Cache[string, struct{}]
}

// NewDedupe constructs a bounded dedupe set.
func NewDedupe() *Dedupe {
	c, err := lru.New[string, struct{}](dedupeCacheSize)
	if err != nil {
		panic(err)
	}
	return &Dedupe{cache: c}
}

// Seen records (originId, version) and reports whether it was already seen.
func (d *Dedupe) Seen(originID string, version uint64) bool {
	key := fmt.Sprintf("%s:%d", originID, version)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.cache.Get(key); ok {
		return true
	}
	d.cache.Add(key, struct{}{})
	return false
}

// Forward decrements a gossip payload's TTL and reports whether it should
// continue propagating (ttl > 0 after decrement).
func Forward(ttl int) (next int, propagate bool) {
	next = ttl - 1
	return next, next > 0
}
