package ratelimit

import (
	"context"
	"sync"
	"time"

	"eventmanager/internal/clock"
)

const sweepEvery = 1024

// SlidingWindow approximates a sliding window with precision sub-window counters per key.
type SlidingWindow struct {
	limit     int
	window    time.Duration
	precision int64
	sub       time.Duration
	clock     clock.Clock

	mu       sync.Mutex
	counters map[string]map[int64]int
	calls    int
}

func NewSlidingWindow(limit int, window time.Duration, precision int, c clock.Clock) *SlidingWindow {
	if precision < 1 {
		precision = 10
	}
	if c == nil {
		c = clock.NewSystem()
	}
	return &SlidingWindow{
		limit:     limit,
		window:    window,
		precision: int64(precision),
		sub:       window / time.Duration(precision),
		clock:     c,
		counters:  make(map[string]map[int64]int),
	}
}

func (s *SlidingWindow) Allow(_ context.Context, key string) (Decision, error) {
	now := s.clock.Now()
	current := now.UnixNano() / int64(s.sub)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.calls%sweepEvery == 0 {
		s.sweep(current)
	}

	buckets := s.counters[key]
	if buckets == nil {
		buckets = make(map[int64]int)
		s.counters[key] = buckets
	}
	total := 0
	oldest := current
	for k, n := range buckets {
		if k <= current-s.precision {
			delete(buckets, k)
			continue
		}
		total += n
		if k < oldest {
			oldest = k
		}
	}

	d := Decision{Limit: s.limit}
	if total < s.limit {
		buckets[current]++
		total++
		d.Allowed = true
	}
	d.Remaining = max(0, s.limit-total)
	d.ResetAfter = time.Duration((oldest+s.precision)*int64(s.sub) - now.UnixNano())
	return d, nil
}

// sweep drops keys whose counters have all expired.
func (s *SlidingWindow) sweep(current int64) {
	for key, buckets := range s.counters {
		live := false
		for k := range buckets {
			if k > current-s.precision {
				live = true
				break
			}
		}
		if !live {
			delete(s.counters, key)
		}
	}
}
