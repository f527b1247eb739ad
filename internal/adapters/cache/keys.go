package cache

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// DefaultJitter spreads expirations by ±10% so entries set together do not expire together.
const DefaultJitter = 0.1

// RandomTTL returns base adjusted by a random factor in [1-DefaultJitter, 1+DefaultJitter].
func RandomTTL(base time.Duration) time.Duration {
	if base <= 0 {
		return base
	}
	factor := 1 + DefaultJitter*(2*rand.Float64()-1)
	return time.Duration(float64(base) * factor)
}

// EventKey is the cached event detail.
//
// Format: event:{id}
func EventKey(id int64) string {
	return fmt.Sprintf("event:%d", id)
}

// EventListKey is one cached page of the event list.
//
// Format: events:list:{page}:{size}
func EventListKey(page, size int) string {
	return fmt.Sprintf("events:list:%d:%d", page, size)
}

// EventListPattern matches every cached event list page.
const EventListPattern = "events:list:*"

// ParticipantsKey is the cached participant list of an event.
func ParticipantsKey(eventID int64) string {
	return fmt.Sprintf("event:%d:participants", eventID)
}

// EventSubresourcePattern matches the cached sub-resources of one event.
func EventSubresourcePattern(id int64) string {
	return fmt.Sprintf("event:%d:*", id)
}

// AnalyticsSummaryKey is the cached dashboard summary.
const AnalyticsSummaryKey = "analytics:summary"
