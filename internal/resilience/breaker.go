package resilience

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"eventmanager/internal/metrics"
)

type BreakerConfig struct {
	Name string
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before allowing a probe.
	OpenTimeout time.Duration
	// OnStateChange is called after every transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: cfg.OnStateChange,
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn unless the breaker is open, in which case it returns gobreaker.ErrOpenState.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) Name() string {
	return b.cb.Name()
}

// GaugeValue maps a breaker state to the exported gauge encoding.
func GaugeValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	default:
		return metrics.BreakerClosed
	}
}

// StateListener exports transitions to the breaker gauge and logs them.
func StateListener(m *metrics.Metrics, logger *slog.Logger) func(name string, from, to gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		m.SetBreakerState(name, GaugeValue(to))
		logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
	}
}
