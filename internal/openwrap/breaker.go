package openwrap

import (
	"errors"
	"sync"
	"time"
)

// Circuit breaker states
const (
	StateClosed   = "closed"    // auctions flow
	StateOpen     = "open"      // auctions fail fast
	StateHalfOpen = "half-open" // one probe auction allowed
)

// ErrCircuitOpen is returned when the auction endpoint breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig holds circuit breaker configuration
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // probe successes to close from half-open
	Cooldown         time.Duration // time open before a probe is allowed
	OnStateChange    func(from, to string)
}

// DefaultBreakerConfig returns defaults tuned for a single device-side client
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
	}
}

// Breaker guards the auction endpoint. No-bid responses are successes;
// only transport and server failures count against it.
type Breaker struct {
	config *BreakerConfig
	now    func() time.Time

	mu          sync.Mutex
	state       string
	failures    int
	successes   int
	openedAt    time.Time
	probeActive bool
}

// NewBreaker creates a breaker. A nil config uses DefaultBreakerConfig.
func NewBreaker(config *BreakerConfig) *Breaker {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	return &Breaker{config: config, now: time.Now, state: StateClosed}
}

// Execute runs fn unless the breaker is open
func (b *Breaker) Execute(fn func() error) error {
	probe, err := b.before()
	if err != nil {
		return err
	}
	err = fn()
	b.after(probe, err)
	return err
}

func (b *Breaker) before() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			return false, ErrCircuitOpen
		}
		b.setState(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if b.probeActive {
			return false, ErrCircuitOpen
		}
		b.probeActive = true
		return true, nil
	default:
		return false, nil
	}
}

func (b *Breaker) after(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probeActive = false
	}

	if err != nil {
		b.failures++
		b.successes = 0
		if b.state == StateHalfOpen || b.failures >= b.config.FailureThreshold {
			b.openedAt = b.now()
			b.setState(StateOpen)
		}
		return
	}

	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.setState(StateClosed)
		}
	}
}

// setState must be called with mu held
func (b *Breaker) setState(to string) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.successes = 0
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(from, to)
	}
}

// State returns the current state
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the breaker
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probeActive = false
	b.setState(StateClosed)
}
