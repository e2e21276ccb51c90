package provider

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// SimulatedMobileMoney stands in for a real mobile-money operator in
// local and staging environments. It adds a short artificial delay and
// fails a configurable fraction of initiations. Repeat initiations for
// a reference already handed off are absorbed, matching operator
// behaviour where a duplicate request for a known reference is a no-op.
type SimulatedMobileMoney struct {
	// FailureRate is the probability of failure (0.0 to 1.0). Default: 0.1 (10%)
	FailureRate float64

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewSimulatedMobileMoney() *SimulatedMobileMoney {
	return &SimulatedMobileMoney{
		FailureRate: 0.1,
		seen:        make(map[string]struct{}),
	}
}

// Initiate hands a collection request to the simulated operator.
// Settlement is reported later through the provider callback webhook,
// never from this call.
func (p *SimulatedMobileMoney) Initiate(ctx context.Context, reference string, amount int64) error {
	p.mu.Lock()
	if _, dup := p.seen[reference]; dup {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	delayMs := time.Duration(200+rand.Intn(800)) * time.Millisecond
	select {
	case <-time.After(delayMs):
	case <-ctx.Done():
		return fmt.Errorf("provider call canceled: %w", ctx.Err())
	}

	if rand.Float64() < p.FailureRate {
		return fmt.Errorf("provider temporarily unavailable")
	}

	p.mu.Lock()
	p.seen[reference] = struct{}{}
	p.mu.Unlock()
	return nil
}
