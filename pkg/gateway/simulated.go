package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// SimulatedGateway models a real, unreliable vendor: injected latency and a
// configurable success rate (default 0.9).
type SimulatedGateway struct {
	successRate float64
	minLatency  time.Duration
	maxLatency  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

var _ Gateway = (*SimulatedGateway)(nil)

// NewSimulatedGateway creates a simulator with the given success rate in
// [0, 1] and latency window.
func NewSimulatedGateway(successRate float64, minLatency, maxLatency time.Duration) *SimulatedGateway {
	return &SimulatedGateway{
		successRate: successRate,
		minLatency:  minLatency,
		maxLatency:  maxLatency,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Send simulates one vendor call. Latency respects context cancellation, so
// a caller-imposed timeout turns into a context error.
func (g *SimulatedGateway) Send(ctx context.Context, messageID, recipient, body string) (*SendResult, error) {
	if delay := g.latency(); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	g.mu.Lock()
	success := g.rng.Float64() < g.successRate
	g.mu.Unlock()

	if !success {
		return &SendResult{Success: false, Error: "simulated vendor failure"}, nil
	}
	return &SendResult{
		Success:         true,
		VendorMessageID: fmt.Sprintf("SIM-%s-%d", messageID, time.Now().UnixNano()),
	}, nil
}

func (g *SimulatedGateway) latency() time.Duration {
	if g.maxLatency <= g.minLatency {
		return g.minLatency
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.minLatency + time.Duration(g.rng.Int63n(int64(g.maxLatency-g.minLatency)))
}
