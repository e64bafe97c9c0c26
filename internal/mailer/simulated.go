package mailer

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SimulatedSender stands in for a real provider: it waits roughly the
// latency of a network send and fails a configurable fraction of attempts.
type SimulatedSender struct {
	Latency     time.Duration
	FailureRate float64
	Log         *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand

	// sleep is swappable so tests do not wait out the latency.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSimulatedSender(latency time.Duration, failureRate float64, log *zap.Logger) *SimulatedSender {
	return &SimulatedSender{
		Latency:     latency,
		FailureRate: failureRate,
		Log:         log,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:       sleepCtx,
	}
}

func (s *SimulatedSender) Send(ctx context.Context, to, subject, body string) error {
	if err := s.sleep(ctx, s.Latency); err != nil {
		return err
	}

	s.mu.Lock()
	failed := s.rng.Float64() < s.FailureRate
	s.mu.Unlock()

	if failed {
		return fmt.Errorf("%w: simulated provider rejection for %s", ErrSendFailed, to)
	}

	s.Log.Info("email sent",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
