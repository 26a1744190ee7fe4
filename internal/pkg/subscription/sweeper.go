package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Sweeper periodically expires subscriptions whose billing period elapsed.
type Sweeper struct {
	interval time.Duration
	svc      *Service
}

func NewSweeper(interval time.Duration, svc *Service) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{interval: interval, svc: svc}
}

// Run blocks until the context is cancelled, sweeping on every tick.
func (w *Sweeper) Run(ctx context.Context) error {
	log.Info("[Sweeper] Starting subscription expiry sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("[Sweeper] Stopping subscription expiry sweeper")
			return ctx.Err()
		case <-ticker.C:
			result, err := w.svc.ProcessExpired(ctx)
			if err != nil {
				log.Error(fmt.Sprintf("[Sweeper] Sweep failed: %v", err))
				continue
			}
			if result.Processed > 0 {
				log.Info(fmt.Sprintf("[Sweeper] Expired %d subscriptions (%d failures)",
					result.Processed-len(result.Errors), len(result.Errors)))
			}
		}
	}
}
