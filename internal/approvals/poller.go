package approvals

import (
	"context"
	"log/slog"
	"time"
)

// Poller refreshes the pending snapshot on a fixed interval, independent of
// any request/response cycle. It may run concurrently with user-initiated
// create and review calls.
type Poller struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
}

// NewPoller constructs a Poller.
func NewPoller(service *Service, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{service: service, interval: interval, logger: logger}
}

// Run polls until the context is cancelled. Refresh failures are logged and
// the previous snapshot stands.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.service.RefreshPending(ctx); err != nil {
				p.logger.Warn("pending refresh", slog.Any("error", err))
			}
		}
	}
}
