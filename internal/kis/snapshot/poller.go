// Package snapshot fills indicator windows when the realtime stream is
// quiet by polling the REST current-price endpoint and emitting the result
// as snapshot ticks into the same pipeline.
package snapshot

import (
	"context"
	"time"

	"tradesignal/internal/kis/codec"

	"go.uber.org/zap"
)

// PriceFetcher fetches one instrument's current price as a snapshot tick.
type PriceFetcher interface {
	GetPrice(ctx context.Context, code string) (*codec.TickEvent, error)
}

type Poller struct {
	fetcher  PriceFetcher
	codes    []string
	interval time.Duration
	out      chan<- codec.TickEvent
	logger   *zap.Logger
}

func NewPoller(fetcher PriceFetcher, codes []string, interval time.Duration,
	out chan<- codec.TickEvent, logger *zap.Logger) *Poller {
	return &Poller{
		fetcher:  fetcher,
		codes:    codes,
		interval: interval,
		out:      out,
		logger:   logger,
	}
}

// Run polls every interval until the context is canceled. Fetch failures are
// logged per instrument and never stop the loop.
func (p *Poller) Run(ctx context.Context) {
	if p.interval <= 0 || len(p.codes) == 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	for _, code := range p.codes {
		fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		tick, err := p.fetcher.GetPrice(fetchCtx, code)
		cancel()
		if err != nil {
			p.logger.Warn("price poll failed", zap.String("code", code), zap.Error(err))
			continue
		}

		select {
		case p.out <- *tick:
		case <-ctx.Done():
			return
		}
	}
}
