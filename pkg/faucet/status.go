package faucet

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// StatusSink receives the recomputed per-hit amount for display.
type StatusSink interface {
	PublishStatus(ctx context.Context, amount float64) error
}

type PublisherConfig struct {
	Logger     *slog.Logger
	Calculator *Calculator
	Sink       StatusSink
	Clock      clockwork.Clock
	Interval   time.Duration
}

func (cfg *PublisherConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Calculator == nil {
		return errors.New("calculator is required")
	}
	if cfg.Sink == nil {
		return errors.New("status sink is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}
	return nil
}

// Publisher periodically recomputes the current per-hit amount and pushes
// it to the display surface. Pure read: it never mutates user or counter
// state, and a failed recomputation leaves the previously published value
// in place.
type Publisher struct {
	log      *slog.Logger
	calc     *Calculator
	sink     StatusSink
	clock    clockwork.Clock
	interval time.Duration
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Publisher{
		log:      cfg.Logger,
		calc:     cfg.Calculator,
		sink:     cfg.Sink,
		clock:    cfg.Clock,
		interval: cfg.Interval,
	}, nil
}

// Run publishes once immediately, then on every tick until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	p.PublishOnce(ctx)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.PublishOnce(ctx)
		}
	}
}

// PublishOnce recomputes and publishes the per-hit amount.
func (p *Publisher) PublishOnce(ctx context.Context) {
	amount, err := p.calc.PerHitAmount(ctx)
	if err != nil {
		StatusPublishesTotal.WithLabelValues("compute_error").Inc()
		p.log.Warn("status recomputation failed, keeping previous value", "error", err)
		return
	}

	if err := p.sink.PublishStatus(ctx, amount); err != nil {
		StatusPublishesTotal.WithLabelValues("publish_error").Inc()
		p.log.Warn("status publish failed", "error", err)
		return
	}

	StatusPublishesTotal.WithLabelValues("ok").Inc()
	p.log.Debug("status published", "amount", amount)
}
