package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/sdrelite/marketbot/internal/core/domain"
	"github.com/sdrelite/marketbot/internal/port"
)

const deliveryTimeout = 10 * time.Second

type DispatcherConfig struct {
	Admins       []string
	PublicChatID string
	Currency     string
}

// Dispatcher consumes lifecycle events and delivers notifications.
// Delivery is best-effort and at-least-once: a failed target is logged
// and never blocks the other targets, and never undoes the transition.
// A dedupe key per (event, target) keeps redelivery from double-posting.
type Dispatcher struct {
	messenger port.Messenger
	cache     port.CacheRepository
	cfg       DispatcherConfig
	log       *zap.Logger
}

func NewDispatcher(messenger port.Messenger, cache port.CacheRepository, cfg DispatcherConfig, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		messenger: messenger,
		cache:     cache,
		cfg:       cfg,
		log:       log,
	}
}

// Run consumes events until the channel is closed. Start one or more
// workers with the same channel; each event is handled by exactly one.
func (d *Dispatcher) Run(events <-chan domain.Event) {
	for ev := range events {
		d.dispatch(ev)
	}
}

func (d *Dispatcher) dispatch(ev domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	targets := d.targets(ev)
	text := d.render(ev)

	var (
		mu   sync.Mutex
		errs *multierror.Error
		wg   sync.WaitGroup
	)
	for _, target := range targets {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			if err := d.deliver(ctx, ev, target, text); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, err)
				mu.Unlock()
			}
		}(target)
	}
	wg.Wait()

	if err := errs.ErrorOrNil(); err != nil {
		d.log.Warn("notification delivery incomplete",
			zap.String("event_id", ev.ID),
			zap.String("event_type", string(ev.Type)),
			zap.Error(err))
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev domain.Event, target, text string) error {
	fresh, err := d.cache.SetIdempotency(ctx, ev.ID+":"+target)
	if err != nil {
		// Cache down: deliver anyway, the contract is at-least-once.
		d.log.Warn("notification dedupe unavailable",
			zap.String("event_id", ev.ID), zap.Error(err))
	} else if !fresh {
		return nil
	}

	if err := d.messenger.Send(ctx, target, text); err != nil {
		return fmt.Errorf("send to %s: %w", target, err)
	}
	return nil
}

func (d *Dispatcher) targets(ev domain.Event) []string {
	switch ev.Type {
	case domain.EventProductPendingApproval:
		return d.cfg.Admins
	case domain.EventProductApproved:
		return []string{d.cfg.PublicChatID}
	case domain.EventProductDenied:
		return []string{ev.Product.OwnerID}
	}
	return nil
}

func (d *Dispatcher) render(ev domain.Event) string {
	p := ev.Product
	switch ev.Type {
	case domain.EventProductPendingApproval:
		return fmt.Sprintf("📩 New product pending approval:\nName: %s\nPrice: %s %s\nSeller ID: %s",
			p.Name, p.Price, d.cfg.Currency, p.OwnerID)
	case domain.EventProductApproved:
		return fmt.Sprintf("🛍️ New Verified Product!\nProduct: %s\nPrice: %s %s\nApproved by admin.",
			p.Name, p.Price, d.cfg.Currency)
	case domain.EventProductDenied:
		return fmt.Sprintf("❌ Your product '%s' has been denied by admin.", p.Name)
	}
	return ""
}
