package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"notifykit/core"
)

const defaultPushTimeout = 2 * time.Second

// Dispatcher performs best-effort live delivery: every push runs on its own
// goroutine bounded by a per-push timeout, so one unresponsive connection
// never stalls delivery to the rest of the fan-out. Delivery failures are
// never surfaced as errors; they only lower the report's Delivered count.
type Dispatcher struct {
	registry    *Registry
	pushTimeout time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPushTimeout bounds each individual connection push.
func WithPushTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.pushTimeout = d
		}
	}
}

func NewDispatcher(registry *Registry, opts ...Option) *Dispatcher {
	if registry == nil {
		panic("NewDispatcher requires a non-nil registry")
	}
	d := &Dispatcher{registry: registry, pushTimeout: defaultPushTimeout}
	for _, o := range opts {
		o(d)
	}
	return d
}

// DispatchUser delivers ev to every live session of a single identity.
// Zero sessions yields {0,0} and never raises.
func (d *Dispatcher) DispatchUser(ctx context.Context, to core.Identity, ev core.Event) core.DeliveryReport {
	sessions := d.registry.SessionsFor(to)
	if len(sessions) == 0 {
		return core.DeliveryReport{}
	}
	payload := core.MarshalJSONBytes(ev.WithTarget(to))

	var delivered int64
	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s Session) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, d.pushTimeout)
			defer cancel()
			if err := s.Push(pctx, payload); err == nil {
				atomic.AddInt64(&delivered, 1)
			}
		}(s)
	}
	wg.Wait()
	return core.DeliveryReport{Attempted: len(sessions), Delivered: int(atomic.LoadInt64(&delivered))}
}

// DispatchUsers fans ev out to each target identity, re-addressing the
// payload per recipient, and returns the aggregate report.
func (d *Dispatcher) DispatchUsers(ctx context.Context, targets []core.Identity, ev core.Event) core.DeliveryReport {
	var report core.DeliveryReport
	for _, target := range targets {
		report.Merge(d.DispatchUser(ctx, target, ev))
	}
	return report
}
