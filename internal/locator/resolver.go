package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stepflow/pkg/logger"
	"stepflow/pkg/metrics"
)

// ErrNotFound is matched by every *NotFoundError.
var ErrNotFound = errors.New("element not found")

// NotFoundError reports that every strategy was exhausted for a target.
type NotFoundError struct {
	Target   string // original target, modifier included
	Attempts int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("element not found for target %q after %d attempts", e.Target, e.Attempts)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Finder runs one selector query against the live page. A nil ref or a non-nil
// error both count as no match.
type Finder interface {
	Find(ctx context.Context, sel Selector, timeout time.Duration) (any, error)
}

// ElementHandle is an opaque reference to a located element. It is only valid
// for the step that resolved it.
type ElementHandle struct {
	Ref      any
	Selector Selector
}

type Resolution struct {
	Handle   ElementHandle
	Target   Target
	Strategy string
	Attempts int
}

type Timeouts struct {
	Primary      time.Duration
	Fallback     time.Duration
	LastFallback time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Primary:      10 * time.Second,
		Fallback:     2 * time.Second,
		LastFallback: time.Second,
	}
}

type Resolver struct {
	finder     Finder
	strategies []Strategy
	timeouts   Timeouts
	log        *zap.SugaredLogger
}

type Option func(*Resolver)

func WithTimeouts(t Timeouts) Option {
	return func(r *Resolver) {
		if t.Primary > 0 {
			r.timeouts.Primary = t.Primary
		}
		if t.Fallback > 0 {
			r.timeouts.Fallback = t.Fallback
		}
		if t.LastFallback > 0 {
			r.timeouts.LastFallback = t.LastFallback
		}
	}
}

func WithStrategies(s []Strategy) Option {
	return func(r *Resolver) { r.strategies = s }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Resolver) { r.log = l }
}

func NewResolver(f Finder, opts ...Option) *Resolver {
	r := &Resolver{
		finder:     f,
		strategies: DefaultStrategies(),
		timeouts:   DefaultTimeouts(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.L()
	}
	return r
}

// Resolve walks the strategy chain for raw and returns the first match.
// A timeout <= 0 uses the configured primary timeout. Strategies after the
// first hit are never consulted, and a selector already tried is not tried again.
func (r *Resolver) Resolve(ctx context.Context, raw string, timeout time.Duration) (*Resolution, error) {
	target := ParseTarget(raw)
	if timeout <= 0 {
		timeout = r.timeouts.Primary
	}

	seen := make(map[Selector]struct{})
	attempts := 0
	for _, st := range r.strategies {
		for _, sel := range st.Candidates(target.Expr) {
			if _, ok := seen[sel]; ok {
				continue
			}
			seen[sel] = struct{}{}

			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("resolve %q: %w", raw, err)
			}
			attempts++
			ref, err := r.finder.Find(ctx, sel, r.timeoutFor(st.Tier, timeout))
			if err != nil || ref == nil {
				continue
			}

			if st.Tier != TierPrimary {
				r.log.Infow("🔄 located element via fallback", "target", raw, "strategy", st.Name, "selector", sel.String())
			}
			metrics.LocatorResolutions.WithLabelValues(st.Name).Inc()
			return &Resolution{
				Handle:   ElementHandle{Ref: ref, Selector: sel},
				Target:   target,
				Strategy: st.Name,
				Attempts: attempts,
			}, nil
		}
	}

	metrics.LocatorResolutions.WithLabelValues("none").Inc()
	return nil, &NotFoundError{Target: raw, Attempts: attempts}
}

func (r *Resolver) timeoutFor(tier Tier, primary time.Duration) time.Duration {
	switch tier {
	case TierFallback:
		return r.timeouts.Fallback
	case TierLastFallback:
		return r.timeouts.LastFallback
	}
	return primary
}
