package executor

import (
	"context"
	"time"

	"stepflow/internal/locator"
)

// Browser is the automation surface a session exposes to the interpreter.
// Element arguments are handles produced by the same session's Find.
type Browser interface {
	locator.Finder

	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Click(ctx context.Context, el locator.ElementHandle, variant locator.ClickVariant) error
	Fill(ctx context.Context, el locator.ElementHandle, value string) error
	WaitVisible(ctx context.Context, el locator.ElementHandle, timeout time.Duration) error
	WaitClickable(ctx context.Context, el locator.ElementHandle, timeout time.Duration) error
	WaitPageLoad(ctx context.Context, timeout time.Duration) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// Timeouts bundles the element and navigation deadlines used by a run.
type Timeouts struct {
	Locator    locator.Timeouts
	Navigation time.Duration
	StepDelay  time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Locator:    locator.DefaultTimeouts(),
		Navigation: 30 * time.Second,
		StepDelay:  500 * time.Millisecond,
	}
}
