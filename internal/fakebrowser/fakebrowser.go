// Package fakebrowser provides an in-memory browser session for tests.
package fakebrowser

import (
	"context"
	"errors"
	"sync"
	"time"

	"stepflow/internal/locator"
)

var ErrNoMatch = errors.New("fakebrowser: no match")

type Action struct {
	Kind    string // navigate, click, fill, wait-visible, wait-clickable, page-load, screenshot
	Element string
	Value   string
	Variant locator.ClickVariant
}

// Browser answers selector queries from Elements and records every call.
type Browser struct {
	mu sync.Mutex

	Elements map[locator.Selector]string
	Queries  []locator.Selector
	Actions  []Action

	NavigateErr   error
	ClickErr      error
	FillErr       error
	WaitErr       error
	PageLoadErr   error
	ScreenshotErr error

	// OnAction runs after an action is recorded and before it returns.
	OnAction func(Action)
}

func New() *Browser {
	return &Browser{Elements: make(map[locator.Selector]string)}
}

// With registers an element reachable through sel.
func (b *Browser) With(sel locator.Selector, name string) *Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Elements[sel] = name
	return b
}

func (b *Browser) Find(ctx context.Context, sel locator.Selector, _ time.Duration) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.Queries = append(b.Queries, sel)
	name, ok := b.Elements[sel]
	b.mu.Unlock()
	if !ok {
		return nil, ErrNoMatch
	}
	return name, nil
}

func (b *Browser) Navigate(_ context.Context, url string, _ time.Duration) error {
	return b.record(Action{Kind: "navigate", Value: url}, b.NavigateErr)
}

func (b *Browser) Click(_ context.Context, el locator.ElementHandle, v locator.ClickVariant) error {
	return b.record(Action{Kind: "click", Element: name(el), Variant: v}, b.ClickErr)
}

func (b *Browser) Fill(_ context.Context, el locator.ElementHandle, value string) error {
	return b.record(Action{Kind: "fill", Element: name(el), Value: value}, b.FillErr)
}

func (b *Browser) WaitVisible(_ context.Context, el locator.ElementHandle, _ time.Duration) error {
	return b.record(Action{Kind: "wait-visible", Element: name(el)}, b.WaitErr)
}

func (b *Browser) WaitClickable(_ context.Context, el locator.ElementHandle, _ time.Duration) error {
	return b.record(Action{Kind: "wait-clickable", Element: name(el)}, b.WaitErr)
}

func (b *Browser) WaitPageLoad(_ context.Context, _ time.Duration) error {
	return b.record(Action{Kind: "page-load"}, b.PageLoadErr)
}

func (b *Browser) Screenshot(_ context.Context) ([]byte, error) {
	if err := b.record(Action{Kind: "screenshot"}, b.ScreenshotErr); err != nil {
		return nil, err
	}
	return []byte("\x89PNG fake"), nil
}

func (b *Browser) record(a Action, err error) error {
	b.mu.Lock()
	b.Actions = append(b.Actions, a)
	hook := b.OnAction
	b.mu.Unlock()
	if hook != nil {
		hook(a)
	}
	return err
}

// ActionsOf returns the recorded actions of one kind.
func (b *Browser) ActionsOf(kind string) []Action {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Action
	for _, a := range b.Actions {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

func (b *Browser) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Queries = nil
	b.Actions = nil
}

func name(el locator.ElementHandle) string {
	s, _ := el.Ref.(string)
	return s
}
