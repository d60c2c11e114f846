package chrome

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"stepflow/internal/executor"
	"stepflow/internal/locator"
	"stepflow/pkg/logger"
)

type byKind int

const (
	byID byKind = iota
	byQuery
	bySearch
)

type query struct {
	sel string
	by  byKind
}

func (q query) option() chromedp.QueryOption {
	switch q.by {
	case byID:
		return chromedp.ByID
	case bySearch:
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

var cssIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// queryFor maps a locator selector to a chromedp query. Ids and classes that
// are not plain CSS identifiers are matched through xpath instead.
func queryFor(sel locator.Selector) query {
	switch sel.Kind {
	case locator.KindID:
		if cssIdent.MatchString(sel.Value) {
			return query{"#" + sel.Value, byID}
		}
		return query{fmt.Sprintf("//*[@id=%s]", locator.XPathLiteral(sel.Value)), bySearch}
	case locator.KindClass:
		if cssIdent.MatchString(sel.Value) {
			return query{"." + sel.Value, byQuery}
		}
		return query{fmt.Sprintf("//*[contains(concat(' ',normalize-space(@class),' '),%s)]", locator.XPathLiteral(" "+sel.Value+" ")), bySearch}
	case locator.KindXPath:
		return query{sel.Value, bySearch}
	}
	return query{sel.Value, byQuery}
}

// Session is one browser tab driven through chromedp.
type Session struct {
	ctx           context.Context
	cancel        context.CancelFunc
	actionTimeout time.Duration
	log           *zap.SugaredLogger
}

var _ executor.Browser = (*Session)(nil)

// scope derives a context on the tab that also ends when caller ends.
func (s *Session) scope(caller context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(s.ctx)
	}
	stop := context.AfterFunc(caller, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func nodeOf(el locator.ElementHandle) (*cdp.Node, error) {
	n, ok := el.Ref.(*cdp.Node)
	if !ok || n == nil {
		return nil, errors.New("element handle does not belong to a chrome session")
	}
	return n, nil
}

func (s *Session) Find(ctx context.Context, sel locator.Selector, timeout time.Duration) (any, error) {
	q := queryFor(sel)
	tctx, cancel := s.scope(ctx, timeout)
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(tctx, chromedp.Nodes(q.sel, &nodes, q.option())); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	tctx, cancel := s.scope(ctx, timeout)
	defer cancel()
	return chromedp.Run(tctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *Session) Click(ctx context.Context, el locator.ElementHandle, variant locator.ClickVariant) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	var opts []chromedp.MouseOption
	switch variant {
	case locator.ClickRight:
		opts = append(opts, chromedp.ButtonRight)
	case locator.ClickDouble:
		opts = append(opts, chromedp.ClickCount(2))
	}
	ids := []cdp.NodeID{node.NodeID}

	const maxRetries = 3
	for attempt := 1; attempt <= maxRetries; attempt++ {
		tctx, cancel := s.scope(ctx, s.actionTimeout)
		err = chromedp.Run(tctx,
			chromedp.ScrollIntoView(ids, chromedp.ByNodeID),
			chromedp.WaitVisible(ids, chromedp.ByNodeID),
			chromedp.WaitEnabled(ids, chromedp.ByNodeID),
			chromedp.MouseClickNode(node, opts...),
		)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == maxRetries {
			break
		}
		s.log.Debugf("Click attempt %d failed for %s: %v, retrying...", attempt, el.Selector, err)
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return fmt.Errorf("click %s failed after %d attempts: %w", el.Selector, maxRetries, err)
}

func (s *Session) Fill(ctx context.Context, el locator.ElementHandle, value string) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	ids := []cdp.NodeID{node.NodeID}
	tctx, cancel := s.scope(ctx, s.actionTimeout)
	defer cancel()
	return chromedp.Run(tctx,
		chromedp.ScrollIntoView(ids, chromedp.ByNodeID),
		chromedp.Clear(ids, chromedp.ByNodeID),
		chromedp.SendKeys(ids, value, chromedp.ByNodeID),
	)
}

func (s *Session) WaitVisible(ctx context.Context, el locator.ElementHandle, timeout time.Duration) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	tctx, cancel := s.scope(ctx, timeout)
	defer cancel()
	return chromedp.Run(tctx, chromedp.WaitVisible([]cdp.NodeID{node.NodeID}, chromedp.ByNodeID))
}

func (s *Session) WaitClickable(ctx context.Context, el locator.ElementHandle, timeout time.Duration) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	ids := []cdp.NodeID{node.NodeID}
	tctx, cancel := s.scope(ctx, timeout)
	defer cancel()
	return chromedp.Run(tctx,
		chromedp.WaitVisible(ids, chromedp.ByNodeID),
		chromedp.WaitEnabled(ids, chromedp.ByNodeID),
	)
}

func (s *Session) WaitPageLoad(ctx context.Context, timeout time.Duration) error {
	tctx, cancel := s.scope(ctx, timeout)
	defer cancel()
	return chromedp.Run(tctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	tctx, cancel := s.scope(ctx, 10*time.Second)
	defer cancel()
	var buf []byte
	if err := chromedp.Run(tctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

type Options struct {
	Headless      bool
	RemoteURL     string // attach to a running browser instead of launching one
	ExecPath      string
	Device        string
	ActionTimeout time.Duration
}

// Provider creates one chromedp session per call.
type Provider struct {
	opts Options
	log  *zap.SugaredLogger
}

func NewProvider(opts Options, log *zap.SugaredLogger) *Provider {
	if log == nil {
		log = logger.L()
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 10 * time.Second
	}
	return &Provider{opts: opts, log: log}
}

// CreateSession starts or attaches to a browser and opens a tab. The session
// lives until DestroySession regardless of ctx.
func (p *Provider) CreateSession(ctx context.Context) (executor.Browser, error) {
	base := context.WithoutCancel(ctx)

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if p.opts.RemoteURL != "" {
		p.log.Infof("🔌 Attaching to Chrome at %s", p.opts.RemoteURL)
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(base, p.opts.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", p.opts.Headless),
			chromedp.Flag("enable-features", "OverlayScrollbar"),
			chromedp.WindowSize(1920, 1080),
		)
		if path := ResolveExecPath(p.opts.ExecPath); path != "" {
			opts = append(opts, chromedp.ExecPath(path))
			p.log.Infof("🚀 Launching Chrome from %s (headless=%t)", path, p.opts.Headless)
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(base, opts...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	// the first Run starts the browser and must use the tab context itself
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	if p.opts.Device != "" {
		dev, err := LookupDevice(p.opts.Device)
		if err != nil {
			p.log.Warnf("⚠️ %v, running without emulation", err)
		} else if err := chromedp.Run(tabCtx, emulate(dev)); err != nil {
			cancel()
			return nil, fmt.Errorf("emulate %s: %w", dev.Name, err)
		} else {
			p.log.Infof("🎭 Emulating %s (%dx%d, mobile=%t)", dev.Name, dev.Width, dev.Height, dev.Mobile)
		}
	}

	return &Session{ctx: tabCtx, cancel: cancel, actionTimeout: p.opts.ActionTimeout, log: p.log}, nil
}

func (p *Provider) DestroySession(b executor.Browser) error {
	s, ok := b.(*Session)
	if !ok {
		return fmt.Errorf("not a chrome session: %T", b)
	}
	s.Close()
	p.log.Info("🧹 Chrome session closed")
	return nil
}
