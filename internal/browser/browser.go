// Package browser wraps chromedp and owns the headless Chrome lifecycle.
// A launch or warmup failure here is the one fatal error class in the
// system; everything downstream degrades per probe instead.
package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config controls the headless browser subsystem.
type Config struct {
	Headless   bool
	UserAgent  string
	NavTimeout time.Duration
}

// Browser owns the chromedp allocator and warm browser context.
type Browser struct {
	cfg             Config
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
}

// New launches the browser process and warms it up.
func New(cfg Config, logger *zap.Logger) (*Browser, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Browser{
		cfg:             cfg,
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (b *Browser) Close() {
	if b == nil {
		return
	}
	b.browserCancel()
	b.allocatorCancel()
}

// NewSession opens one tab that the crawl drives sequentially for its whole
// lifetime. The returned cleanup closes the tab.
func (b *Browser) NewSession() (*Session, func(), error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)

	if err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if b.cfg.UserAgent == "" {
				return nil
			}
			return emulation.SetUserAgentOverride(b.cfg.UserAgent).Do(ctx)
		}),
	); err != nil {
		cancelTab()
		return nil, nil, fmt.Errorf("prepare tab: %w", err)
	}

	session := &Session{
		tabCtx:     tabCtx,
		navTimeout: b.cfg.NavTimeout,
		logger:     b.logger,
	}
	return session, cancelTab, nil
}

// Session is one browser tab. It implements the navigation, evaluation and
// script-injection surface the crawler and probes consume.
type Session struct {
	tabCtx     context.Context
	navTimeout time.Duration
	logger     *zap.Logger
}

// Navigate loads the URL and waits for the body to be ready, bounded by the
// configured navigation timeout.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	taskCtx, cancel := s.taskContext(ctx, s.navTimeout)
	defer cancel()

	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	return nil
}

// Evaluate runs the expression in the page and decodes the JSON result into
// out. Promise results are awaited; out may be nil to discard the value.
func (s *Session) Evaluate(ctx context.Context, expression string, out any) error {
	taskCtx, cancel := s.taskContext(ctx, 0)
	defer cancel()

	if out == nil {
		var discard any
		out = &discard
	}
	err := chromedp.Run(taskCtx, chromedp.Evaluate(expression, out,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true).WithReturnByValue(true)
		},
	))
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// InjectScript executes a script source in the page.
func (s *Session) InjectScript(ctx context.Context, source string) error {
	return s.Evaluate(ctx, source, nil)
}

// injectScriptURLExpr appends a script tag and resolves once it loads.
const injectScriptURLExpr = `new Promise((resolve, reject) => {
	const tag = document.createElement('script');
	tag.src = %s;
	tag.onload = () => resolve(true);
	tag.onerror = () => reject(new Error('script load failed'));
	document.head.appendChild(tag);
})`

// InjectScriptURL appends a script tag pointing at url and waits for it to
// load. Pages whose content-security policy forbids the source reject here.
func (s *Session) InjectScriptURL(ctx context.Context, url string) error {
	var loaded bool
	expr := fmt.Sprintf(injectScriptURLExpr, strconv.Quote(url))
	if err := s.Evaluate(ctx, expr, &loaded); err != nil {
		return fmt.Errorf("inject script url: %w", err)
	}
	return nil
}

// HTML serializes the current DOM.
func (s *Session) HTML(ctx context.Context) (string, error) {
	taskCtx, cancel := s.taskContext(ctx, 0)
	defer cancel()

	var html string
	if err := chromedp.Run(taskCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("serialize dom: %w", err)
	}
	return html, nil
}

// Location returns the page's current URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	taskCtx, cancel := s.taskContext(ctx, 0)
	defer cancel()

	var loc string
	if err := chromedp.Run(taskCtx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// taskContext derives a tab-bound context that also honors the caller's
// cancellation, optionally with a timeout.
func (s *Session) taskContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var taskCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		taskCtx, cancel = context.WithTimeout(s.tabCtx, timeout)
	} else {
		taskCtx, cancel = context.WithCancel(s.tabCtx)
	}

	stopForward := forwardCancel(parent, cancel)
	return taskCtx, func() {
		stopForward()
		cancel()
	}
}

// forwardCancel cancels the chromedp task when the caller's context ends.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
