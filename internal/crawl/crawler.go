// Package crawl implements the bounded, deduplicating site traversal that
// decides which pages get audited and in what order.
package crawl

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sitegauge/sitegauge/internal/audit"
	"github.com/sitegauge/sitegauge/internal/metrics"
)

// Config holds the traversal budgets and pacing for one crawl.
type Config struct {
	MaxPages int
	MaxDepth int
	// Delay is the fixed inter-request pause after each audited page, a
	// courtesy to the target site and to quota-limited probes.
	Delay time.Duration
}

// Navigator drives the shared browser page.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
}

// Auditor runs the full audit pipeline against the currently loaded page.
type Auditor interface {
	Audit(ctx context.Context, url string) audit.PageRecord
}

// State is the traversal state owned exclusively by one Crawler run. It is
// created per run so independent crawls never share a visited-set.
type State struct {
	visited map[string]struct{}
}

// NewState creates an empty traversal state.
func NewState() *State {
	return &State{visited: make(map[string]struct{})}
}

// Visited reports whether the normalized URL was already claimed.
func (s *State) Visited(normalized string) bool {
	_, ok := s.visited[normalized]
	return ok
}

// MarkVisited claims the normalized URL. A URL is claimed exactly once,
// before it is audited, so no link path can schedule it twice.
func (s *State) MarkVisited(normalized string) {
	s.visited[normalized] = struct{}{}
}

// Count returns the number of claimed URLs.
func (s *State) Count() int {
	return len(s.visited)
}

// Crawler walks one site depth-first in link-discovery order within the
// configured budgets, auditing each admitted page before expanding its links.
type Crawler struct {
	cfg     Config
	nav     Navigator
	auditor Auditor
	logger  *zap.Logger
}

// New constructs a Crawler.
func New(cfg Config, nav Navigator, auditor Auditor, logger *zap.Logger) *Crawler {
	return &Crawler{
		cfg:     cfg,
		nav:     nav,
		auditor: auditor,
		logger:  logger,
	}
}

type frontierItem struct {
	url   string
	depth int
}

// Run crawls from entryURL at depth 0 and returns the audited page records
// in traversal order. The frontier is an explicit stack rather than
// recursion, so a large link graph cannot exhaust the call stack; pushing
// each page's links in reverse keeps the pop order equal to the
// link-discovery order.
func (c *Crawler) Run(ctx context.Context, entryURL string) ([]audit.PageRecord, error) {
	origin, err := url.Parse(entryURL)
	if err != nil {
		return nil, fmt.Errorf("parse entry url: %w", err)
	}

	start, err := NormalizeURL(entryURL)
	if err != nil {
		return nil, fmt.Errorf("normalize entry url: %w", err)
	}

	state := NewState()
	frontier := []frontierItem{{url: start, depth: 0}}
	var records []audit.PageRecord

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			c.logger.Info("crawl canceled", zap.Int("pages", len(records)))
			return records, nil
		}

		item := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]

		if state.Visited(item.url) {
			continue
		}
		if state.Count() >= c.cfg.MaxPages {
			c.logger.Info("page budget reached", zap.Int("max_pages", c.cfg.MaxPages))
			break
		}
		if item.depth > c.cfg.MaxDepth {
			continue
		}
		state.MarkVisited(item.url)
		metrics.SetCrawlDepth(item.depth)

		if err := c.nav.Navigate(ctx, item.url); err != nil {
			// The page is still audited against whatever state the
			// browser ended up in.
			c.logger.Warn("navigation failed, auditing current page state",
				zap.String("url", item.url),
				zap.Error(err),
			)
			metrics.RecordNavigationFailure()
		}

		rec := c.auditor.Audit(ctx, item.url)
		records = append(records, rec)

		c.pause(ctx)

		links := c.discoverLinks(ctx, item.url, origin)
		for i := len(links) - 1; i >= 0; i-- {
			frontier = append(frontier, frontierItem{url: links[i], depth: item.depth + 1})
		}
	}

	c.logger.Info("crawl finished",
		zap.Int("pages_audited", len(records)),
		zap.Int("urls_visited", state.Count()),
	)
	return records, nil
}

func (c *Crawler) discoverLinks(ctx context.Context, pageURL string, origin *url.URL) []string {
	html, err := c.nav.HTML(ctx)
	if err != nil {
		c.logger.Warn("read page for link discovery failed", zap.String("url", pageURL), zap.Error(err))
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	raw, err := ExtractLinks(html, base, origin)
	if err != nil {
		c.logger.Warn("link extraction failed", zap.String("url", pageURL), zap.Error(err))
		return nil
	}

	links := make([]string, 0, len(raw))
	for _, link := range raw {
		normalized, err := NormalizeURL(link)
		if err != nil {
			continue
		}
		links = append(links, normalized)
	}
	return links
}

func (c *Crawler) pause(ctx context.Context) {
	if c.cfg.Delay <= 0 {
		return
	}
	select {
	case <-time.After(c.cfg.Delay):
	case <-ctx.Done():
	}
}
