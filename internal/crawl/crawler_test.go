package crawl

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitegauge/sitegauge/internal/audit"
)

// fakeSite plays both the navigator and the auditor: navigation tracks the
// current page, auditing records the order URLs were processed in.
type fakeSite struct {
	pages   map[string]string
	navErrs map[string]error

	current     string
	navigations []string
	audited     []string
}

func (f *fakeSite) Navigate(_ context.Context, url string) error {
	f.navigations = append(f.navigations, url)
	if err, ok := f.navErrs[url]; ok {
		return err
	}
	f.current = url
	return nil
}

func (f *fakeSite) HTML(context.Context) (string, error) {
	html, ok := f.pages[f.current]
	if !ok {
		return "<html></html>", nil
	}
	return html, nil
}

func (f *fakeSite) Audit(_ context.Context, url string) audit.PageRecord {
	f.audited = append(f.audited, url)
	return audit.PageRecord{URL: url, Scores: audit.ScoreSet{Overall: 75}}
}

func newCrawler(cfg Config, site *fakeSite) *Crawler {
	return New(cfg, site, site, zap.NewNop())
}

func link(href string) string {
	return fmt.Sprintf(`<a href="%s">x</a>`, href)
}

func TestCrawlSinglePageSite(t *testing.T) {
	site := &fakeSite{pages: map[string]string{
		"https://example.com/": "<html><body>no links</body></html>",
	}}
	c := newCrawler(Config{MaxPages: 1, MaxDepth: 2}, site)

	records, err := c.Run(context.Background(), "https://example.com/")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "https://example.com/", records[0].URL)
	assert.Equal(t, []string{"https://example.com/"}, site.audited)
}

func TestCrawlRespectsPageBudget(t *testing.T) {
	site := &fakeSite{pages: map[string]string{
		"https://example.com/":  link("/a") + link("/b") + link("/c"),
		"https://example.com/a": link("/d"),
	}}
	c := newCrawler(Config{MaxPages: 2, MaxDepth: 5}, site)

	records, err := c.Run(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, []string{"https://example.com/", "https://example.com/a"}, site.audited)
}

func TestCrawlRespectsDepthBudget(t *testing.T) {
	site := &fakeSite{pages: map[string]string{
		"https://example.com/":  link("/a"),
		"https://example.com/a": link("/b"),
		"https://example.com/b": link("/c"),
	}}
	c := newCrawler(Config{MaxPages: 10, MaxDepth: 1}, site)

	_, err := c.Run(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/", "https://example.com/a"}, site.audited,
		"depth 2 link must not be audited")
}

func TestCrawlAuditsEachURLOnce(t *testing.T) {
	// Both children link back to the entry and to each other.
	site := &fakeSite{pages: map[string]string{
		"https://example.com/":  link("/a") + link("/b"),
		"https://example.com/a": link("/") + link("/b"),
		"https://example.com/b": link("/") + link("/a"),
	}}
	c := newCrawler(Config{MaxPages: 10, MaxDepth: 5}, site)

	_, err := c.Run(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/",
		"https://example.com/a",
		"https://example.com/b",
	}, site.audited)
}

func TestCrawlDepthFirstInDiscoveryOrder(t *testing.T) {
	site := &fakeSite{pages: map[string]string{
		"https://example.com/":  link("/a") + link("/b"),
		"https://example.com/a": link("/a1") + link("/a2"),
	}}
	c := newCrawler(Config{MaxPages: 10, MaxDepth: 5}, site)

	_, err := c.Run(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/",
		"https://example.com/a",
		"https://example.com/a1",
		"https://example.com/a2",
		"https://example.com/b",
	}, site.audited, "children are fully explored before siblings")
}

func TestCrawlFragmentVariantsCollapse(t *testing.T) {
	site := &fakeSite{pages: map[string]string{
		"https://example.com/": link("/page#a") + link("/page#b"),
	}}
	c := newCrawler(Config{MaxPages: 10, MaxDepth: 5}, site)

	_, err := c.Run(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/",
		"https://example.com/page",
	}, site.audited)
}

func TestCrawlNavigationFailureStillAudits(t *testing.T) {
	site := &fakeSite{
		pages: map[string]string{
			"https://example.com/": link("/broken") + link("/ok"),
		},
		navErrs: map[string]error{
			"https://example.com/broken": fmt.Errorf("net::ERR_CONNECTION_RESET"),
		},
	}
	c := newCrawler(Config{MaxPages: 10, MaxDepth: 5}, site)

	_, err := c.Run(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Contains(t, site.audited, "https://example.com/broken")
	assert.Contains(t, site.audited, "https://example.com/ok")
}

func TestCrawlInvalidEntryURL(t *testing.T) {
	c := newCrawler(Config{MaxPages: 1, MaxDepth: 1}, &fakeSite{})
	_, err := c.Run(context.Background(), "http://exa mple.com/")
	assert.Error(t, err)
}

func TestCrawlCanceledContextStopsEarly(t *testing.T) {
	site := &fakeSite{pages: map[string]string{
		"https://example.com/": link("/a"),
	}}
	c := newCrawler(Config{MaxPages: 10, MaxDepth: 5}, site)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := c.Run(ctx, "https://example.com/")
	require.NoError(t, err)
	assert.Empty(t, records)
}
