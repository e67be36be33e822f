package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sitegauge/sitegauge/internal/audit"
)

// CarbonConfig points the probe at a carbon-estimation API and sets the
// courtesy pacing for its third-party rate limit.
type CarbonConfig struct {
	Endpoint string
	Delay    time.Duration
	Timeout  time.Duration
	// Backoff applied after a 429 before giving up on the page's estimate.
	RateLimitBackoff time.Duration
}

// Carbon queries a public carbon-estimation API for the page URL. Failures of
// any kind resolve to an estimate-less result rather than an error: the
// estimate is a nice-to-have signal, never worth failing an audit over.
type Carbon struct {
	cfg     CarbonConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewCarbon creates the carbon-estimate probe.
func NewCarbon(cfg CarbonConfig, logger *zap.Logger) *Carbon {
	if cfg.Delay <= 0 {
		cfg.Delay = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RateLimitBackoff <= 0 {
		cfg.RateLimitBackoff = 30 * time.Second
	}
	return &Carbon{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(cfg.Delay), 1),
		logger:  logger,
	}
}

// carbonResponse mirrors the slice of the API payload the probe consumes.
type carbonResponse struct {
	Green       any      `json:"green"`
	CleanerThan *float64 `json:"cleanerThan"`
	Statistics  struct {
		CO2 struct {
			Grid struct {
				Grams *float64 `json:"grams"`
			} `json:"grid"`
		} `json:"co2"`
	} `json:"statistics"`
}

// Run fetches the estimate for pageURL. A 429 triggers an extended backoff
// pause and a rate-limited skip marker; other non-2xx responses and
// network/parse errors return a result with no estimate.
func (p *Carbon) Run(ctx context.Context, pageURL string) *audit.CarbonResult {
	if err := p.limiter.Wait(ctx); err != nil {
		return &audit.CarbonResult{}
	}

	endpoint := fmt.Sprintf("%s?url=%s", p.cfg.Endpoint, url.QueryEscape(pageURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		p.logger.Warn("build carbon request failed", zap.Error(err))
		return &audit.CarbonResult{}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("carbon request failed",
			zap.String("kind", Classify(err).String()),
			zap.Error(err),
		)
		return &audit.CarbonResult{}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.logger.Warn("carbon api rate limited, backing off",
			zap.Duration("backoff", p.cfg.RateLimitBackoff),
		)
		select {
		case <-time.After(p.cfg.RateLimitBackoff):
		case <-ctx.Done():
		}
		return &audit.CarbonResult{Skipped: true, SkipReason: "rate limited by carbon api"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Warn("carbon api returned non-2xx", zap.Int("status", resp.StatusCode))
		return &audit.CarbonResult{}
	}

	var payload carbonResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		p.logger.Warn("decode carbon response failed", zap.Error(err))
		return &audit.CarbonResult{}
	}

	return &audit.CarbonResult{
		Grams:       payload.Statistics.CO2.Grid.Grams,
		CleanerThan: payload.CleanerThan,
		Green:       payload.Green == true,
	}
}
