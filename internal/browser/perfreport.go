package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/performance"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// PerfReport is the performance-report artifact persisted alongside each
// page's detail record.
type PerfReport struct {
	URL         string             `json:"url"`
	CollectedAt time.Time          `json:"collected_at"`
	Metrics     map[string]float64 `json:"metrics"`
}

// PerfReporter generates a performance-report artifact from the browser's
// performance domain for the page currently loaded in the session.
type PerfReporter struct {
	session *Session
	logger  *zap.Logger
}

// NewPerfReporter creates a reporter bound to the crawl's session.
func NewPerfReporter(session *Session, logger *zap.Logger) *PerfReporter {
	return &PerfReporter{session: session, logger: logger}
}

// Report collects the current page's performance metrics and serializes the
// artifact document.
func (r *PerfReporter) Report(ctx context.Context, url string) ([]byte, error) {
	taskCtx, cancel := r.session.taskContext(ctx, 15*time.Second)
	defer cancel()

	var metrics []*performance.Metric
	err := chromedp.Run(taskCtx,
		performance.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			metrics, err = performance.GetMetrics().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("collect performance metrics: %w", err)
	}

	report := PerfReport{
		URL:         url,
		CollectedAt: time.Now().UTC(),
		Metrics:     make(map[string]float64, len(metrics)),
	}
	for _, m := range metrics {
		report.Metrics[m.Name] = m.Value
	}

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal performance report: %w", err)
	}
	r.logger.Debug("performance report generated",
		zap.String("url", url),
		zap.Int("metrics", len(report.Metrics)),
	)
	return payload, nil
}
