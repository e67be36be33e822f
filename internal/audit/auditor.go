package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitegauge/sitegauge/internal/metrics"
)

// Evaluator runs a JavaScript expression in the loaded page and decodes the
// JSON result into out.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, out any) error
}

// Page is the audit pipeline's view of the loaded browser page.
type Page interface {
	Evaluator
	InjectScript(ctx context.Context, source string) error
	InjectScriptURL(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
}

// ProbeSet bundles the five independent measurement functions. A nil entry
// skips that probe entirely, leaving its result absent from the record.
type ProbeSet struct {
	Axe    func(ctx context.Context, page Page) *AxeResult
	HTML   func(ctx context.Context, html string) *HTMLResult
	CSS    func(ctx context.Context, page Page) *CSSResult
	Vitals func(ctx context.Context, page Page) *VitalsResult
	Carbon func(ctx context.Context, url string) *CarbonResult
}

// PerfReporter produces a performance-report artifact for the loaded page.
type PerfReporter interface {
	Report(ctx context.Context, url string) ([]byte, error)
}

// Sink persists audit artifacts.
type Sink interface {
	SaveDetail(rec PageRecord) (string, error)
	SaveSummary(sum PageSummary) (string, error)
	SaveReport(rawURL string, data []byte) (string, error)
}

// Config controls auditor pacing.
type Config struct {
	// InterProbePause separates the validator submission and the vitals
	// collection from the probes before them, reducing cross-probe
	// interference and pressure on rate-limited services.
	InterProbePause time.Duration
}

// Auditor orchestrates interaction simulation, the probe set, scoring and
// persistence for one URL at a time.
type Auditor struct {
	runID    string
	cfg      Config
	probes   ProbeSet
	page     Page
	reporter PerfReporter
	sink     Sink
	logger   *zap.Logger
}

// New constructs an Auditor bound to the crawl's page session.
func New(runID string, cfg Config, probes ProbeSet, page Page, reporter PerfReporter, sink Sink, logger *zap.Logger) *Auditor {
	return &Auditor{
		runID:    runID,
		cfg:      cfg,
		probes:   probes,
		page:     page,
		reporter: reporter,
		sink:     sink,
		logger:   logger,
	}
}

// Audit runs the full pipeline against the page currently loaded in the
// session. It always completes and always persists output: a probe failure
// is converted into that probe's error marker, and partial data is the
// expected steady state rather than an error state.
func (a *Auditor) Audit(ctx context.Context, url string) PageRecord {
	rec := PageRecord{
		RunID:     a.runID,
		URL:       url,
		Timestamp: time.Now().UTC(),
	}

	SimulateInteraction(ctx, a.page, a.logger)

	if a.probes.Axe != nil {
		rec.Axe = runProbe("axe", a.logger, func() *AxeResult {
			return a.probes.Axe(ctx, a.page)
		})
		if rec.Axe.Error != "" {
			metrics.RecordProbeFailure("axe", "error")
		}
	}

	a.pause(ctx)

	if a.probes.HTML != nil {
		rec.HTML = runProbe("html", a.logger, func() *HTMLResult {
			html, err := a.page.HTML(ctx)
			if err != nil {
				return &HTMLResult{Error: fmt.Sprintf("serialize dom: %v", err)}
			}
			return a.probes.HTML(ctx, html)
		})
		if rec.HTML.Error != "" {
			metrics.RecordProbeFailure("html", "error")
		}
	}

	if a.probes.CSS != nil {
		rec.CSS = runProbe("css", a.logger, func() *CSSResult {
			return a.probes.CSS(ctx, a.page)
		})
		switch {
		case rec.CSS.Error != "":
			metrics.RecordProbeFailure("css", "error")
		case rec.CSS.Skipped:
			metrics.RecordProbeFailure("css", "skipped")
		}
	}

	a.pause(ctx)

	if a.probes.Vitals != nil {
		rec.Vitals = runProbe("vitals", a.logger, func() *VitalsResult {
			return a.probes.Vitals(ctx, a.page)
		})
		if rec.Vitals.Error != "" {
			metrics.RecordProbeFailure("vitals", "error")
		}
	}

	if a.probes.Carbon != nil {
		rec.Carbon = runProbe("carbon", a.logger, func() *CarbonResult {
			return a.probes.Carbon(ctx, url)
		})
		if rec.Carbon.Skipped {
			metrics.RecordProbeFailure("carbon", "rate_limited")
		}
	}

	rec.Scores = Score(rec)
	metrics.RecordPageAudited(rec.Scores.Overall)

	a.generateReport(ctx, &rec)
	a.persist(rec)

	a.logger.Info("page audited",
		zap.String("url", url),
		zap.Int("overall", rec.Scores.Overall),
	)
	return rec
}

func (a *Auditor) pause(ctx context.Context) {
	if a.cfg.InterProbePause <= 0 {
		return
	}
	select {
	case <-time.After(a.cfg.InterProbePause):
	case <-ctx.Done():
	}
}

func (a *Auditor) generateReport(ctx context.Context, rec *PageRecord) {
	if a.reporter == nil {
		return
	}
	data, err := a.reporter.Report(ctx, rec.URL)
	if err != nil {
		a.logger.Warn("performance report failed", zap.String("url", rec.URL), zap.Error(err))
		return
	}
	path, err := a.sink.SaveReport(rec.URL, data)
	if err != nil {
		a.logger.Warn("persist performance report failed", zap.String("url", rec.URL), zap.Error(err))
		return
	}
	rec.ReportPath = path
}

func (a *Auditor) persist(rec PageRecord) {
	if _, err := a.sink.SaveDetail(rec); err != nil {
		a.logger.Error("persist detail record failed", zap.String("url", rec.URL), zap.Error(err))
	}
	if _, err := a.sink.SaveSummary(Summarize(rec)); err != nil {
		a.logger.Error("persist summary failed", zap.String("url", rec.URL), zap.Error(err))
	}
}

// runProbe isolates one probe call: a panic inside the probe becomes that
// probe's error marker instead of aborting the audit.
func runProbe[T any](name string, logger *zap.Logger, fn func() *T) (result *T) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("probe panicked", zap.String("probe", name), zap.Any("panic", r))
			result = new(T)
			setErrorField(result, fmt.Sprintf("probe panicked: %v", r))
		}
	}()
	return fn()
}

// setErrorField fills the Error field shared by the probe result shapes.
func setErrorField(result any, msg string) {
	switch r := result.(type) {
	case *AxeResult:
		r.Error = msg
	case *HTMLResult:
		r.Error = msg
	case *CSSResult:
		r.Error = msg
	case *VitalsResult:
		r.Error = msg
	case *CarbonResult:
		r.SkipReason = msg
		r.Skipped = true
	}
}
