package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePage struct {
	html    string
	htmlErr error
}

func (f *fakePage) Evaluate(ctx context.Context, expression string, out any) error { return nil }
func (f *fakePage) InjectScript(ctx context.Context, source string) error          { return nil }
func (f *fakePage) InjectScriptURL(ctx context.Context, url string) error          { return nil }
func (f *fakePage) HTML(ctx context.Context) (string, error)                       { return f.html, f.htmlErr }

type fakeSink struct {
	details   []PageRecord
	summaries []PageSummary
	reports   map[string][]byte
	detailErr error
}

func newFakeSink() *fakeSink {
	return &fakeSink{reports: map[string][]byte{}}
}

func (f *fakeSink) SaveDetail(rec PageRecord) (string, error) {
	f.details = append(f.details, rec)
	return "detail/" + SafeFileKey(rec.URL) + ".json", f.detailErr
}

func (f *fakeSink) SaveSummary(sum PageSummary) (string, error) {
	f.summaries = append(f.summaries, sum)
	return "summary/" + SafeFileKey(sum.URL) + ".json", nil
}

func (f *fakeSink) SaveReport(rawURL string, data []byte) (string, error) {
	f.reports[rawURL] = data
	return "reports/" + SafeFileKey(rawURL) + "-perf.json", nil
}

type fakeReporter struct {
	data []byte
	err  error
}

func (f *fakeReporter) Report(ctx context.Context, url string) ([]byte, error) {
	return f.data, f.err
}

func healthyProbes() ProbeSet {
	return ProbeSet{
		Axe: func(ctx context.Context, page Page) *AxeResult {
			return &AxeResult{Violations: 1, Passes: 30}
		},
		HTML: func(ctx context.Context, html string) *HTMLResult {
			return &HTMLResult{Errors: 2, Warnings: 1}
		},
		CSS: func(ctx context.Context, page Page) *CSSResult {
			return &CSSResult{Status: CSSStatusOK, Rules: 10, Declarations: 40}
		},
		Vitals: func(ctx context.Context, page Page) *VitalsResult {
			lcp, ttfb := 1200.0, 300.0
			return &VitalsResult{LCPMs: &lcp, TTFBMs: &ttfb}
		},
		Carbon: func(ctx context.Context, url string) *CarbonResult {
			g := 0.4
			return &CarbonResult{Grams: &g, Green: true}
		},
	}
}

func newAuditorForTest(probes ProbeSet, page Page, reporter PerfReporter, sink Sink) *Auditor {
	return New("run-test", Config{}, probes, page, reporter, sink, zap.NewNop())
}

func TestAuditAllProbesHealthy(t *testing.T) {
	sink := newFakeSink()
	reporter := &fakeReporter{data: []byte(`{"metrics":{"TaskDuration":1.5}}`)}
	a := newAuditorForTest(healthyProbes(), &fakePage{html: "<html></html>"}, reporter, sink)

	rec := a.Audit(context.Background(), "https://example.com/")

	assert.Equal(t, "run-test", rec.RunID)
	assert.Equal(t, "https://example.com/", rec.URL)
	require.NotNil(t, rec.Axe)
	require.NotNil(t, rec.HTML)
	require.NotNil(t, rec.CSS)
	require.NotNil(t, rec.Vitals)
	require.NotNil(t, rec.Carbon)

	// 1 violation -> 90, 2 html errors -> 80, css ok -> 100,
	// good vitals -> 100, 0.4g -> 100; mean = 94.
	require.NotNil(t, rec.Scores.Axe)
	assert.Equal(t, 90, *rec.Scores.Axe)
	assert.Equal(t, 94, rec.Scores.Overall)

	require.Len(t, sink.details, 1)
	require.Len(t, sink.summaries, 1)
	assert.Equal(t, rec.URL, sink.summaries[0].URL)
	assert.Contains(t, sink.reports, rec.URL)
	assert.Equal(t, "reports/example.com-perf.json", rec.ReportPath)
}

func TestAuditAxeErrorExcludedFromOverall(t *testing.T) {
	probes := healthyProbes()
	probes.Axe = func(ctx context.Context, page Page) *AxeResult {
		return &AxeResult{Error: "axe unavailable after injection"}
	}
	sink := newFakeSink()
	a := newAuditorForTest(probes, &fakePage{html: "<html></html>"}, nil, sink)

	rec := a.Audit(context.Background(), "https://example.com/")

	require.NotNil(t, rec.Axe)
	assert.NotEmpty(t, rec.Axe.Error)
	assert.Nil(t, rec.Scores.Axe, "failed probe must not contribute a sub-score")

	// Remaining sub-scores: html 80, css 100, vitals 100, carbon 100 -> 95.
	assert.Equal(t, 95, rec.Scores.Overall)
	require.Len(t, sink.details, 1, "record persists despite the probe failure")
}

func TestAuditProbePanicBecomesErrorMarker(t *testing.T) {
	probes := healthyProbes()
	probes.CSS = func(ctx context.Context, page Page) *CSSResult {
		panic("stylesheet walker exploded")
	}
	sink := newFakeSink()
	a := newAuditorForTest(probes, &fakePage{html: "<html></html>"}, nil, sink)

	rec := a.Audit(context.Background(), "https://example.com/")

	require.NotNil(t, rec.CSS)
	assert.Contains(t, rec.CSS.Error, "probe panicked")
	assert.Nil(t, rec.Scores.CSS)
	require.NotNil(t, rec.Vitals, "probes after the panic still run")
	require.Len(t, sink.details, 1)
}

func TestAuditDOMSerializationFailure(t *testing.T) {
	sink := newFakeSink()
	page := &fakePage{htmlErr: errors.New("target closed")}
	a := newAuditorForTest(healthyProbes(), page, nil, sink)

	rec := a.Audit(context.Background(), "https://example.com/")

	require.NotNil(t, rec.HTML)
	assert.Contains(t, rec.HTML.Error, "serialize dom")
	assert.Nil(t, rec.Scores.HTML)
}

func TestAuditNilProbesSkipped(t *testing.T) {
	sink := newFakeSink()
	a := newAuditorForTest(ProbeSet{}, &fakePage{}, nil, sink)

	rec := a.Audit(context.Background(), "https://example.com/")

	assert.Nil(t, rec.Axe)
	assert.Nil(t, rec.HTML)
	assert.Nil(t, rec.CSS)
	assert.Nil(t, rec.Vitals)
	assert.Nil(t, rec.Carbon)
	assert.Equal(t, 0, rec.Scores.Overall)
	require.Len(t, sink.details, 1, "an empty record is still persisted")
}

func TestAuditReporterFailureTolerated(t *testing.T) {
	sink := newFakeSink()
	reporter := &fakeReporter{err: errors.New("metrics domain unavailable")}
	a := newAuditorForTest(healthyProbes(), &fakePage{html: "<html></html>"}, reporter, sink)

	rec := a.Audit(context.Background(), "https://example.com/")

	assert.Empty(t, rec.ReportPath)
	require.Len(t, sink.details, 1)
	assert.Empty(t, sink.reports)
}

func TestAuditPersistFailureDoesNotPanic(t *testing.T) {
	sink := newFakeSink()
	sink.detailErr = errors.New("disk full")
	a := newAuditorForTest(healthyProbes(), &fakePage{html: "<html></html>"}, nil, sink)

	rec := a.Audit(context.Background(), "https://example.com/")

	assert.Equal(t, 94, rec.Scores.Overall)
	require.Len(t, sink.summaries, 1, "summary write still attempted")
}
