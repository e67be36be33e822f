package probe

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitegauge/sitegauge/internal/audit"
)

// vitalsExpr waits for the load event (with a fallback delay in case it never
// fires), then accumulates performance-timing entries for the collection
// window before resolving with whatever was captured. Unobserved metrics
// resolve as null, not zero.
const vitalsExpr = `new Promise(resolve => {
	const windowMs = %d;
	const out = {ttfb_ms: null, lcp_ms: null, cls: null, inp_ms: null};

	const nav = performance.getEntriesByType('navigation')[0];
	if (nav && nav.responseStart > 0) {
		out.ttfb_ms = nav.responseStart;
	}

	try {
		new PerformanceObserver(list => {
			const entries = list.getEntries();
			if (entries.length) {
				out.lcp_ms = entries[entries.length - 1].startTime;
			}
		}).observe({type: 'largest-contentful-paint', buffered: true});
	} catch (e) {}

	try {
		new PerformanceObserver(list => {
			for (const entry of list.getEntries()) {
				if (!entry.hadRecentInput) {
					out.cls = (out.cls || 0) + entry.value;
				}
			}
		}).observe({type: 'layout-shift', buffered: true});
	} catch (e) {}

	try {
		new PerformanceObserver(list => {
			for (const entry of list.getEntries()) {
				const d = entry.processingEnd - entry.startTime;
				if (out.inp_ms === null || d > out.inp_ms) {
					out.inp_ms = d;
				}
			}
		}).observe({type: 'event', buffered: true, durationThreshold: 16});
	} catch (e) {}

	const collect = () => setTimeout(() => resolve(out), windowMs);
	if (document.readyState === 'complete') {
		collect();
	} else {
		window.addEventListener('load', collect, {once: true});
		setTimeout(collect, windowMs);
	}
})`

// VitalsConfig bounds the performance-timing collection window.
type VitalsConfig struct {
	Window time.Duration
}

// Vitals observes standard performance-timing signals on the loaded page:
// time-to-first-byte, largest-content-paint, cumulative layout shift and
// input responsiveness.
type Vitals struct {
	cfg    VitalsConfig
	logger *zap.Logger
}

// NewVitals creates the page-vitals probe.
func NewVitals(cfg VitalsConfig, logger *zap.Logger) *Vitals {
	if cfg.Window <= 0 {
		cfg.Window = 3 * time.Second
	}
	return &Vitals{cfg: cfg, logger: logger}
}

// Run accumulates timing entries for the configured window and returns
// whatever was captured.
func (p *Vitals) Run(ctx context.Context, page Evaluator) *audit.VitalsResult {
	// Give the in-page promise room to resolve before the driver timeout.
	evalCtx, cancel := context.WithTimeout(ctx, 2*p.cfg.Window+5*time.Second)
	defer cancel()

	var res audit.VitalsResult
	expr := fmt.Sprintf(vitalsExpr, p.cfg.Window.Milliseconds())
	if err := page.Evaluate(evalCtx, expr, &res); err != nil {
		return &audit.VitalsResult{Error: fmt.Sprintf("collect vitals: %v", err)}
	}
	p.logger.Debug("vitals collected",
		zap.Any("ttfb_ms", res.TTFBMs),
		zap.Any("lcp_ms", res.LCPMs),
		zap.Any("cls", res.CLS),
		zap.Any("inp_ms", res.INPMs),
	)
	return &res
}
