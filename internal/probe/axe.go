package probe

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sitegauge/sitegauge/internal/audit"
)

// axeRunExpr runs the engine restricted to the baseline conformance rule sets
// and condenses the full result down to counts plus violation descriptors.
const axeRunExpr = `axe.run(document, {runOnly: {type: 'tag', values: ['wcag2a', 'wcag21aa']}})
	.then(r => ({
		violations: r.violations.length,
		passes: r.passes.length,
		incomplete: r.incomplete.length,
		inapplicable: r.inapplicable.length,
		items: r.violations.slice(0, %d).map(v => ({
			id: v.id,
			impact: v.impact || '',
			description: v.description,
			help_url: v.helpUrl,
			nodes: v.nodes.length,
		})),
	}))`

const axeAvailableExpr = `typeof window.axe !== 'undefined' && typeof window.axe.run === 'function'`

// AxeConfig controls accessibility engine acquisition and result capping.
type AxeConfig struct {
	ScriptPath    string
	CDNURL        string
	MaxViolations int
}

// Axe injects an accessibility-rule engine into the page and condenses its
// findings. The bundled script is the primary source; a CDN copy is the
// fallback when injection fails.
type Axe struct {
	cfg    AxeConfig
	logger *zap.Logger
}

// NewAxe creates the accessibility probe.
func NewAxe(cfg AxeConfig, logger *zap.Logger) *Axe {
	if cfg.MaxViolations <= 0 {
		cfg.MaxViolations = 25
	}
	return &Axe{cfg: cfg, logger: logger}
}

// Run acquires the engine and executes it against the current document. The
// result always comes back non-nil; acquisition failure is reported through
// the Error field, commonly caused by a page's content-security policy.
func (p *Axe) Run(ctx context.Context, page Session) *audit.AxeResult {
	if err := p.acquire(ctx, page); err != nil {
		p.logger.Warn("accessibility engine unavailable", zap.Error(err))
		return &audit.AxeResult{Error: fmt.Sprintf("accessibility engine unavailable: %v", err)}
	}

	var res audit.AxeResult
	expr := fmt.Sprintf(axeRunExpr, p.cfg.MaxViolations)
	if err := page.Evaluate(ctx, expr, &res); err != nil {
		return &audit.AxeResult{Error: fmt.Sprintf("accessibility run failed: %v", err)}
	}
	return &res
}

func (p *Axe) acquire(ctx context.Context, page Session) error {
	if p.available(ctx, page) {
		return nil
	}

	if p.cfg.ScriptPath != "" {
		src, err := os.ReadFile(p.cfg.ScriptPath)
		if err == nil {
			if injErr := page.InjectScript(ctx, string(src)); injErr == nil && p.available(ctx, page) {
				return nil
			}
		} else {
			p.logger.Debug("read axe script failed", zap.String("path", p.cfg.ScriptPath), zap.Error(err))
		}
	}

	if p.cfg.CDNURL == "" {
		return fmt.Errorf("engine not present and no fallback source configured")
	}
	if err := page.InjectScriptURL(ctx, p.cfg.CDNURL); err != nil {
		return fmt.Errorf("inject engine from %s: %w", p.cfg.CDNURL, err)
	}

	// The CDN script tag loads asynchronously; poll briefly for the engine
	// object to appear before giving up.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if p.available(ctx, page) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
	return fmt.Errorf("engine never became available (page CSP may block script injection)")
}

func (p *Axe) available(ctx context.Context, page Evaluator) bool {
	var present bool
	if err := page.Evaluate(ctx, axeAvailableExpr, &present); err != nil {
		return false
	}
	return present
}
