package probe

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sitegauge/sitegauge/internal/audit"
)

// cssCollectExpr gathers inline <style> text plus the rules of same-origin
// stylesheets. Cross-origin sheets throw on cssRules access and are skipped,
// not errored, since the browser refuses to expose their rules.
const cssCollectExpr = `(() => {
	const chunks = [];
	for (const el of document.querySelectorAll('style')) {
		chunks.push(el.textContent || '');
	}
	for (const sheet of document.styleSheets) {
		if (sheet.ownerNode && sheet.ownerNode.tagName === 'STYLE') continue;
		try {
			for (const rule of sheet.cssRules) {
				chunks.push(rule.cssText);
			}
		} catch (e) {
			// cross-origin sheet
		}
	}
	return chunks.join('\n');
})()`

// Best-practice budgets the collected CSS is evaluated against.
const (
	cssMaxRules        = 4095
	cssMaxDeclarations = 10000
	cssMaxSelectors    = 8000
	cssWarnBytes       = 300 * 1024
)

// CSSStatsConfig bounds the style probe's input size.
type CSSStatsConfig struct {
	MaxBytes int
}

// CSSStats collects and sanitizes the page's CSS, then computes complexity
// counts and evaluates them against fixed best-practice thresholds.
type CSSStats struct {
	cfg    CSSStatsConfig
	logger *zap.Logger
}

// NewCSSStats creates the style statistics probe.
func NewCSSStats(cfg CSSStatsConfig, logger *zap.Logger) *CSSStats {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 1536 * 1024
	}
	return &CSSStats{cfg: cfg, logger: logger}
}

// Run collects the page's CSS and analyzes it. Empty input and input above
// the size ceiling yield skip markers, the latter echoing the measured length.
func (p *CSSStats) Run(ctx context.Context, page Evaluator) *audit.CSSResult {
	var raw string
	if err := page.Evaluate(ctx, cssCollectExpr, &raw); err != nil {
		return &audit.CSSResult{Error: fmt.Sprintf("collect stylesheets: %v", err)}
	}

	clean := SanitizeCSS(raw)
	if strings.TrimSpace(clean) == "" {
		return &audit.CSSResult{Skipped: true, SkipReason: "no CSS collected"}
	}
	if len(clean) > p.cfg.MaxBytes {
		return &audit.CSSResult{
			Skipped:    true,
			SkipReason: fmt.Sprintf("input size %d exceeds ceiling %d", len(clean), p.cfg.MaxBytes),
			InputBytes: len(clean),
		}
	}

	res := AnalyzeCSS(clean)
	p.logger.Debug("css analyzed",
		zap.Int("rules", res.Rules),
		zap.Int("declarations", res.Declarations),
		zap.String("status", res.Status),
	)
	return res
}

var (
	cssCharsetRe      = regexp.MustCompile(`@charset\s+"[^"]*";?`)
	cssDataURLRe      = regexp.MustCompile(`url\(\s*['"]?data:[^)]*\)`)
	cssCommentRe      = regexp.MustCompile(`(?s)/\*.*?\*/`)
	cssNonPrintableRe = regexp.MustCompile(`[^\x20-\x7E\t\n\r]`)
)

// SanitizeCSS strips charset declarations, inlined data URLs, comments and
// non-printable characters so the analyzer sees plain rule text.
func SanitizeCSS(css string) string {
	css = cssCharsetRe.ReplaceAllString(css, "")
	css = cssDataURLRe.ReplaceAllString(css, "url()")
	css = cssCommentRe.ReplaceAllString(css, "")
	css = cssNonPrintableRe.ReplaceAllString(css, "")
	return css
}

// AnalyzeCSS computes rule/declaration/selector counts and distinct property
// cardinality, then evaluates each count against the threshold table.
func AnalyzeCSS(css string) *audit.CSSResult {
	res := &audit.CSSResult{InputBytes: len(css)}
	properties := make(map[string]struct{})

	// Single-buffer scan: a '{' turns the buffer into a rule prelude, a ';'
	// or '}' turns it into a declaration candidate. Nested at-rule blocks
	// fall out naturally since every selector block is preceded by '{'.
	var buf strings.Builder
	flushDecl := func() {
		countDeclaration(buf.String(), res, properties)
		buf.Reset()
	}
	for _, r := range css {
		switch r {
		case '{':
			sel := strings.TrimSpace(buf.String())
			buf.Reset()
			if sel != "" && !strings.HasPrefix(sel, "@") {
				res.Rules++
				res.Selectors += strings.Count(sel, ",") + 1
			}
		case ';', '}':
			flushDecl()
		default:
			buf.WriteRune(r)
		}
	}
	flushDecl()
	res.Properties = len(properties)

	res.Status = audit.CSSStatusOK
	checks := []struct {
		value int
		limit int
		label string
	}{
		{res.Rules, cssMaxRules, "rule count"},
		{res.Declarations, cssMaxDeclarations, "declaration count"},
		{res.Selectors, cssMaxSelectors, "selector count"},
		{res.InputBytes, cssWarnBytes, "total size"},
	}
	for _, c := range checks {
		if c.value > c.limit {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s %d exceeds %d", c.label, c.value, c.limit))
		}
	}
	if len(res.Warnings) > 0 {
		res.Status = audit.CSSStatusWarn
	}
	return res
}

func countDeclaration(decl string, res *audit.CSSResult, properties map[string]struct{}) {
	decl = strings.TrimSpace(decl)
	name, _, found := strings.Cut(decl, ":")
	if !found {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " {}@") {
		return
	}
	res.Declarations++
	properties[strings.ToLower(name)] = struct{}{}
}
