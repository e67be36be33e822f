package probe

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitegauge/sitegauge/internal/audit"
)

// fakeEvaluator returns a canned value for any expression.
type fakeEvaluator struct {
	value string
	err   error
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ string, out any) error {
	if f.err != nil {
		return f.err
	}
	if s, ok := out.(*string); ok {
		*s = f.value
	}
	return nil
}

func TestSanitizeCSS(t *testing.T) {
	in := "@charset \"UTF-8\";\n/* comment */ body { background: url('data:image/png;base64,AAAA') }\n\x00\x07.a{color:red}"
	got := SanitizeCSS(in)
	assert.NotContains(t, got, "@charset")
	assert.NotContains(t, got, "comment")
	assert.NotContains(t, got, "data:image")
	assert.NotContains(t, got, "\x00")
	assert.Contains(t, got, ".a{color:red}")
}

func TestAnalyzeCSSCounts(t *testing.T) {
	css := `
.a, .b { color: red; margin: 0; }
#main { color: blue }
@media (min-width: 600px) {
	.c { padding: 1px; color: green; }
}
`
	res := AnalyzeCSS(css)
	assert.Equal(t, 3, res.Rules)
	assert.Equal(t, 4, res.Selectors)
	assert.Equal(t, 5, res.Declarations)
	// color, margin, padding
	assert.Equal(t, 3, res.Properties)
	assert.Equal(t, audit.CSSStatusOK, res.Status)
	assert.Empty(t, res.Warnings)
}

func TestAnalyzeCSSThresholdWarnings(t *testing.T) {
	var b strings.Builder
	for i := 0; i < cssMaxRules+10; i++ {
		fmt.Fprintf(&b, ".r%d { color: red }\n", i)
	}
	res := AnalyzeCSS(b.String())
	assert.Equal(t, audit.CSSStatusWarn, res.Status)
	require.NotEmpty(t, res.Warnings)
	joined := strings.Join(res.Warnings, "; ")
	assert.Contains(t, joined, "rule count")
}

func TestCSSStatsSkipsEmptyInput(t *testing.T) {
	p := NewCSSStats(CSSStatsConfig{MaxBytes: 1024}, zap.NewNop())
	res := p.Run(context.Background(), &fakeEvaluator{value: "  \n "})
	assert.True(t, res.Skipped)
	assert.Equal(t, "no CSS collected", res.SkipReason)
	assert.Empty(t, res.Error)
}

func TestCSSStatsSkipsOversizeInputWithMeasuredLength(t *testing.T) {
	big := strings.Repeat(".a{color:red}", 200)
	p := NewCSSStats(CSSStatsConfig{MaxBytes: 100}, zap.NewNop())
	res := p.Run(context.Background(), &fakeEvaluator{value: big})
	assert.True(t, res.Skipped)
	assert.Contains(t, res.SkipReason, "exceeds ceiling 100")
	assert.Equal(t, len(big), res.InputBytes)
	assert.Empty(t, res.Error)
}

func TestCSSStatsEvaluateErrorIsError(t *testing.T) {
	p := NewCSSStats(CSSStatsConfig{MaxBytes: 1024}, zap.NewNop())
	res := p.Run(context.Background(), &fakeEvaluator{err: fmt.Errorf("boom")})
	assert.False(t, res.Skipped)
	assert.Contains(t, res.Error, "collect stylesheets")
}

func TestCSSStatsAnalyzesCollectedCSS(t *testing.T) {
	p := NewCSSStats(CSSStatsConfig{MaxBytes: 64 * 1024}, zap.NewNop())
	res := p.Run(context.Background(), &fakeEvaluator{value: ".a{color:red}.b{margin:0}"})
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.Rules)
	assert.Equal(t, 2, res.Declarations)
	assert.Equal(t, audit.CSSStatusOK, res.Status)
}
