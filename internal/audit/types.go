// Package audit defines the per-page audit pipeline: probe result shapes,
// the scoring model, and the orchestration that turns one loaded page into
// a persisted record.
package audit

import "time"

// AxeViolation is one condensed accessibility violation descriptor.
type AxeViolation struct {
	ID          string `json:"id"`
	Impact      string `json:"impact"`
	Description string `json:"description"`
	HelpURL     string `json:"help_url"`
	Nodes       int    `json:"nodes"`
}

// AxeResult condenses an accessibility engine run into counts plus a capped
// list of violation descriptors. Error is set when the engine never became
// available in the page (commonly a CSP blocking injection).
type AxeResult struct {
	Violations   int            `json:"violations"`
	Passes       int            `json:"passes"`
	Incomplete   int            `json:"incomplete"`
	Inapplicable int            `json:"inapplicable"`
	Items        []AxeViolation `json:"items,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// ValidationMessage is one structured message from the markup validator.
type ValidationMessage struct {
	Type    string `json:"type"`
	SubType string `json:"subtype,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// HTMLResult is the outcome of submitting the serialized DOM to a
// validation service.
type HTMLResult struct {
	Messages []ValidationMessage `json:"messages,omitempty"`
	Errors   int                 `json:"errors"`
	Warnings int                 `json:"warnings"`
	Error    string              `json:"error,omitempty"`
}

// CSS status values.
const (
	CSSStatusOK   = "within-limits"
	CSSStatusWarn = "warn"
)

// CSSResult reports style-complexity statistics for the page's collected CSS.
// Skipped is set (with a reason) for empty input and for input above the size
// ceiling; in the oversize case InputBytes echoes the measured length.
type CSSResult struct {
	Status       string   `json:"status,omitempty"`
	Rules        int      `json:"rules"`
	Declarations int      `json:"declarations"`
	Selectors    int      `json:"selectors"`
	Properties   int      `json:"properties"`
	InputBytes   int      `json:"input_bytes"`
	Warnings     []string `json:"warnings,omitempty"`
	Skipped      bool     `json:"skipped,omitempty"`
	SkipReason   string   `json:"skip_reason,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// VitalsResult carries the performance-timing signals observed within the
// collection window. Metrics not observed are nil, not zero.
type VitalsResult struct {
	TTFBMs *float64 `json:"ttfb_ms,omitempty"`
	LCPMs  *float64 `json:"lcp_ms,omitempty"`
	CLS    *float64 `json:"cls,omitempty"`
	INPMs  *float64 `json:"inp_ms,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// CarbonResult is the estimate returned by the carbon API. Grams is nil when
// no estimate was obtained; Skipped marks a rate-limited request.
type CarbonResult struct {
	Grams       *float64 `json:"co2_grams,omitempty"`
	CleanerThan *float64 `json:"cleaner_than,omitempty"`
	Green       bool     `json:"green,omitempty"`
	Skipped     bool     `json:"skipped,omitempty"`
	SkipReason  string   `json:"skip_reason,omitempty"`
}

// ScoreSet holds the 0-100 sub-scores that were actually computed. A nil
// sub-score was excluded from the Overall mean, not counted as zero.
type ScoreSet struct {
	Axe     *int `json:"axe_score,omitempty"`
	CSS     *int `json:"css_score,omitempty"`
	HTML    *int `json:"html_score,omitempty"`
	Vitals  *int `json:"web_vitals_score,omitempty"`
	Carbon  *int `json:"carbon_score,omitempty"`
	Overall int  `json:"combined_overall"`
}

// PageRecord is the full detail persisted for one audited page. It is written
// once by the auditor that created it and never mutated afterwards.
type PageRecord struct {
	RunID      string        `json:"run_id"`
	URL        string        `json:"url"`
	Timestamp  time.Time     `json:"timestamp"`
	Axe        *AxeResult    `json:"axe,omitempty"`
	HTML       *HTMLResult   `json:"html,omitempty"`
	CSS        *CSSResult    `json:"css,omitempty"`
	Vitals     *VitalsResult `json:"vitals,omitempty"`
	Carbon     *CarbonResult `json:"carbon,omitempty"`
	Scores     ScoreSet      `json:"scores"`
	ReportPath string        `json:"report_path,omitempty"`
}

// PageSummary is the reduced projection of a PageRecord used for quick
// cross-page comparison.
type PageSummary struct {
	URL           string    `json:"url"`
	Timestamp     time.Time `json:"timestamp"`
	AxeViolations *int      `json:"axe_violations,omitempty"`
	HTMLErrors    *int      `json:"html_errors,omitempty"`
	CSSStatus     string    `json:"css_status,omitempty"`
	LCPMs         *float64  `json:"lcp_ms,omitempty"`
	CO2Grams      *float64  `json:"co2_grams,omitempty"`
	Overall       int       `json:"combined_overall"`
}

// Summarize derives the deterministic summary projection of a record.
func Summarize(rec PageRecord) PageSummary {
	s := PageSummary{
		URL:       rec.URL,
		Timestamp: rec.Timestamp,
		Overall:   rec.Scores.Overall,
	}
	if rec.Axe != nil && rec.Axe.Error == "" {
		v := rec.Axe.Violations
		s.AxeViolations = &v
	}
	if rec.HTML != nil && rec.HTML.Error == "" {
		e := rec.HTML.Errors
		s.HTMLErrors = &e
	}
	if rec.CSS != nil {
		s.CSSStatus = rec.CSS.Status
	}
	if rec.Vitals != nil {
		s.LCPMs = rec.Vitals.LCPMs
	}
	if rec.Carbon != nil {
		s.CO2Grams = rec.Carbon.Grams
	}
	return s
}

// RunManifest aggregates one crawl run, written at run end.
type RunManifest struct {
	RunID       string    `json:"run_id"`
	EntryURL    string    `json:"entry_url"`
	Started     time.Time `json:"started_at"`
	Finished    time.Time `json:"finished_at"`
	Pages       int       `json:"pages_audited"`
	MeanOverall int       `json:"mean_overall"`
}
