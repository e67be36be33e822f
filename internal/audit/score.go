package audit

import "math"

// Sub-score functions are total: any missing or errored payload reports
// ok=false and the sub-score is excluded from aggregation rather than
// averaged in as zero.

// ScoreAxe maps an accessibility result to 0-100: 10 points per violation,
// floored at 0.
func ScoreAxe(r *AxeResult) (int, bool) {
	if r == nil || r.Error != "" {
		return 0, false
	}
	score := 100 - 10*r.Violations
	if score < 0 {
		score = 0
	}
	return score, true
}

// ScoreCSS returns 100 when the stylesheet stayed within the threshold table,
// or a flat penalty when any threshold was exceeded.
func ScoreCSS(r *CSSResult) (int, bool) {
	if r == nil || r.Error != "" || r.Skipped {
		return 0, false
	}
	if r.Status == CSSStatusOK {
		return 100, true
	}
	return 60, true
}

// ScoreHTML deducts 10 points per validator error message, floored at 0.
// Warnings do not deduct.
func ScoreHTML(r *HTMLResult) (int, bool) {
	if r == nil || r.Error != "" {
		return 0, false
	}
	score := 100 - 10*r.Errors
	if score < 0 {
		score = 0
	}
	return score, true
}

// ScoreVitals starts at 100 and applies independent tiered deductions per
// observed metric. Metrics missing from the window deduct nothing; a result
// with no metrics at all is excluded.
func ScoreVitals(r *VitalsResult) (int, bool) {
	if r == nil || r.Error != "" {
		return 0, false
	}
	if r.TTFBMs == nil && r.LCPMs == nil && r.CLS == nil && r.INPMs == nil {
		return 0, false
	}
	score := 100
	if r.LCPMs != nil {
		switch {
		case *r.LCPMs > 4000:
			score -= 40
		case *r.LCPMs > 2500:
			score -= 20
		}
	}
	if r.CLS != nil {
		switch {
		case *r.CLS > 0.25:
			score -= 30
		case *r.CLS > 0.1:
			score -= 10
		}
	}
	if r.TTFBMs != nil {
		switch {
		case *r.TTFBMs > 1800:
			score -= 20
		case *r.TTFBMs > 800:
			score -= 10
		}
	}
	if r.INPMs != nil {
		switch {
		case *r.INPMs > 300:
			score -= 20
		case *r.INPMs > 200:
			score -= 10
		}
	}
	if score < 0 {
		score = 0
	}
	return score, true
}

// Carbon bands in grams of CO2 per visit.
const (
	carbonBandExcellent = 0.5
	carbonBandGood      = 1.0
	carbonBandFair      = 2.0
)

// ScoreCarbon bands emissions-per-visit into 100/80/60/40.
func ScoreCarbon(r *CarbonResult) (int, bool) {
	if r == nil || r.Grams == nil {
		return 0, false
	}
	switch g := *r.Grams; {
	case g <= carbonBandExcellent:
		return 100, true
	case g <= carbonBandGood:
		return 80, true
	case g <= carbonBandFair:
		return 60, true
	default:
		return 40, true
	}
}

// Score computes the full ScoreSet for a record's probe results. Overall is
// the rounded mean of the sub-scores that were computed; 0 when none were.
func Score(rec PageRecord) ScoreSet {
	var set ScoreSet
	var sum, n int

	keep := func(dst **int) func(int, bool) {
		return func(score int, ok bool) {
			if !ok {
				return
			}
			s := score
			*dst = &s
			sum += score
			n++
		}
	}

	keep(&set.Axe)(ScoreAxe(rec.Axe))
	keep(&set.CSS)(ScoreCSS(rec.CSS))
	keep(&set.HTML)(ScoreHTML(rec.HTML))
	keep(&set.Vitals)(ScoreVitals(rec.Vitals))
	keep(&set.Carbon)(ScoreCarbon(rec.Carbon))

	if n > 0 {
		set.Overall = int(math.Round(float64(sum) / float64(n)))
	}
	return set
}
