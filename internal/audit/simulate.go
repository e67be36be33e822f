package audit

import (
	"context"

	"go.uber.org/zap"
)

// scrollExpr steps to the bottom of the page to trigger lazy-loaded content,
// resolving once the bottom is reached or a step budget runs out.
const scrollExpr = `new Promise(resolve => {
	let steps = 0;
	const timer = setInterval(() => {
		window.scrollBy(0, window.innerHeight);
		steps++;
		const bottom = window.scrollY + window.innerHeight >= document.body.scrollHeight - 2;
		if (bottom || steps > 50) {
			clearInterval(timer);
			window.scrollTo(0, 0);
			resolve(steps);
		}
	}, 100);
})`

// fillFormsExpr types into visible text fields and blurs them, surfacing
// client-side validation errors before measurement. Nothing is submitted.
const fillFormsExpr = `(() => {
	let touched = 0;
	const fields = document.querySelectorAll(
		'input[type="text"], input[type="email"], input[type="search"], textarea');
	for (const field of fields) {
		if (field.offsetParent === null || field.disabled || field.readOnly) continue;
		field.focus();
		field.value = 'sitegauge probe';
		field.dispatchEvent(new Event('input', {bubbles: true}));
		field.dispatchEvent(new Event('change', {bubbles: true}));
		field.blur();
		touched++;
		if (touched >= 10) break;
	}
	return touched;
})()`

// SimulateInteraction performs a best-effort scroll-to-bottom and form-field
// pass over the loaded page. Failures are logged and never propagate; the
// simulation exists only to provoke lazy content and client-side errors
// before the probes measure.
func SimulateInteraction(ctx context.Context, page Evaluator, logger *zap.Logger) {
	var scrollSteps int
	if err := page.Evaluate(ctx, scrollExpr, &scrollSteps); err != nil {
		logger.Debug("scroll simulation failed", zap.Error(err))
	}

	var fieldsTouched int
	if err := page.Evaluate(ctx, fillFormsExpr, &fieldsTouched); err != nil {
		logger.Debug("form simulation failed", zap.Error(err))
	}

	logger.Debug("interaction simulated",
		zap.Int("scroll_steps", scrollSteps),
		zap.Int("fields_touched", fieldsTouched),
	)
}
