package probe

import "context"

// Evaluator runs a JavaScript expression in the loaded page and decodes the
// JSON result into out. Expressions returning promises are awaited.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, out any) error
}

// Injector adds script to the loaded page, either as inline source or by
// appending a script tag pointing at a remote URL.
type Injector interface {
	InjectScript(ctx context.Context, source string) error
	InjectScriptURL(ctx context.Context, url string) error
}

// Session is the slice of the browser driver the probes need.
type Session interface {
	Evaluator
	Injector
}
