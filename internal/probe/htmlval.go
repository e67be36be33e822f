package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sitegauge/sitegauge/internal/audit"
)

// ValidatorConfig points the markup probe at a validation service. URL is the
// primary (typically local) instance; FallbackURL is tried only when the
// primary refuses the connection.
type ValidatorConfig struct {
	URL         string
	FallbackURL string
	Timeout     time.Duration
}

// Validator submits the serialized DOM to an HTML validation service and
// condenses the structured messages it returns.
type Validator struct {
	cfg    ValidatorConfig
	client *http.Client
	logger *zap.Logger
}

// NewValidator creates the markup validation probe.
func NewValidator(cfg ValidatorConfig, logger *zap.Logger) *Validator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Validator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// nuMessage mirrors the Nu validator's JSON message shape.
type nuMessage struct {
	Type     string `json:"type"`
	SubType  string `json:"subType"`
	Message  string `json:"message"`
	LastLine int    `json:"lastLine"`
}

// Run validates the given document. A connection-refused failure against the
// primary instance falls back to the remote one; any other failure is
// reported in the result's Error field rather than retried.
func (p *Validator) Run(ctx context.Context, html string) *audit.HTMLResult {
	res, err := p.submit(ctx, p.cfg.URL, html)
	if err == nil {
		return res
	}

	if Classify(err) == FailureConnectionRefused && p.cfg.FallbackURL != "" {
		p.logger.Warn("local validator refused connection, using fallback",
			zap.String("primary", p.cfg.URL),
			zap.String("fallback", p.cfg.FallbackURL),
		)
		res, fbErr := p.submit(ctx, p.cfg.FallbackURL, html)
		if fbErr == nil {
			return res
		}
		err = fbErr
	}

	return &audit.HTMLResult{Error: fmt.Sprintf("validation failed (%s): %v", Classify(err), err)}
}

func (p *Validator) submit(ctx context.Context, endpoint, html string) (*audit.HTMLResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?out=json", bytes.NewBufferString(html))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/html; charset=utf-8")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit document: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("validator returned status %d", resp.StatusCode)
	}

	var payload struct {
		Messages []nuMessage `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode validator response: %w", err)
	}

	result := &audit.HTMLResult{}
	for _, msg := range payload.Messages {
		result.Messages = append(result.Messages, audit.ValidationMessage{
			Type:    msg.Type,
			SubType: msg.SubType,
			Message: msg.Message,
			Line:    msg.LastLine,
		})
		switch msg.Type {
		case "error":
			result.Errors++
		case "info":
			if msg.SubType == "warning" {
				result.Warnings++
			}
		}
	}
	return result, nil
}
