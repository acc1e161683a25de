package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/julianshen/conceptmap/internal/provider"
)

// CallRecord describes one completed oracle call.
type CallRecord struct {
	ID            string
	RunID         string
	Stage         string
	Unit          string
	Model         string
	Format        Format
	StartedAt     time.Time
	Duration      time.Duration
	PromptBytes   int
	ResponseBytes int
	InputTokens   int
	OutputTokens  int
	Err           string
}

// Recorder receives a record for every call the Client makes.
type Recorder interface {
	RecordCall(rec CallRecord) error
}

// Client implements Oracle on top of a streaming LLM provider.
type Client struct {
	provider    provider.LLMProvider
	model       string
	maxTokens   int
	temperature *float64
	limiter     *rate.Limiter
	recorder    Recorder
	runID       string
	logger      *slog.Logger
	calls       int
}

// Option configures a Client.
type Option func(*Client)

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t *float64) Option {
	return func(c *Client) { c.temperature = t }
}

// WithRequestsPerMinute paces calls; zero or less disables pacing.
func WithRequestsPerMinute(rpm int) Option {
	return func(c *Client) {
		if rpm > 0 {
			c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
		}
	}
}

// WithRecorder sends a CallRecord tagged with runID to r after each call.
func WithRecorder(r Recorder, runID string) Option {
	return func(c *Client) {
		c.recorder = r
		c.runID = runID
	}
}

// WithLogger sets the logger used for call diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client for the given provider and model.
func NewClient(p provider.LLMProvider, model string, opts ...Option) *Client {
	c := &Client{
		provider:  p,
		model:     model,
		maxTokens: 4096,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calls returns how many calls the client has issued.
func (c *Client) Calls() int { return c.calls }

// Generate sends the messages to the provider and collects the streamed text.
// In JSON mode the text must contain a JSON object.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	creq, err := c.completionRequest(req)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, NewTransportError(fmt.Errorf("rate limiter: %w", err))
	}

	c.calls++
	rec := CallRecord{
		ID:          uuid.NewString(),
		RunID:       c.runID,
		Stage:       req.Stage,
		Unit:        req.Unit,
		Model:       creq.Model,
		Format:      req.Format,
		StartedAt:   time.Now(),
		PromptBytes: len(creq.System),
	}
	for _, m := range creq.Messages {
		rec.PromptBytes += len(m.Content)
	}

	resp, err := c.collect(ctx, creq, &rec)
	if err == nil && resp.Truncated {
		c.logger.Warn("oracle completion hit the token cap",
			"stage", req.Stage, "unit", req.Unit, "max_tokens", creq.MaxTokens)
	}
	if err == nil && req.Format == FormatJSON {
		var raw []byte
		raw, err = ParseJSON(resp.Text)
		resp.JSON = raw
	}

	rec.Duration = time.Since(rec.StartedAt)
	if err != nil {
		rec.Err = err.Error()
	}
	c.record(rec)

	c.logger.Debug("oracle call",
		"stage", req.Stage, "unit", req.Unit, "format", string(req.Format),
		"duration", rec.Duration.Round(time.Millisecond), "error", rec.Err)

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) completionRequest(req Request) (provider.CompletionRequest, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	creq := provider.CompletionRequest{
		Model:          model,
		MaxTokens:      c.maxTokens,
		Temperature:    c.temperature,
		ResponseFormat: provider.FormatText,
	}
	if req.Format == FormatJSON {
		creq.ResponseFormat = provider.FormatJSON
	}

	for i, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			if i != 0 {
				return creq, fmt.Errorf("system message must come first (got it at %d)", i)
			}
			creq.System = m.Content
		case RoleUser:
			creq.Messages = append(creq.Messages, provider.NewUserMessage(m.Content))
		default:
			return creq, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	if len(creq.Messages) == 0 {
		return creq, errors.New("request has no user message")
	}
	return creq, nil
}

func (c *Client) collect(ctx context.Context, creq provider.CompletionRequest, rec *CallRecord) (*Response, error) {
	ch, err := c.provider.Stream(ctx, creq)
	if err != nil {
		return nil, NewTransportError(err)
	}

	var b strings.Builder
	var streamErr error
	truncated := false
	for evt := range ch {
		switch evt.Type {
		case "text_delta":
			b.WriteString(evt.Text)
		case "usage":
			rec.InputTokens = evt.InputTokens
			rec.OutputTokens = evt.OutputTokens
		case "stop":
			truncated = evt.StopReason == provider.StopLength
		case "error":
			// Keep draining so the provider goroutine can exit.
			if streamErr == nil {
				streamErr = evt.Error
			}
		}
	}
	if streamErr != nil {
		return nil, NewTransportError(fmt.Errorf("stream: %w", streamErr))
	}

	rec.ResponseBytes = b.Len()
	return &Response{Text: b.String(), Truncated: truncated}, nil
}

func (c *Client) record(rec CallRecord) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordCall(rec); err != nil {
		c.logger.Warn("recording oracle call failed", "error", err)
	}
}
