// Package upstream wraps the external generative-completion API: it builds
// composite prompts, applies mode profiles, and shields callers from
// transient failure with retries, backoff, a fallback model, and a bounded
// truncation follow-up.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultTimeout     = 20 * time.Second
	defaultMaxRetries  = 3
	defaultBackoffBase = time.Second
	snippetLimit       = 800
	maxResponseBytes   = 1 << 20
)

// Config holds the client's endpoint and policy knobs.
type Config struct {
	BaseURL       string
	Model         string
	FallbackModel string // empty disables the fallback attempt
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	BackoffBase   time.Duration
	MaxTokensCap  int
	HistoryWindow int
}

// Request is one completion call.
type Request struct {
	Prompt       string
	Mode         string
	Instructions []string
	History      []HistoryMessage
}

// Result is a successful completion. Truncated is set when the upstream cut
// the output short and the follow-up at a larger budget did not resolve it.
type Result struct {
	Text      string
	Truncated bool
}

// UnavailableError reports policy exhaustion, carrying the last observed
// status and body snippet for diagnostics.
type UnavailableError struct {
	Status  int
	Snippet string
	Err     error
}

func (e *UnavailableError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream unavailable (status %d): %s", e.Status, e.Snippet)
	}
	if e.Err != nil {
		return fmt.Sprintf("upstream unavailable: %v", e.Err)
	}
	return "upstream unavailable"
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Client is a stateless per-call wrapper around the completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	sleep      func(time.Duration)
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// ========== Wire types ==========

type generateRequest struct {
	Contents         []requestContent `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// ========== Completion ==========

// Complete resolves the mode profile, issues the upstream call under the
// transient-retry policy, and runs the truncation follow-up. The two retry
// mechanisms are distinct: the transient policy wraps every call, while the
// truncation follow-up is a single post-success call at a strictly larger
// budget.
func (c *Client) Complete(ctx context.Context, req Request) (Result, error) {
	profile := ResolveProfile(req.Mode)
	maxTokens := clampTokens(profile.MaxOutputTokens, c.cfg.MaxTokensCap)
	prompt := BuildPrompt(req.Prompt, req.Mode, req.Instructions, req.History, c.cfg.HistoryWindow)

	text, finish, err := c.generate(ctx, prompt, profile.Temperature, maxTokens)
	if err != nil {
		return Result{}, err
	}
	if !isTruncated(finish) {
		return Result{Text: text}, nil
	}

	larger := clampTokens(maxTokens*3, c.cfg.MaxTokensCap)
	if larger <= maxTokens {
		// Already at the cap; nothing strictly larger to try.
		return Result{Text: text, Truncated: true}, nil
	}

	c.logger.Warn("upstream truncated output, retrying once at larger budget",
		"budget", maxTokens, "retryBudget", larger)
	text2, finish2, err2 := c.generate(ctx, prompt, profile.Temperature, larger)
	if err2 != nil {
		// Keep the truncated text rather than losing the response.
		return Result{Text: text, Truncated: true}, nil
	}
	return Result{Text: text2, Truncated: isTruncated(finish2)}, nil
}

func isTruncated(finish string) bool {
	switch strings.ToUpper(finish) {
	case "MAX_TOKENS", "LENGTH":
		return true
	}
	return false
}

// generate issues the call under the transient-retry policy: network
// failures, 5xx statuses, and empty extracted text retry with exponential
// backoff up to the attempt ceiling, then the fallback model gets exactly
// one shot.
func (c *Client) generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, string, error) {
	body, err := json.Marshal(generateRequest{
		Contents:         []requestContent{{Parts: []requestPart{{Text: prompt}}}},
		GenerationConfig: generationConfig{Temperature: temperature, MaxOutputTokens: maxTokens},
	})
	if err != nil {
		return "", "", errors.Wrap(err, "marshal generate request")
	}

	delay := c.cfg.BackoffBase
	var last callResult
	var lastErr error

	for attempt := 1; ; attempt++ {
		res, callErr := c.callOnce(ctx, c.cfg.Model, body)
		if callErr == nil && res.status == http.StatusOK && strings.TrimSpace(res.text) != "" {
			return res.text, res.finish, nil
		}
		last, lastErr = res, callErr

		transient := callErr != nil ||
			res.status >= http.StatusInternalServerError ||
			(res.status == http.StatusOK && strings.TrimSpace(res.text) == "")

		if !transient {
			break
		}
		if attempt > c.cfg.MaxRetries {
			// Transient failures exhausted the ceiling: one fallback shot.
			if c.cfg.FallbackModel != "" {
				c.logger.Warn("retries exhausted, attempting fallback model",
					"model", c.cfg.FallbackModel)
				res2, err2 := c.callOnce(ctx, c.cfg.FallbackModel, body)
				if err2 == nil && res2.status == http.StatusOK && strings.TrimSpace(res2.text) != "" {
					return res2.text, res2.finish, nil
				}
				c.logger.Error("fallback model also failed",
					"status", res2.status, "error", err2)
			}
			break
		}

		c.logger.Warn("transient upstream failure, backing off",
			"attempt", attempt, "status", res.status, "delay", delay, "error", callErr)
		c.sleep(delay)
		delay *= 2

		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
	}

	return "", "", &UnavailableError{Status: last.status, Snippet: last.snippet, Err: lastErr}
}

type callResult struct {
	text    string
	finish  string
	status  int
	snippet string
}

// callOnce performs a single HTTP call. Non-OK statuses and undecodable
// bodies are returned as data, not errors; only transport failures error.
func (c *Client) callOnce(ctx context.Context, model string, body []byte) (callResult, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, model)

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return callResult{}, errors.Wrap(err, "build generate request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return callResult{}, errors.Wrap(err, "call completion api")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return callResult{status: resp.StatusCode}, errors.Wrap(err, "read completion response")
	}

	out := callResult{status: resp.StatusCode, snippet: snippet(raw)}
	if resp.StatusCode != http.StatusOK {
		return out, nil
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// Treated as an empty response, which feeds the retry path.
		c.logger.Warn("failed to decode completion response", "error", err)
		return out, nil
	}
	out.text = extractText(&decoded)
	out.finish = finishReason(&decoded)
	return out, nil
}

func snippet(raw []byte) string {
	s := string(raw)
	if len(s) > snippetLimit {
		s = s[:snippetLimit]
	}
	return s
}

// ListModels fetches the upstream's model catalog.
func (c *Client) ListModels(ctx context.Context) (map[string]any, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/models", nil)
	if err != nil {
		return nil, errors.Wrap(err, "build models request")
	}
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "list models")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &UnavailableError{Status: resp.StatusCode, Snippet: snippet(raw)}
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode models response")
	}
	return out, nil
}
