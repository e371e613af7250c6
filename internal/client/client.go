// Package client talks to the NLP analysis REST service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/jasperwreed/unip/internal/audit"
	"github.com/jasperwreed/unip/internal/models"
	"github.com/jasperwreed/unip/internal/security"
)

const (
	PathHealth      = "/api/v1/health"
	PathMeta        = "/api/v1/meta"
	PathAnalyze     = "/api/v1/analyze"
	PathAnalyzeFile = "/api/v1/analyze/file"
	PathLogs        = "/api/v1/logs"
	PathLogsBatch   = "/api/v1/logs/batch"

	HeaderCorrelationID = "X-Correlation-ID"
	HeaderProcessTime   = "X-Process-Time"

	DefaultTimeout = 30 * time.Second
)

// FileUpload is one file part of a multipart analysis request.
type FileUpload struct {
	Name    string
	Content io.Reader
}

type Client struct {
	baseURL     string
	http        *http.Client
	timeout     time.Duration
	limiter     *security.RateLimiter
	maxRequests int
	window      time.Duration
	logger      *slog.Logger
	recorder    Recorder
	dev         bool
	now         func() time.Time
	correlation *CorrelationID
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	if c.correlation == nil {
		c.correlation = NewCorrelationID()
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// CorrelationID returns the id the next request will carry.
func (c *Client) CorrelationID() string {
	return c.correlation.Get()
}

func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	var out models.HealthResponse
	if err := c.do(ctx, http.MethodGet, PathHealth, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Meta(ctx context.Context) (*models.MetaResponse, error) {
	var out models.MetaResponse
	if err := c.do(ctx, http.MethodGet, PathMeta, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeTexts sanitizes every text and submits them as one batch.
func (c *Client) AnalyzeTexts(ctx context.Context, texts []string, tasks []string) (*models.AnalyzeResponse, error) {
	req := models.AnalyzeRequest{Texts: make([]string, len(texts)), Tasks: tasks}
	for i, t := range texts {
		req.Texts[i] = security.SanitizeInput(t)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, c.fail(http.MethodPost, PathAnalyze, c.now(), localError(err))
	}

	var out models.AnalyzeResponse
	if err := c.do(ctx, http.MethodPost, PathAnalyze, body, "application/json", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeFiles uploads files as repeated "file" parts of one multipart form.
func (c *Client) AnalyzeFiles(ctx context.Context, files []FileUpload, tasks []string) (*models.AnalyzeResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, f := range files {
		part, err := mw.CreateFormFile("file", f.Name)
		if err != nil {
			return nil, c.fail(http.MethodPost, PathAnalyzeFile, c.now(), localError(err))
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, c.fail(http.MethodPost, PathAnalyzeFile, c.now(), localError(fmt.Errorf("read %s: %w", f.Name, err)))
		}
	}
	if len(tasks) > 0 {
		if err := mw.WriteField("tasks", strings.Join(tasks, ",")); err != nil {
			return nil, c.fail(http.MethodPost, PathAnalyzeFile, c.now(), localError(err))
		}
	}
	if err := mw.Close(); err != nil {
		return nil, c.fail(http.MethodPost, PathAnalyzeFile, c.now(), localError(err))
	}

	var out models.AnalyzeResponse
	if err := c.do(ctx, http.MethodPost, PathAnalyzeFile, buf.Bytes(), mw.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PostJSON sends body to path without rate limiting or audit. It is the
// side channel used for shipping client logs.
func (c *Client) PostJSON(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderCorrelationID, c.correlation.Get())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string, out any) error {
	start := c.now()
	cid := c.correlation.Get()

	c.logger.Debug("API request started", "method", method, "path", path, "correlation_id", cid)

	if c.limiter != nil && !c.limiter.Allow(c.maxRequests, c.window) {
		c.logger.Warn("rate limit exceeded", "path", path, "correlation_id", cid)
		return c.fail(method, path, start, localError(ErrRateLimited))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return c.fail(method, path, start, localError(err))
	}
	req.Header.Set(HeaderCorrelationID, cid)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return c.fail(method, path, start, localError(err))
		}
		return c.fail(method, path, start, networkError(err))
	}
	defer resp.Body.Close()

	if echoed := resp.Header.Get(HeaderCorrelationID); echoed != "" {
		c.correlation.Set(echoed)
		cid = echoed
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(method, path, start, networkError(err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload map[string]any
		if json.Unmarshal(raw, &payload) != nil {
			payload = nil
		}
		apiErr := serverError(resp.StatusCode, payload, raw, c.dev)
		c.logger.Error("API response error",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"error", apiErr.Message,
			"duration", c.now().Sub(start),
			"correlation_id", cid,
		)
		c.record(method, path, start, cid, resp.StatusCode, resp.Header.Get(HeaderProcessTime), apiErr)
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return c.fail(method, path, start, localError(fmt.Errorf("decode response: %w", err)))
		}
	}

	duration := c.now().Sub(start)
	attrs := []any{
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", duration,
		"correlation_id", cid,
	}
	if pt := resp.Header.Get(HeaderProcessTime); pt != "" {
		attrs = append(attrs, "process_time", pt)
	}
	c.logger.Info("API response received", attrs...)
	c.record(method, path, start, cid, resp.StatusCode, resp.Header.Get(HeaderProcessTime), nil)

	return nil
}

func (c *Client) fail(method, path string, start time.Time, apiErr *APIError) *APIError {
	cid := c.correlation.Get()
	c.logger.Error("API request failed",
		"method", method,
		"path", path,
		"kind", string(apiErr.Kind),
		"error", apiErr.Message,
		"duration", c.now().Sub(start),
		"correlation_id", cid,
	)
	c.record(method, path, start, cid, apiErr.Status, "", apiErr)
	return apiErr
}

func (c *Client) record(method, path string, start time.Time, cid string, status int, processTime string, apiErr *APIError) {
	if c.recorder == nil {
		return
	}
	e := audit.Entry{
		Time:          start,
		CorrelationID: cid,
		Method:        method,
		Path:          path,
		Status:        status,
		DurationMs:    c.now().Sub(start).Milliseconds(),
		ProcessTime:   processTime,
	}
	if apiErr != nil {
		e.ErrorKind = string(apiErr.Kind)
		e.Error = apiErr.Message
	}
	if err := c.recorder.Record(e); err != nil {
		c.logger.Debug("audit record failed", "error", err)
	}
}
