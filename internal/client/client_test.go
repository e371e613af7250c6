package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jasperwreed/unip/internal/audit"
	"github.com/jasperwreed/unip/internal/mockserver"
	"github.com/jasperwreed/unip/internal/models"
	"github.com/jasperwreed/unip/internal/security"
)

type memRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memRecorder) Record(e audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMock(t *testing.T) (*mockserver.Server, *httptest.Server) {
	t.Helper()
	mock := mockserver.New(mockserver.WithLogger(quietLogger()))
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)
	return mock, srv
}

func TestClientEndpoints(t *testing.T) {
	_, srv := newMock(t)
	rec := &memRecorder{}
	c := New(srv.URL, WithLogger(quietLogger()), WithRecorder(rec))
	ctx := context.Background()

	health, err := c.Health(ctx)
	if err != nil || health.Status != "healthy" {
		t.Fatalf("Health = %+v, %v", health, err)
	}

	meta, err := c.Meta(ctx)
	if err != nil || meta.Capabilities.MaxBatchSize != mockserver.MaxBatchSize {
		t.Fatalf("Meta = %+v, %v", meta, err)
	}

	resp, err := c.AnalyzeTexts(ctx, []string{"Great product!"}, nil)
	if err != nil {
		t.Fatalf("AnalyzeTexts: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Sentiment.Label != models.SentimentPositive {
		t.Errorf("results = %+v", resp.Results)
	}

	files := []FileUpload{
		{Name: "a.txt", Content: strings.NewReader("I love this.")},
		{Name: "b.txt", Content: strings.NewReader("I hate this.")},
	}
	resp, err = c.AnalyzeFiles(ctx, files, []string{models.TaskSentiment})
	if err != nil {
		t.Fatalf("AnalyzeFiles: %v", err)
	}
	if len(resp.Results) != 2 || resp.Results[0].SourceFile != "a.txt" || resp.Results[1].SourceFile != "b.txt" {
		t.Errorf("file results = %+v", resp.Results)
	}
	if resp.Results[0].Keywords != nil {
		t.Error("tasks field not honored")
	}

	if len(rec.entries) != 4 {
		t.Fatalf("audit entries = %d, want 4", len(rec.entries))
	}
	for _, e := range rec.entries {
		if e.Status != http.StatusOK || e.CorrelationID == "" || e.ProcessTime == "" {
			t.Errorf("audit entry = %+v", e)
		}
	}
}

func TestClientSanitizesTexts(t *testing.T) {
	var got models.AnalyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"results":[],"metadata":{}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithLogger(quietLogger()))
	if _, err := c.AnalyzeTexts(context.Background(), []string{"<script>x</script>a & b"}, nil); err != nil {
		t.Fatalf("AnalyzeTexts: %v", err)
	}
	if len(got.Texts) != 1 || got.Texts[0] != "a &amp; b" {
		t.Errorf("sent texts = %q", got.Texts)
	}
}

func TestCorrelationIDContinuity(t *testing.T) {
	var seen []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get(HeaderCorrelationID))
		n := len(seen)
		mu.Unlock()
		if n == 1 {
			w.Header().Set(HeaderCorrelationID, "server-assigned")
		}
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithLogger(quietLogger()))
	initial := c.CorrelationID()

	c.Health(context.Background())
	c.Health(context.Background())
	c.Health(context.Background())

	if seen[0] != initial {
		t.Errorf("first request id = %q, want %q", seen[0], initial)
	}
	if seen[1] != "server-assigned" || seen[2] != "server-assigned" {
		t.Errorf("ids after echo = %v", seen)
	}
}

func TestServerErrorNormalization(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		dev     bool
		wantMsg string
		wantRaw bool
	}{
		{"detail", 400, `{"detail":"No texts provided"}`, false, "No texts provided", false},
		{"message", 500, `{"message":"Internal failure"}`, false, "Internal failure", false},
		{"fallback", 502, `<html>bad gateway</html>`, false, "An error occurred", false},
		{"dev keeps payload", 422, `{"detail":"bad","trace":"x"}`, true, "bad", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(srv.URL, WithLogger(quietLogger()), WithDevMode(tt.dev))
			_, err := c.AnalyzeTexts(context.Background(), []string{"x"}, nil)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T %v", err, err)
			}
			if apiErr.Status != tt.status || apiErr.Kind != KindServer || apiErr.Message != tt.wantMsg {
				t.Errorf("err = %+v", apiErr)
			}
			if (apiErr.Data != nil) != tt.wantRaw {
				t.Errorf("Data = %v, want raw=%v", apiErr.Data, tt.wantRaw)
			}
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url, WithLogger(quietLogger()))
	_, err := c.Health(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != 0 || apiErr.Kind != KindNetwork || apiErr.Message != "Network error. Please check your connection." {
		t.Errorf("err = %+v", apiErr)
	}
}

func TestTimeoutIsNetworkError(t *testing.T) {
	mock := mockserver.New(mockserver.WithLatency(200*time.Millisecond), mockserver.WithLogger(quietLogger()))
	srv := httptest.NewServer(mock.Handler())
	defer srv.Close()

	c := New(srv.URL, WithLogger(quietLogger()), WithTimeout(20*time.Millisecond))
	_, err := c.Health(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindNetwork || apiErr.Status != 0 {
		t.Errorf("err = %v", err)
	}
}

func TestRateLimitedWithoutNetwork(t *testing.T) {
	mock, srv := newMock(t)
	rec := &memRecorder{}
	limiter := security.NewRateLimiter(nil)
	c := New(srv.URL,
		WithLogger(quietLogger()),
		WithRateLimiter(limiter, 2, time.Minute),
		WithRecorder(rec),
	)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.Health(ctx); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	_, err := c.Health(ctx)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	var apiErr *APIError
	errors.As(err, &apiErr)
	if apiErr.Status != 0 || apiErr.Kind != KindLocal || apiErr.Message != "Too many requests. Please wait a moment." {
		t.Errorf("err = %+v", apiErr)
	}
	if got := mock.Requests(PathHealth); got != 2 {
		t.Errorf("server saw %d requests, want 2", got)
	}
	if last := rec.entries[len(rec.entries)-1]; last.ErrorKind != string(KindLocal) {
		t.Errorf("denied request not audited: %+v", last)
	}
}

func TestDecodeFailureIsLocal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": "nope"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithLogger(quietLogger()))
	_, err := c.AnalyzeTexts(context.Background(), []string{"x"}, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindLocal || apiErr.Status != 0 {
		t.Errorf("err = %v", err)
	}
}

func TestNormalize(t *testing.T) {
	if Normalize(nil) != nil {
		t.Error("Normalize(nil) should be nil")
	}

	orig := &APIError{Status: 404, Kind: KindServer, Message: "missing"}
	if Normalize(orig) != orig {
		t.Error("APIError should pass through")
	}

	n := Normalize(errors.New(""))
	if n.Message != "An unexpected error occurred" || n.Status != 0 {
		t.Errorf("empty error = %+v", n)
	}

	v := ValidationError(security.ValidationError{Reason: "Please enter some text to analyze."})
	if v.Kind != KindValidation || v.Status != 0 || v.Message != "Please enter some text to analyze." {
		t.Errorf("validation = %+v", v)
	}
}

func TestPostJSON(t *testing.T) {
	mock, srv := newMock(t)
	c := New(srv.URL, WithLogger(quietLogger()))

	err := c.PostJSON(context.Background(), PathLogs, models.LogRecord{Level: "ERROR", Message: "x"})
	if err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if len(mock.Logs()) != 1 {
		t.Errorf("logs = %v", mock.Logs())
	}
	if err := c.PostJSON(context.Background(), "/nope", map[string]string{}); err == nil {
		t.Error("expected error for 404")
	}
}

func TestMetaAcceptsNestedModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"version":"2.0","capabilities":{"nlp_tasks":["sentiment"]},
			"models":{"sentiment":{"name":"distilbert","device":"cuda"},"keywords":"yake"}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, WithLogger(quietLogger()))
	meta, err := c.Meta(context.Background())
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if got := models.DescribeModel(meta.Models["sentiment"]); got != "device=cuda name=distilbert" {
		t.Errorf("sentiment model = %q", got)
	}
	if got := models.DescribeModel(meta.Models["keywords"]); got != "yake" {
		t.Errorf("keywords model = %q", got)
	}
}

func TestAnalyzeAcceptsUnexpectedMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"results":[{"text":"Great product!","sentiment":{"label":"positive","score":0.98}}],
			"metadata":{"mode":"gpu","warnings":[{"code":"w1"}],"timings":{"sentiment":{"p50":3}},"extra":[1,2]}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, WithLogger(quietLogger()))
	resp, err := c.AnalyzeTexts(context.Background(), []string{"Great product!"}, nil)
	if err != nil {
		t.Fatalf("AnalyzeTexts: %v", err)
	}
	if len(resp.Results) != 1 || resp.Metadata.Mode != "gpu" {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Metadata.Warnings) != 1 || resp.Metadata.Timings != nil {
		t.Errorf("metadata = %+v", resp.Metadata)
	}
}
