package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jasperwreed/unip/internal/config"
	"github.com/jasperwreed/unip/internal/mockserver"
	"github.com/jasperwreed/unip/internal/models"
)

type testEnv struct {
	home   string
	config string
	mock   *mockserver.Server
	srv    *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{config.EnvAPIURL, config.EnvEnv, config.EnvLogLevel, config.EnvDB} {
		t.Setenv(k, "")
	}

	mock := mockserver.New()
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	cfgPath := filepath.Join(home, "config.yaml")
	cfg := fmt.Sprintf(`api_url: %s
progress:
  stage_delay: 1ms
  tick_interval: 10ms
  clear_delay: 1ms
  reveal_delay: 1ms
`, srv.URL)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	return &testEnv{home: home, config: cfgPath, mock: mock, srv: srv}
}

func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.config}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := e.run(t, "", args...)
	if err != nil {
		t.Fatalf("%v: %v\nstderr: %s", args, err, errOut)
	}
	return out
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "unip" {
		t.Errorf("Command.Use = %v, want %v", cmd.Use, "unip")
	}

	for _, flag := range []string{"config", "api-url", "db", "log-level", "env"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("Persistent flag %q not defined", flag)
		}
	}

	want := []string{"analyze", "history", "stats", "last", "health", "meta", "watch", "logs", "mock-server", "theme"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Subcommand %q not registered", name)
		}
	}
}

func TestNewAnalyzeCommand(t *testing.T) {
	cmd := NewAnalyzeCommand()

	if cmd.Short == "" {
		t.Error("Command.Short should not be empty")
	}

	for _, flag := range []string{"file", "url", "stdin", "tasks", "tui", "json"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("Flag %q not defined", flag)
		}
	}
}

func TestAnalyzeTextsThenHistory(t *testing.T) {
	env := newTestEnv(t)

	out, errOut, err := env.run(t, "", "analyze", "I love this great product", "This was a terrible experience")
	if err != nil {
		t.Fatalf("analyze: %v\nstderr: %s", err, errOut)
	}
	if !strings.Contains(errOut, "Initializing analysis...") {
		t.Errorf("progress not printed, stderr = %q", errOut)
	}
	if !strings.Contains(out, "Total texts analyzed   2") {
		t.Errorf("dashboard missing totals:\n%s", out)
	}
	if !strings.Contains(out, "Overall sentiment is") {
		t.Errorf("dashboard missing insights:\n%s", out)
	}

	out = env.mustRun(t, "history", "list")
	if !strings.Contains(out, "Analysis #1") || !strings.Contains(out, "2 texts") {
		t.Errorf("history list = %q", out)
	}

	out = env.mustRun(t, "stats")
	if !strings.Contains(out, "Total Analyses: 1") || !strings.Contains(out, "Total Texts: 2") {
		t.Errorf("stats = %q", out)
	}

	out = env.mustRun(t, "history", "search", "terrible")
	if !strings.Contains(out, "Found 1 matching analyses") || !strings.Contains(out, "terrible experience") {
		t.Errorf("history search = %q", out)
	}
	out = env.mustRun(t, "history", "search", "refund")
	if !strings.Contains(out, "No matching analyses.") {
		t.Errorf("history search without match = %q", out)
	}
}

func TestAnalyzeJSONAndLast(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "analyze", "--json", "--tasks", "sentiment,keywords", "What a wonderful day")

	var entry models.HistoryEntry
	if err := json.Unmarshal([]byte(out), &entry); err != nil {
		t.Fatalf("analyze --json output is not an entry: %v\n%s", err, out)
	}
	if entry.ID == "" || len(entry.Results) != 1 {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.Results[0].Summary != nil {
		t.Error("summary returned although not requested")
	}

	out = env.mustRun(t, "last", "--json")
	var last models.HistoryEntry
	if err := json.Unmarshal([]byte(out), &last); err != nil {
		t.Fatalf("last --json: %v", err)
	}
	if last.ID != entry.ID {
		t.Errorf("last ID = %s, want %s", last.ID, entry.ID)
	}

	out = env.mustRun(t, "history", "show", entry.ID[:8])
	if !strings.Contains(out, entry.ID) {
		t.Errorf("history show by prefix = %q", out)
	}
}

func TestAnalyzeStdin(t *testing.T) {
	env := newTestEnv(t)

	out, errOut, err := env.run(t, "Great support team.\nVery helpful.", "analyze", "--stdin", "--json")
	if err != nil {
		t.Fatalf("analyze --stdin: %v\nstderr: %s", err, errOut)
	}
	var entry models.HistoryEntry
	if err := json.Unmarshal([]byte(out), &entry); err != nil {
		t.Fatal(err)
	}
	if entry.TextCount != 1 {
		t.Errorf("TextCount = %d, want 1", entry.TextCount)
	}
}

func TestAnalyzeFilesSkipsInvalid(t *testing.T) {
	env := newTestEnv(t)

	dir := t.TempDir()
	good := filepath.Join(dir, "notes.txt")
	bad := filepath.Join(dir, "tool.exe")
	if err := os.WriteFile(good, []byte("The new release is fantastic and fast."), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("MZ"), 0644); err != nil {
		t.Fatal(err)
	}

	out, errOut, err := env.run(t, "", "analyze", "--file", good, "--file", bad)
	if err != nil {
		t.Fatalf("analyze files: %v\nstderr: %s", err, errOut)
	}
	if !strings.Contains(errOut, "Skipped tool.exe") {
		t.Errorf("rejection not reported, stderr = %q", errOut)
	}
	if !strings.Contains(errOut, "notes.txt (") {
		t.Errorf("preview not printed, stderr = %q", errOut)
	}
	if !strings.Contains(out, "Files: notes.txt") {
		t.Errorf("dashboard missing file names:\n%s", out)
	}
}

func TestAnalyzeInputErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{
			name:   "nothing to analyze",
			args:   []string{"analyze"},
			errMsg: "nothing to analyze",
		},
		{
			name:   "files and texts",
			args:   []string{"analyze", "--file", "a.txt", "some text"},
			errMsg: "--file cannot be combined",
		},
		{
			name:   "unknown task",
			args:   []string{"analyze", "--tasks", "translate", "text"},
			errMsg: "unknown task",
		},
		{
			name:   "blank text",
			args:   []string{"analyze", "   "},
			errMsg: "Please enter some text to analyze.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.run(t, "", tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %v, want to contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestAnalyzeServiceDown(t *testing.T) {
	env := newTestEnv(t)
	url := env.srv.URL
	env.srv.Close()

	_, _, err := env.run(t, "", "--api-url", url, "analyze", "hello there")
	if err == nil || !strings.Contains(err.Error(), "analysis failed") {
		t.Fatalf("error = %v, want analysis failed", err)
	}

	out := env.mustRun(t, "history", "list")
	if !strings.Contains(out, "No analyses found.") {
		t.Errorf("failed run reached history: %q", out)
	}
}

func TestHistoryDeleteAndClear(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "analyze", "--json", "first text is good")
	var first models.HistoryEntry
	if err := json.Unmarshal([]byte(out), &first); err != nil {
		t.Fatal(err)
	}
	env.mustRun(t, "analyze", "second text is bad")

	out, _, err := env.run(t, "n\n", "history", "delete", first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Cancelled.") {
		t.Errorf("delete without confirmation = %q", out)
	}

	out, _, err = env.run(t, "y\n", "history", "delete", first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Deleted analysis") {
		t.Errorf("delete = %q", out)
	}

	if _, _, err := env.run(t, "", "history", "show", first.ID); err == nil {
		t.Error("deleted entry still shown")
	}

	out = env.mustRun(t, "history", "clear", "--yes")
	if !strings.Contains(out, "Cleared 1 analyses") {
		t.Errorf("clear = %q", out)
	}
	out = env.mustRun(t, "history", "list")
	if !strings.Contains(out, "No analyses found.") {
		t.Errorf("list after clear = %q", out)
	}
}

func TestHistoryExport(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "analyze", "--json", "export me please")
	var entry models.HistoryEntry
	if err := json.Unmarshal([]byte(out), &entry); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "export.json")
	env.mustRun(t, "history", "export", entry.ID, "--output", path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var exported models.HistoryEntry
	if err := json.Unmarshal(data, &exported); err != nil {
		t.Fatal(err)
	}
	if exported.ID != entry.ID || len(exported.Results) != len(entry.Results) {
		t.Errorf("exported = %+v", exported)
	}
}

func TestLastWithoutHistory(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "last")
	if !strings.Contains(out, "No previous analysis.") {
		t.Errorf("last = %q", out)
	}
}

func TestHealthAndMeta(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "health")
	if !strings.Contains(out, "healthy") {
		t.Errorf("health = %q", out)
	}

	out = env.mustRun(t, "meta")
	if !strings.Contains(out, "Pipeline: "+mockserver.PipelineVersion) {
		t.Errorf("meta = %q", out)
	}
	if !strings.Contains(out, "sentiment: lexicon") {
		t.Errorf("meta models missing: %q", out)
	}
}

func TestHealthBadSchedule(t *testing.T) {
	env := newTestEnv(t)

	if _, _, err := env.run(t, "", "health", "--every", "10ms"); err == nil {
		t.Error("sub-second interval accepted")
	}
}

func TestThemePreference(t *testing.T) {
	env := newTestEnv(t)

	if out := env.mustRun(t, "theme"); strings.TrimSpace(out) != "dark" {
		t.Errorf("default theme = %q", out)
	}
	env.mustRun(t, "theme", "light")
	if out := env.mustRun(t, "theme"); strings.TrimSpace(out) != "light" {
		t.Errorf("theme after set = %q", out)
	}
	if _, _, err := env.run(t, "", "theme", "blue"); err == nil {
		t.Error("invalid theme accepted")
	}
}

func TestLogsShowsAuditTrail(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "logs")
	if !strings.Contains(out, "No requests recorded.") {
		t.Errorf("logs before any request = %q", out)
	}

	env.mustRun(t, "analyze", "audit this text")

	out = env.mustRun(t, "logs")
	if !strings.Contains(out, "/api/v1/analyze") {
		t.Errorf("logs = %q", out)
	}

	out = env.mustRun(t, "logs", "--failed")
	if !strings.Contains(out, "No requests recorded.") {
		t.Errorf("logs --failed = %q", out)
	}
}

func TestWatchRequiresDirectory(t *testing.T) {
	env := newTestEnv(t)

	if _, _, err := env.run(t, "", "watch"); err == nil {
		t.Error("watch without directory accepted")
	}
	if _, _, err := env.run(t, "", "watch", filepath.Join(env.home, "missing")); err == nil {
		t.Error("watch on missing directory accepted")
	}

	out := env.mustRun(t, "watch", "--status")
	if !strings.Contains(out, "Status: stopped") {
		t.Errorf("watch --status = %q", out)
	}
}

func TestFlagOverridesConfig(t *testing.T) {
	env := newTestEnv(t)

	if _, _, err := env.run(t, "", "--api-url", "ftp://example.com", "health"); err == nil {
		t.Error("non-http api url accepted")
	}

	db := filepath.Join(t.TempDir(), "other.db")
	env.mustRun(t, "--db", db, "analyze", "stored elsewhere")
	if _, err := os.Stat(db); err != nil {
		t.Errorf("--db not used: %v", err)
	}
	if out := env.mustRun(t, "history", "list"); !strings.Contains(out, "No analyses found.") {
		t.Errorf("default db received the entry: %q", out)
	}
}
