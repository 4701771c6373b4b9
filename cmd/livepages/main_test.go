package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
	"unicode"
)

const topPagesBody = `{"pages":[
	{"title":"A","stats":{"visits":100,"toprefs":[{"domain":"x.com","visitors":5}]}},
	{"title":"B","stats":{"visits":40,"toprefs":[]}}
]}`

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newTopPagesServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "k" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":"bad key"}`))
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	for _, name := range []string{"serve", "fetch", "version"} {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
	for _, flag := range []string{"config", "api-key", "host", "debug"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag %q", flag)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := executeRoot(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "livepages ") {
		t.Errorf("output = %q", out)
	}
}

func TestFetchCmd(t *testing.T) {
	srv := newTopPagesServer(t, topPagesBody)
	t.Setenv("CHARTBEAT_BASE_URL", srv.URL+"/")
	t.Setenv("LIVEPAGES_CONFIG", "")

	out, err := executeRoot(t, "fetch", "--api-key", "k", "--host", "example.com")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !strings.Contains(strings.ToUpper(out), "VISITS") {
		t.Errorf("missing header:\n%s", out)
	}
	rows := tableRows(out)
	want := [][]string{{"0", "100", "A"}, {"1", "40", "B"}}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d:\n%s", len(rows), len(want), out)
	}
	for i := range want {
		if strings.Join(rows[i], " ") != strings.Join(want[i], " ") {
			t.Errorf("row %d = %q, want %q", i, rows[i], want[i])
		}
	}
}

// tableRows returns the cells of every table line that starts with a rank.
func tableRows(out string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(out, "\n") {
		cells := strings.FieldsFunc(line, func(r rune) bool {
			return unicode.IsSpace(r) || r == '│' || r == '|'
		})
		if len(cells) != 3 {
			continue
		}
		if _, err := strconv.Atoi(cells[0]); err != nil {
			continue
		}
		rows = append(rows, cells)
	}
	return rows
}

func TestFetchCmdJSON(t *testing.T) {
	srv := newTopPagesServer(t, topPagesBody)
	t.Setenv("CHARTBEAT_BASE_URL", srv.URL+"/")

	out, err := executeRoot(t, "fetch", "--api-key", "k", "--page-limit", "1", "--json")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	var pages []struct {
		Title   string `json:"title"`
		Toprefs []struct {
			Domain string `json:"domain"`
		} `json:"toprefs"`
	}
	if err := json.Unmarshal([]byte(out), &pages); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(pages) != 1 || pages[0].Title != "A" || pages[0].Toprefs[0].Domain != "x.com" {
		t.Errorf("pages = %+v", pages)
	}
}

func TestFetchCmdMarkdown(t *testing.T) {
	srv := newTopPagesServer(t, topPagesBody)
	t.Setenv("CHARTBEAT_BASE_URL", srv.URL+"/")

	out, err := executeRoot(t, "fetch", "--api-key", "k", "--host", "example.com", "--markdown")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !strings.Contains(out, "# Top pages on example.com") {
		t.Errorf("missing heading:\n%s", out)
	}
	if !strings.Contains(out, "x.com (5)") {
		t.Errorf("missing top referrer:\n%s", out)
	}
	if _, err := executeRoot(t, "fetch", "--api-key", "k", "--markdown", "--json"); err == nil {
		t.Error("--markdown and --json together should be rejected")
	}
}

func TestFetchCmdErrors(t *testing.T) {
	srv := newTopPagesServer(t, topPagesBody)
	t.Setenv("CHARTBEAT_BASE_URL", srv.URL+"/")
	t.Setenv("CHARTBEAT_API_KEY", "")

	if _, err := executeRoot(t, "fetch"); err == nil {
		t.Error("expected an error without an API key")
	}

	_, err := executeRoot(t, "fetch", "--api-key", "wrong")
	if err == nil || !strings.Contains(err.Error(), "malformed") {
		t.Errorf("err = %v, want malformed response error", err)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livepages.yaml")
	content := "api_key: file-key\nhost: file.example.com\npoll_interval: 30s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHARTBEAT_HOST", "env.example.com")

	cmd := NewRootCmd()
	serve, _, err := cmd.Find([]string{"serve"})
	if err != nil {
		t.Fatal(err)
	}
	if err := serve.ParseFlags([]string{"--config", path, "--interval", "2s"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(serve)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.APIKey != "file-key" {
		t.Errorf("APIKey = %q, want value from file", cfg.APIKey)
	}
	if cfg.Host != "env.example.com" {
		t.Errorf("Host = %q, env should override the file", cfg.Host)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v, flag should override the file", cfg.PollInterval)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	cmd := NewRootCmd()
	serve, _, _ := cmd.Find([]string{"serve"})
	if err := serve.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(serve); err == nil {
		t.Error("expected an error for a missing explicit config file")
	}
}
