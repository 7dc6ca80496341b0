package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hochfrequenz/trupload/internal/history"
	"github.com/hochfrequenz/trupload/internal/observer"
)

const sampleReport = `<?xml version="1.0" encoding="UTF-8"?>
<testsuites name="checkout tests">
  <testsuite name="Checkout" tests="2">
    <properties><property name="browser" value="firefox"/></properties>
    <testcase classname="shop.checkout" name="pays" time="1.5"/>
    <testcase classname="shop.checkout" name="refunds" time="0.2">
      <failure type="AssertionError" message="expected 10">trace</failure>
    </testcase>
  </testsuite>
</testsuites>
`

// stubTestRail is a minimal TestRail with one single-suite project "Shop"
type stubTestRail struct {
	mu       sync.Mutex
	sections []string
	cases    map[int][]string
	nextID   int
	closed   bool
	results  int
}

func (s *stubTestRail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	endpoint := strings.TrimPrefix(r.URL.RawQuery, "/api/v2/")
	name, _, _ := strings.Cut(endpoint, "/")
	switch {
	case name == "get_projects":
		fmt.Fprint(w, `{"_links": {"next": null}, "projects": [{"id": 1, "name": "Shop", "suite_mode": 1}]}`)
	case name == "get_suites":
		fmt.Fprint(w, `[{"id": 42, "name": "Master"}]`)
	case name == "get_sections":
		fmt.Fprint(w, `{"_links": {"next": null}, "sections": [`)
		for i, sec := range s.sections {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"id": %d, "name": %q, "suite_id": 42}`, 100+i, sec)
		}
		fmt.Fprint(w, `]}`)
	case name == "add_section":
		var sec struct {
			Name string `json:"name"`
		}
		decodeBody(r, &sec)
		s.sections = append(s.sections, sec.Name)
		fmt.Fprintf(w, `{"id": %d, "name": %q, "suite_id": 42}`, 100+len(s.sections)-1, sec.Name)
	case name == "get_cases":
		var sectionID int
		fmt.Sscanf(endpoint[strings.Index(endpoint, "section_id="):], "section_id=%d", &sectionID)
		fmt.Fprint(w, `{"_links": {"next": null}, "cases": [`)
		for i, title := range s.cases[sectionID] {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"id": %d, "title": %q, "section_id": %d}`, sectionID*10+i, title, sectionID)
		}
		fmt.Fprint(w, `]}`)
	case name == "add_case":
		var sectionID int
		fmt.Sscanf(endpoint, "add_case/%d", &sectionID)
		var c struct {
			Title string `json:"title"`
		}
		decodeBody(r, &c)
		s.cases[sectionID] = append(s.cases[sectionID], c.Title)
		fmt.Fprintf(w, `{"id": %d, "title": %q, "section_id": %d}`, sectionID*10+len(s.cases[sectionID])-1, c.Title, sectionID)
	case name == "add_run":
		s.nextID++
		fmt.Fprintf(w, `{"id": %d, "name": "run"}`, 500+s.nextID)
	case name == "add_results_for_cases":
		var body struct {
			Results []map[string]any `json:"results"`
		}
		decodeBody(r, &body)
		s.results += len(body.Results)
		fmt.Fprint(w, `[`)
		for i := range body.Results {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"id": %d}`, i+1)
		}
		fmt.Fprint(w, `]`)
	case name == "close_run":
		s.closed = true
		fmt.Fprint(w, `{"id": 501, "is_completed": true}`)
	default:
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `{"error": "unknown endpoint %s"}`, endpoint)
	}
}

func decodeBody(r *http.Request, v any) {
	json.NewDecoder(r.Body).Decode(v)
}

type testEnv struct {
	dir     string
	config  string
	report  string
	dbPath  string
	stub    *stubTestRail
	hostURL string
}

func newTestEnv(t *testing.T, project string) *testEnv {
	t.Helper()
	for _, key := range []string{"TR_CLI_HOST", "TR_CLI_PROJECT", "TR_CLI_USERNAME", "TR_CLI_PASSWORD",
		"TR_CLI_KEY", "TR_CLI_TIMEOUT", "TR_CLI_FILE", "TR_CLI_TITLE", "TR_CLI_SUITE_ID", "TR_CLI_RUN_ID"} {
		t.Setenv(key, "")
	}

	stub := &stubTestRail{cases: make(map[int][]string)}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	env := &testEnv{
		dir:     dir,
		config:  filepath.Join(dir, "config.toml"),
		report:  filepath.Join(dir, "junit.xml"),
		dbPath:  filepath.Join(dir, "history.db"),
		stub:    stub,
		hostURL: server.URL,
	}

	cfg := fmt.Sprintf(`[testrail]
host = %q
project = %q
username = "ci@example.com"
password = "secret"
timeout = 5

[upload]
file = %q
title = "Nightly"

[history]
enabled = true
database_path = %q
`, server.URL, project, env.report, env.dbPath)
	if err := os.WriteFile(env.config, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(env.report, []byte(sampleReport), 0644); err != nil {
		t.Fatal(err)
	}
	return env
}

func (e *testEnv) run(stdin string, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	args = append([]string{"--config", e.config}, args...)
	code := execute(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute([]string{"version"}, nil, &stdout, &stderr)
	if code != ExitCodeSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if stdout.String() != "trupload dev\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestUpload_CreatesMissingEntities(t *testing.T) {
	env := newTestEnv(t, "Shop")

	code, stdout, stderr := env.run("", "upload", "-y")
	if code != ExitCodeSuccess {
		t.Fatalf("exit code = %d\nstdout: %s\nstderr: %s", code, stdout, stderr)
	}

	for _, want := range []string{
		"Adding missing sections to the suite.",
		"Adding missing test cases to the suite.",
		"Creating test run. Done.",
		"Closing test run. Done.",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
	if !env.stub.closed || env.stub.results != 2 {
		t.Errorf("stub closed=%v results=%d", env.stub.closed, env.stub.results)
	}

	store, err := history.New(env.dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	uploads, err := store.List(history.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(uploads) != 1 || uploads[0].Status != history.StatusSucceeded || uploads[0].ResultCount != 2 {
		t.Errorf("history = %+v", uploads)
	}
}

func TestUpload_PromptsOnStdin(t *testing.T) {
	env := newTestEnv(t, "Shop")

	code, stdout, _ := env.run("y\nyes\n", "upload")
	if code != ExitCodeSuccess {
		t.Fatalf("exit code = %d\n%s", code, stdout)
	}
	if !strings.Contains(stdout, "There are sections missing in project Shop. Would you like to add them?") {
		t.Errorf("sections prompt missing:\n%s", stdout)
	}
}

func TestUpload_DeclinedPromptFails(t *testing.T) {
	env := newTestEnv(t, "Shop")

	code, stdout, stderr := env.run("", "upload", "-n")
	if code != ExitCodeError {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "User did not agree to create 'sections' automatically. Exiting.") {
		t.Errorf("stdout:\n%s", stdout)
	}
	if strings.Contains(stderr, "did not agree") {
		t.Errorf("failure printed twice, stderr: %s", stderr)
	}
	if env.stub.closed {
		t.Error("run should not be touched after abort")
	}
}

func TestUpload_UnknownProject(t *testing.T) {
	env := newTestEnv(t, "Shop")

	code, stdout, _ := env.run("", "upload", "--project", "Warehouse")
	if code != ExitCodeError {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "Warehouse project doesn't exist.") {
		t.Errorf("stdout:\n%s", stdout)
	}

	store, err := history.New(env.dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	failed, _ := store.List(history.ListOptions{Status: history.StatusFailed})
	if len(failed) != 1 || failed[0].Message != "Warehouse project doesn't exist." {
		t.Errorf("history = %+v", failed)
	}
}

func TestUpload_InvalidConfiguration(t *testing.T) {
	env := newTestEnv(t, "Shop")

	code, _, stderr := env.run("", "upload", "--host", "")
	if code != ExitCodeError {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr, "testrail.host is required") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestUpload_MissingReport(t *testing.T) {
	env := newTestEnv(t, "Shop")

	code, _, stderr := env.run("", "upload", "-y", "--file", filepath.Join(env.dir, "missing.xml"))
	if code != ExitCodeError {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr, "missing.xml") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestUpload_YesAndNoAreExclusive(t *testing.T) {
	env := newTestEnv(t, "Shop")

	if code, _, _ := env.run("", "upload", "-y", "-n"); code != ExitCodeError {
		t.Errorf("exit code = %d, want %d", code, ExitCodeError)
	}
}

func TestParse(t *testing.T) {
	env := newTestEnv(t, "Shop")

	code, stdout, stderr := env.run("", "parse", "--file", env.report)
	if code != ExitCodeSuccess {
		t.Fatalf("exit code = %d: %s", code, stderr)
	}
	for _, want := range []string{"checkout tests", "Checkout", "pays", "refunds", "browser: firefox"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestParse_InvalidReport(t *testing.T) {
	env := newTestEnv(t, "Shop")
	bad := filepath.Join(env.dir, "bad.xml")
	os.WriteFile(bad, []byte("<testsuites><testsuite>"), 0644)

	code, _, stderr := env.run("", "parse", "--file", bad)
	if code != ExitCodeError {
		t.Fatalf("exit code = %d", code)
	}
	if stderr == "" {
		t.Error("parse error should be printed")
	}
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t, "Shop")

	code, stdout, _ := env.run("", "history")
	if code != ExitCodeSuccess || !strings.Contains(stdout, "No uploads recorded") {
		t.Fatalf("empty history: code=%d stdout=%q", code, stdout)
	}

	env.run("", "upload", "-y")
	code, stdout, _ = env.run("", "history", "--limit", "5")
	if code != ExitCodeSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "Shop") || !strings.Contains(stdout, "succeeded") {
		t.Errorf("history output:\n%s", stdout)
	}
}

func TestWatch_StopsOnFirstFailure(t *testing.T) {
	dir := t.TempDir()
	watcher, err := observer.NewReportWatcher(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	watcher.SetDebounce(20 * time.Millisecond)

	errBoom := errors.New("boom")
	var uploaded []string
	done := make(chan error, 1)
	go func() {
		done <- watch(context.Background(), watcher, func(ctx context.Context, path string) error {
			uploaded = append(uploaded, filepath.Base(path))
			return errBoom
		})
	}()

	time.Sleep(50 * time.Millisecond)
	os.WriteFile(filepath.Join(dir, "a.xml"), []byte(sampleReport), 0644)

	select {
	case err := <-done:
		if !errors.Is(err, errBoom) {
			t.Errorf("watch() = %v, want boom", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after a failed upload")
	}
	if len(uploaded) != 1 || uploaded[0] != "a.xml" {
		t.Errorf("uploaded = %v", uploaded)
	}
}

func TestWatch_EndsWithContext(t *testing.T) {
	watcher, err := observer.NewReportWatcher(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := watch(ctx, watcher, func(context.Context, string) error { return nil }); err != nil {
		t.Errorf("watch() = %v", err)
	}
}
