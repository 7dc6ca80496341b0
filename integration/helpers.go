//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

// FixturesDir returns the path to the fixtures directory
func FixturesDir(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(filename), "fixtures")
}

// Fixture returns the path of a report in the fixtures directory
func Fixture(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(FixturesDir(t), name)
}

// TempDBPath creates a temporary database path for testing
func TempDBPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "history.db")
}

// TempConfigPath creates a temporary config file path for testing
func TempConfigPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "config.toml")
}

// CopyFixtureToTemp copies a fixture into a temp directory
// This is useful when tests need to modify files
func CopyFixtureToTemp(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(Fixture(t, name))
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}
	dst := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(dst, data, 0644); err != nil {
		t.Fatalf("Failed to copy fixture: %v", err)
	}
	return dst
}

type fakeSection struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	SuiteID int    `json:"suite_id"`
}

type fakeCase struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	SectionID int    `json:"section_id"`
}

type fakeSuite struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// FakeTestRail serves the part of the TestRail API used for uploads. All
// paginated lists are split into pages of PageSize items.
type FakeTestRail struct {
	ProjectName string
	SuiteMode   int
	PageSize    int

	mu       sync.Mutex
	nextID   int
	suites   []fakeSuite
	sections []fakeSection
	cases    []fakeCase
	runs     map[int]bool // id -> closed
	results  map[int][]map[string]any
	requests []string

	server *httptest.Server
}

// NewFakeTestRail starts a fake with one project and the given suites
func NewFakeTestRail(t *testing.T, project string, suiteMode int, suiteIDs ...int) *FakeTestRail {
	t.Helper()
	f := &FakeTestRail{
		ProjectName: project,
		SuiteMode:   suiteMode,
		PageSize:    250,
		nextID:      1000,
		runs:        make(map[int]bool),
		results:     make(map[int][]map[string]any),
	}
	for _, id := range suiteIDs {
		f.suites = append(f.suites, fakeSuite{ID: id, Name: fmt.Sprintf("Suite %d", id)})
	}
	f.server = httptest.NewServer(f)
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the base URL to configure as host
func (f *FakeTestRail) URL() string {
	return f.server.URL
}

// AddSection pre-creates a section
func (f *FakeTestRail) AddSection(suiteID int, name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sections = append(f.sections, fakeSection{ID: f.nextID, Name: name, SuiteID: suiteID})
	return f.nextID
}

// AddCase pre-creates a case
func (f *FakeTestRail) AddCase(sectionID int, title string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.cases = append(f.cases, fakeCase{ID: f.nextID, Title: title, SectionID: sectionID})
	return f.nextID
}

// Counts returns how many suites, sections and cases exist
func (f *FakeTestRail) Counts() (suites, sections, cases int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.suites), len(f.sections), len(f.cases)
}

// Runs returns run ids mapped to whether they were closed
func (f *FakeTestRail) Runs() map[int]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	runs := make(map[int]bool, len(f.runs))
	for k, v := range f.runs {
		runs[k] = v
	}
	return runs
}

// Results returns the results posted to a run
func (f *FakeTestRail) Results(runID int) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results[runID]
}

// Requests returns the endpoints called so far
func (f *FakeTestRail) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *FakeTestRail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	endpoint := strings.TrimPrefix(r.URL.RawQuery, "/api/v2/")
	f.requests = append(f.requests, r.Method+" "+endpoint)
	path, query, _ := strings.Cut(endpoint, "&")
	name, arg, _ := strings.Cut(path, "/")
	var id int
	fmt.Sscanf(arg, "%d", &id)
	params := parseParams(query)

	var body map[string]any
	if r.Method == http.MethodPost {
		json.NewDecoder(r.Body).Decode(&body)
	}

	switch name {
	case "get_projects":
		f.page(w, endpoint, "projects", []map[string]any{
			{"id": 1, "name": "Unrelated", "suite_mode": 1},
			{"id": 7, "name": f.ProjectName, "suite_mode": f.SuiteMode},
		}, params)
	case "get_suites":
		if id != 7 {
			f.fail(w, "Field :project_id is not a valid or accessible project.")
			return
		}
		writeJSON(w, f.suites)
	case "add_suite":
		f.nextID++
		s := fakeSuite{ID: f.nextID, Name: fmt.Sprint(body["name"])}
		f.suites = append(f.suites, s)
		writeJSON(w, s)
	case "get_sections":
		var items []fakeSection
		for _, s := range f.sections {
			if fmt.Sprint(s.SuiteID) == params["suite_id"] {
				items = append(items, s)
			}
		}
		f.page(w, endpoint, "sections", items, params)
	case "add_section":
		f.nextID++
		suiteID, _ := body["suite_id"].(float64)
		s := fakeSection{ID: f.nextID, Name: fmt.Sprint(body["name"]), SuiteID: int(suiteID)}
		f.sections = append(f.sections, s)
		writeJSON(w, s)
	case "get_cases":
		var items []fakeCase
		for _, c := range f.cases {
			if fmt.Sprint(c.SectionID) == params["section_id"] {
				items = append(items, c)
			}
		}
		f.page(w, endpoint, "cases", items, params)
	case "add_case":
		f.nextID++
		c := fakeCase{ID: f.nextID, Title: fmt.Sprint(body["title"]), SectionID: id}
		f.cases = append(f.cases, c)
		writeJSON(w, c)
	case "add_run":
		f.nextID++
		f.runs[f.nextID] = false
		writeJSON(w, map[string]any{"id": f.nextID, "name": body["name"], "suite_id": body["suite_id"]})
	case "add_results_for_cases":
		if closed, ok := f.runs[id]; !ok || closed {
			f.fail(w, "Field :run_id is not a valid test run.")
			return
		}
		items, _ := body["results"].([]any)
		var created []map[string]any
		for _, item := range items {
			f.nextID++
			f.results[id] = append(f.results[id], item.(map[string]any))
			created = append(created, map[string]any{"id": f.nextID})
		}
		writeJSON(w, created)
	case "close_run":
		if _, ok := f.runs[id]; !ok {
			f.fail(w, "Field :run_id is not a valid test run.")
			return
		}
		f.runs[id] = true
		writeJSON(w, map[string]any{"id": id, "is_completed": true})
	default:
		f.fail(w, "Unknown method "+name)
	}
}

// writePage writes one page of items in the paginated list format
func writePage[T any](w http.ResponseWriter, endpoint, key string, items []T, params map[string]string, size int) {
	offset := 0
	fmt.Sscanf(params["offset"], "%d", &offset)
	end := offset + size
	if end > len(items) {
		end = len(items)
	}
	if offset > end {
		offset = end
	}

	var next any
	if end < len(items) {
		base, _, _ := strings.Cut(endpoint, "&offset=")
		next = fmt.Sprintf("/api/v2/%s&offset=%d", base, end)
	}

	pageItems := items[offset:end]
	if pageItems == nil {
		pageItems = []T{}
	}
	writeJSON(w, map[string]any{
		"offset": offset,
		"limit":  size,
		"size":   len(pageItems),
		"_links": map[string]any{"next": next},
		key:      pageItems,
	})
}

func (f *FakeTestRail) page(w http.ResponseWriter, endpoint, key string, items any, params map[string]string) {
	switch v := items.(type) {
	case []map[string]any:
		writePage(w, endpoint, key, v, params, f.PageSize)
	case []fakeSection:
		writePage(w, endpoint, key, v, params, f.PageSize)
	case []fakeCase:
		writePage(w, endpoint, key, v, params, f.PageSize)
	}
}

func (f *FakeTestRail) fail(w http.ResponseWriter, msg string) {
	w.WriteHeader(http.StatusBadRequest)
	writeJSON(w, map[string]string{"error": msg})
}

func parseParams(query string) map[string]string {
	params := make(map[string]string)
	for _, kv := range strings.Split(query, "&") {
		if k, v, ok := strings.Cut(kv, "="); ok {
			params[k] = v
		}
	}
	return params
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
