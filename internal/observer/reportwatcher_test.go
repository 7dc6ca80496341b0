package observer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startWatcher(t *testing.T, dir string) (*ReportWatcher, context.CancelFunc, chan error) {
	t.Helper()
	rw, err := NewReportWatcher(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	rw.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rw.Run(ctx) }()
	t.Cleanup(cancel)
	return rw, cancel, done
}

func receive(t *testing.T, rw *ReportWatcher) string {
	t.Helper()
	select {
	case path, ok := <-rw.Files():
		if !ok {
			t.Fatal("files channel closed")
		}
		return path
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for report")
	}
	return ""
}

func TestReportWatcher_EmitsXMLFiles(t *testing.T) {
	dir := t.TempDir()
	rw, _, _ := startWatcher(t, dir)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}
	report := filepath.Join(dir, "junit.xml")
	if err := os.WriteFile(report, []byte("<testsuites/>"), 0644); err != nil {
		t.Fatal(err)
	}

	if got := receive(t, rw); got != report {
		t.Errorf("path = %s, want %s", got, report)
	}
}

func TestReportWatcher_CollapsesRepeatedWrites(t *testing.T) {
	dir := t.TempDir()
	rw, _, _ := startWatcher(t, dir)

	report := filepath.Join(dir, "junit.xml")
	f, err := os.Create(report)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		f.WriteString("<testsuite/>\n")
	}
	f.Close()

	if got := receive(t, rw); got != report {
		t.Errorf("path = %s, want %s", got, report)
	}

	select {
	case path := <-rw.Files():
		t.Errorf("unexpected second delivery of %s", path)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestReportWatcher_StopsOnCancel(t *testing.T) {
	rw, cancel, done := startWatcher(t, t.TempDir())
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-rw.Files(); ok {
		t.Error("files channel should be closed")
	}
}

func TestNewReportWatcher_RejectsMissingDir(t *testing.T) {
	if _, err := NewReportWatcher(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Error("expected error for missing directory")
	}
}
