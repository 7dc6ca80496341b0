//go:build integration

package integration

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// binaryPath returns the path to the built CLI binary
func binaryPath(t *testing.T) string {
	t.Helper()
	// Look for the binary in common locations
	paths := []string{
		"../trupload",
		"./trupload",
		filepath.Join(os.Getenv("GOPATH"), "bin", "trupload"),
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			abs, _ := filepath.Abs(p)
			return abs
		}
	}

	// Try to build it
	t.Log("Binary not found, building...")
	cmd := exec.Command("go", "build", "-o", "../trupload", "../cmd/trupload")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, out)
	}

	abs, _ := filepath.Abs("../trupload")
	return abs
}

// createTestConfig creates a temporary config file for testing
func createTestConfig(t *testing.T, host, project, report, dbPath string) string {
	t.Helper()
	configPath := TempConfigPath(t)

	config := `[testrail]
host = "` + host + `"
project = "` + project + `"
username = "ci@example.com"
key = "api-key"
timeout = 5

[upload]
file = "` + report + `"
title = "Integration Run"

[notifications]
desktop = false

[history]
enabled = true
database_path = "` + dbPath + `"
`

	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	return configPath
}

// runCLI runs the binary in an empty directory so no .env is picked up
func runCLI(t *testing.T, stdin string, args ...string) (string, int) {
	t.Helper()
	cmd := exec.Command(binaryPath(t), args...)
	cmd.Dir = t.TempDir()
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = cleanEnv()

	out, err := cmd.CombinedOutput()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return string(out), 0
	case errors.As(err, &exitErr):
		return string(out), exitErr.ExitCode()
	default:
		t.Fatalf("running CLI: %v", err)
		return "", -1
	}
}

func cleanEnv() []string {
	var env []string
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "TR_CLI_") {
			env = append(env, kv)
		}
	}
	return env
}

// TestCLI_Upload tests a full upload into a single suite project
func TestCLI_Upload(t *testing.T) {
	fake := NewFakeTestRail(t, "Shop", 1, 1)
	configPath := createTestConfig(t, fake.URL(), "Shop", Fixture(t, "junit_root.xml"), TempDBPath(t))

	output, code := runCLI(t, "", "upload", "--config", configPath, "-y")
	if code != 0 {
		t.Fatalf("upload failed with %d:\n%s", code, output)
	}

	for _, want := range []string{"Creating test run. Done.", "Closing test run. Done."} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output, got: %s", want, output)
		}
	}

	_, sections, cases := fake.Counts()
	if sections != 2 || cases != 4 {
		t.Errorf("sections = %d, cases = %d, want 2 and 4", sections, cases)
	}
	for id, closed := range fake.Runs() {
		if !closed {
			t.Errorf("run %d was not closed", id)
		}
		if n := len(fake.Results(id)); n != 4 {
			t.Errorf("run %d has %d results, want 4", id, n)
		}
	}
}

// TestCLI_UploadTwiceReusesEntities tests that a second upload creates nothing new
func TestCLI_UploadTwiceReusesEntities(t *testing.T) {
	fake := NewFakeTestRail(t, "Shop", 1, 1)
	configPath := createTestConfig(t, fake.URL(), "Shop", Fixture(t, "junit_root.xml"), TempDBPath(t))

	if output, code := runCLI(t, "", "upload", "--config", configPath, "-y"); code != 0 {
		t.Fatalf("first upload failed:\n%s", output)
	}
	// -n would fail the second upload if anything were missing
	output, code := runCLI(t, "", "upload", "--config", configPath, "-n")
	if code != 0 {
		t.Fatalf("second upload failed:\n%s", output)
	}
	if strings.Contains(output, "Adding missing") {
		t.Errorf("nothing should be created on the second upload:\n%s", output)
	}
	if len(fake.Runs()) != 2 {
		t.Errorf("runs = %d, want 2", len(fake.Runs()))
	}
}

// TestCLI_UploadDeclined tests the exit code when creation is refused
func TestCLI_UploadDeclined(t *testing.T) {
	fake := NewFakeTestRail(t, "Shop", 3)
	configPath := createTestConfig(t, fake.URL(), "Shop", Fixture(t, "junit_root.xml"), TempDBPath(t))

	output, code := runCLI(t, "n\n", "upload", "--config", configPath)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1\n%s", code, output)
	}
	if !strings.Contains(output, "Suite 'shop regression' does not exist in project Shop. Would you like to create it?") {
		t.Errorf("Expected suite prompt, got: %s", output)
	}
	if !strings.Contains(output, "User did not agree to create 'suite' automatically. Exiting.") {
		t.Errorf("Expected refusal message, got: %s", output)
	}
	if strings.Count(output, "did not agree") != 1 {
		t.Errorf("refusal should be printed once:\n%s", output)
	}
}

// TestCLI_UploadUnknownProject tests a project that does not exist
func TestCLI_UploadUnknownProject(t *testing.T) {
	fake := NewFakeTestRail(t, "Shop", 1, 1)
	configPath := createTestConfig(t, fake.URL(), "Warehouse", Fixture(t, "junit_root.xml"), TempDBPath(t))

	output, code := runCLI(t, "", "upload", "--config", configPath, "-y")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(output, "Warehouse project doesn't exist.") {
		t.Errorf("Expected project message, got: %s", output)
	}
}

// TestCLI_Parse tests printing a report without TestRail
func TestCLI_Parse(t *testing.T) {
	output, code := runCLI(t, "", "parse", "--file", Fixture(t, "junit_no_root.xml"))
	if code != 0 {
		t.Fatalf("parse failed:\n%s", output)
	}
	for _, want := range []string{"Smoke", "home page loads", "search works"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output, got: %s", want, output)
		}
	}
}

// TestCLI_ParseInvalid tests that a broken report fails
func TestCLI_ParseInvalid(t *testing.T) {
	_, code := runCLI(t, "", "parse", "--file", Fixture(t, "junit_invalid.xml"))
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

// TestCLI_History tests that attempts are listed after uploads
func TestCLI_History(t *testing.T) {
	fake := NewFakeTestRail(t, "Shop", 1, 1)
	configPath := createTestConfig(t, fake.URL(), "Shop", Fixture(t, "junit_root.xml"), TempDBPath(t))

	runCLI(t, "", "upload", "--config", configPath, "-y")
	runCLI(t, "", "upload", "--config", configPath, "-y", "--project", "Warehouse")

	output, code := runCLI(t, "", "history", "--config", configPath)
	if code != 0 {
		t.Fatalf("history failed:\n%s", output)
	}
	if !strings.Contains(output, "succeeded") || !strings.Contains(output, "failed") {
		t.Errorf("Expected both outcomes, got: %s", output)
	}

	output, _ = runCLI(t, "", "history", "--config", configPath, "--failed")
	if strings.Contains(output, "succeeded") {
		t.Errorf("--failed should hide successful uploads: %s", output)
	}
}

// TestCLI_InvalidCommand tests error handling for invalid commands
func TestCLI_InvalidCommand(t *testing.T) {
	output, code := runCLI(t, "", "invalid-command")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(output, "unknown command") {
		t.Errorf("Expected 'unknown command' in output, got: %s", output)
	}
}

// TestCLI_MissingCredentials tests validation of the configuration
func TestCLI_MissingCredentials(t *testing.T) {
	configPath := TempConfigPath(t)
	os.WriteFile(configPath, []byte("[testrail]\nhost = \"https://example.testrail.io\"\nproject = \"Shop\"\n"), 0644)

	output, code := runCLI(t, "", "upload", "--config", configPath, "--file", Fixture(t, "junit_root.xml"))
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(output, "testrail.username is required") {
		t.Errorf("Expected validation message, got: %s", output)
	}
}
