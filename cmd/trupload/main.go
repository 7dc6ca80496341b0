package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hochfrequenz/trupload/internal/uploader"
)

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// set via -ldflags "-X main.version=..."
var version = "dev"

// app carries the global flags and the process streams shared by all commands
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	verbose    bool
	host       string
	username   string
	password   string
	key        string
	timeout    float64
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "trupload",
		Short: "Upload JUnit test results to TestRail",
		Long: `trupload reads a JUnit XML report and uploads its results to TestRail.
Suites, sections and test cases missing in the project are created after
confirmation, a test run is created (or reused) and closed after upload.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file path (TOML or YAML)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log HTTP requests and diagnostics to stderr")
	flags.StringVar(&a.host, "host", "", "TestRail host, e.g. https://example.testrail.io")
	flags.StringVar(&a.username, "username", "", "TestRail username")
	flags.StringVar(&a.password, "password", "", "TestRail password")
	flags.StringVar(&a.key, "key", "", "TestRail API key, used instead of the password")
	flags.Float64Var(&a.timeout, "timeout", 0, "request timeout in seconds")

	rootCmd.AddCommand(
		a.newUploadCmd(),
		a.newParseCmd(),
		a.newWatchCmd(),
		a.newHistoryCmd(),
		a.newVersionCmd(),
	)
	return rootCmd
}

// execute runs the CLI and maps the outcome to an exit code. Upload failures
// were already reported by the uploader and are not printed again.
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd(stdin, stdout, stderr)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, uploader.ErrAborted) {
			fmt.Fprintln(stderr, err)
		}
		return ExitCodeError
	}
	return ExitCodeSuccess
}

// newLogger creates the diagnostic logger, quiet unless --verbose is set
func (a *app) newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(a.stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: !a.verbose})
	logger.SetLevel(logrus.WarnLevel)
	if a.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
