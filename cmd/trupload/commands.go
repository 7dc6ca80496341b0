package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hochfrequenz/trupload/internal/config"
	"github.com/hochfrequenz/trupload/internal/console"
	"github.com/hochfrequenz/trupload/internal/history"
	"github.com/hochfrequenz/trupload/internal/observer"
	"github.com/hochfrequenz/trupload/internal/parser"
)

// uploadFlags override the [upload] section and the project
type uploadFlags struct {
	file    string
	project string
	title   string
	suiteID int
	runID   int
	yes     bool
	no      bool
}

func (f *uploadFlags) register(cmd *cobra.Command, withFile bool) {
	if withFile {
		cmd.Flags().StringVarP(&f.file, "file", "f", "", "JUnit XML report to upload")
	}
	cmd.Flags().StringVar(&f.project, "project", "", "TestRail project name")
	cmd.Flags().StringVar(&f.title, "title", "", "title of the created test run")
	cmd.Flags().IntVar(&f.suiteID, "suite-id", 0, "upload into this suite instead of resolving one")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "create missing suites, sections and cases without asking")
	cmd.Flags().BoolVarP(&f.no, "no", "n", false, "never create missing entities")
	cmd.MarkFlagsMutuallyExclusive("yes", "no")
}

func (f *uploadFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("file") {
		cfg.Upload.File = f.file
	}
	if changed("project") {
		cfg.TestRail.Project = f.project
	}
	if changed("title") {
		cfg.Upload.Title = f.title
	}
	if changed("suite-id") {
		cfg.Upload.SuiteID = f.suiteID
	}
	if changed("run-id") {
		cfg.Upload.RunID = f.runID
	}
	switch {
	case f.yes:
		cfg.Upload.AutoCreate = console.AnswerYes
	case f.no:
		cfg.Upload.AutoCreate = console.AnswerNo
	}
}

// loadConfig layers the config file, .env, TR_CLI_* variables and global flags
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	path := a.configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("host") {
		cfg.TestRail.Host = a.host
	}
	if changed("username") {
		cfg.TestRail.Username = a.username
	}
	if changed("password") {
		cfg.TestRail.Password = a.password
	}
	if changed("key") {
		cfg.TestRail.Key = a.key
	}
	if changed("timeout") {
		cfg.TestRail.Timeout = a.timeout
	}
	return cfg, nil
}

func (a *app) newUploadCmd() *cobra.Command {
	var flags uploadFlags
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a JUnit report to TestRail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := a.newSession(cfg)
			defer s.Close()
			return s.upload(ctx, cfg.Upload.File)
		},
	}
	flags.register(cmd, true)
	cmd.Flags().IntVar(&flags.runID, "run-id", 0, "upload into this existing run instead of creating one")
	return cmd
}

func (a *app) newParseCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse a JUnit report and print it without contacting TestRail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				cfg, err := a.loadConfig(cmd)
				if err != nil {
					return err
				}
				file = cfg.Upload.File
			}
			if file == "" {
				return errors.New("no report file given, use --file")
			}

			suite, err := parser.ParseFile(file)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, renderSuite(suite))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JUnit XML report to parse")
	return cmd
}

func (a *app) newWatchCmd() *cobra.Command {
	var (
		flags uploadFlags
		dir   string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Upload every report written to a directory, one at a time",
		Long: `watch uploads each *.xml file created or rewritten in --dir.
Uploads run strictly one after another; the first failed upload stops watching.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			if cfg.Upload.RunID != 0 {
				return errors.New("run_id cannot be used with watch, every report gets its own run")
			}
			cfg.Upload.File = dir
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := a.newLogger()
			watcher, err := observer.NewReportWatcher(dir, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := a.newSession(cfg)
			defer s.Close()

			fmt.Fprintf(a.stdout, "Watching %s for reports\n", dir)
			return watch(ctx, watcher, s.upload)
		},
	}
	flags.register(cmd, false)
	cmd.Flags().StringVar(&dir, "dir", ".", "directory to watch for reports")
	return cmd
}

// watch feeds reports from the watcher to upload until ctx ends or an upload fails
func watch(ctx context.Context, watcher *observer.ReportWatcher, upload func(context.Context, string) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(gctx)
	})
	g.Go(func() error {
		for path := range watcher.Files() {
			if err := upload(gctx, path); err != nil {
				return err
			}
		}
		return nil
	})
	return g.Wait()
}

func (a *app) newHistoryCmd() *cobra.Command {
	var (
		limit   int
		project string
		failed  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent upload attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			store, err := history.New(cfg.History.DatabasePath)
			if err != nil {
				return fmt.Errorf("opening history: %w", err)
			}
			defer store.Close()

			opts := history.ListOptions{Project: project, Limit: limit}
			if failed {
				opts.Status = history.StatusFailed
			}
			uploads, err := store.List(opts)
			if err != nil {
				return err
			}

			if len(uploads) == 0 {
				fmt.Fprintln(a.stdout, "No uploads recorded")
				return nil
			}
			fmt.Fprintln(a.stdout, renderHistory(uploads))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of attempts to show")
	cmd.Flags().StringVar(&project, "project", "", "only show attempts for this project")
	cmd.Flags().BoolVar(&failed, "failed", false, "only show failed attempts")
	return cmd
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "trupload %s\n", version)
		},
	}
}
