package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override values from the config file
const (
	EnvHost     = "TR_CLI_HOST"
	EnvProject  = "TR_CLI_PROJECT"
	EnvUsername = "TR_CLI_USERNAME"
	EnvPassword = "TR_CLI_PASSWORD"
	EnvKey      = "TR_CLI_KEY"
	EnvTimeout  = "TR_CLI_TIMEOUT"
	EnvFile     = "TR_CLI_FILE"
	EnvTitle    = "TR_CLI_TITLE"
	EnvSuiteID  = "TR_CLI_SUITE_ID"
	EnvRunID    = "TR_CLI_RUN_ID"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment. Variables that are already set win. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

// ApplyEnv overrides config values with TR_CLI_* variables from lookup.
// Pass os.LookupEnv for the real environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvHost, &c.TestRail.Host},
		{EnvProject, &c.TestRail.Project},
		{EnvUsername, &c.TestRail.Username},
		{EnvPassword, &c.TestRail.Password},
		{EnvKey, &c.TestRail.Key},
		{EnvFile, &c.Upload.File},
		{EnvTitle, &c.Upload.Title},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok && v != "" {
			*s.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{EnvSuiteID, &c.Upload.SuiteID},
		{EnvRunID, &c.Upload.RunID},
	}
	for _, i := range ints {
		v, ok := lookup(i.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return &EnvError{Key: i.key, Value: v, Err: err}
		}
		*i.dst = n
	}

	if v, ok := lookup(EnvTimeout); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &EnvError{Key: EnvTimeout, Value: v, Err: err}
		}
		c.TestRail.Timeout = f
	}

	return nil
}

// EnvError reports an environment variable that could not be parsed
type EnvError struct {
	Key   string
	Value string
	Err   error
}

func (e *EnvError) Error() string {
	return "invalid value " + strconv.Quote(e.Value) + " for " + e.Key + ": " + e.Err.Error()
}

func (e *EnvError) Unwrap() error { return e.Err }
