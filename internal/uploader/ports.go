package uploader

import (
	"context"

	"github.com/hochfrequenz/trupload/internal/domain"
)

// Logger receives progress and failure messages. newline=false keeps the
// message open so a following "Done." lands on the same line.
type Logger interface {
	Log(message string, newline bool)
}

// Prompter asks the user a yes/no question
type Prompter interface {
	Ask(prompt string) bool
}

// Environment is the user-facing side of an upload
type Environment interface {
	Logger
	Prompter
}

// Directory looks up and creates TestRail entities. Every method that takes
// the suite may fill in remote ids on it; the caller owns the suite.
type Directory interface {
	ResolveProject(ctx context.Context, name string) domain.ProjectData
	SuiteExists(ctx context.Context, suiteID, projectID int) (bool, error)
	SuiteIDs(ctx context.Context, projectID int) ([]int, error)
	AddSuite(ctx context.Context, projectID int, suite *domain.Suite) ([]domain.RemoteSuite, error)
	MissingSections(ctx context.Context, projectID int, suite *domain.Suite) ([]string, error)
	AddSections(ctx context.Context, projectID int, suite *domain.Suite) ([]domain.RemoteSection, error)
	MissingCases(ctx context.Context, projectID int, suite *domain.Suite) ([]string, error)
	AddCases(ctx context.Context, suite *domain.Suite) ([]domain.RemoteCase, error)
	AddRun(ctx context.Context, projectID int, title string, suite *domain.Suite) (int, error)
	AddResults(ctx context.Context, runID int, suite *domain.Suite) ([]int, error)
	CloseRun(ctx context.Context, runID int) (*domain.TestRun, error)
}
