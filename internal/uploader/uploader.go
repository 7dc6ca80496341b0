// Package uploader reconciles a parsed report with TestRail and uploads its results.
//
// An upload walks a fixed sequence: resolve project, resolve suite, add missing
// sections, add missing cases, create (or reuse) a run, upload results, close
// the run. The first failing step logs one message and aborts the upload;
// nothing is retried or resumed at this level.
package uploader

import (
	"context"
	"errors"
	"fmt"

	"github.com/hochfrequenz/trupload/internal/domain"
)

// ErrAborted matches every error returned by Upload. The failure has already
// been reported through the Logger when it is returned.
var ErrAborted = errors.New("upload aborted")

// AbortError carries the message that was logged for a failed step
type AbortError struct {
	Message string
}

func (e *AbortError) Error() string { return e.Message }

// Is makes errors.Is(err, ErrAborted) hold for every AbortError
func (e *AbortError) Is(target error) bool { return target == ErrAborted }

// Options are the per-upload settings
type Options struct {
	Project string // project name as shown in TestRail
	Title   string // title of the created run
	SuiteID int    // overrides the suite id from the report when > 0
	RunID   int    // existing run to upload into; a new run is created when 0
}

// Summary describes how far an upload got and what it created
type Summary struct {
	ProjectID     int
	SuiteID       int
	RunID         int
	RunCreated    bool
	AddedSections []domain.RemoteSection
	AddedCases    []domain.RemoteCase
	ResultIDs     []int
	Closed        bool
}

// Uploader owns a parsed suite for the duration of one upload
type Uploader struct {
	suite *domain.Suite
	dir   Directory
	env   Environment
	opts  Options
}

// New creates an Uploader for suite. The suite is mutated in place as remote
// ids are resolved and must not be shared with other goroutines.
func New(suite *domain.Suite, dir Directory, env Environment, opts Options) *Uploader {
	if opts.SuiteID > 0 {
		suite.SuiteID = domain.IntPtr(opts.SuiteID)
	}
	return &Uploader{
		suite: suite,
		dir:   dir,
		env:   env,
		opts:  opts,
	}
}

// Suite returns the suite being uploaded
func (u *Uploader) Suite() *domain.Suite {
	return u.suite
}

// Upload runs the whole workflow. The returned Summary is never nil and
// reflects the steps that completed, also when an error is returned.
func (u *Uploader) Upload(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	project := u.dir.ResolveProject(ctx, u.opts.Project)
	switch project.Err {
	case domain.ProjectFound:
	case domain.ProjectNotFound:
		return summary, u.abort(project.Message)
	default:
		return summary, u.abort(errorCheckingProject(project.Message))
	}
	summary.ProjectID = project.ID

	suiteID, err := u.resolveSuiteID(ctx, project.ID, project.SuiteMode)
	if err != nil {
		return summary, err
	}
	summary.SuiteID = suiteID

	sections, err := u.addMissingSections(ctx, project.ID)
	if err != nil {
		return summary, err
	}
	summary.AddedSections = sections

	cases, err := u.addMissingCases(ctx, project.ID)
	if err != nil {
		return summary, err
	}
	summary.AddedCases = cases

	runID := u.opts.RunID
	if runID == 0 {
		u.env.Log(msgCreatingRun, false)
		runID, err = u.dir.AddRun(ctx, project.ID, u.opts.Title, u.suite)
		if err != nil {
			return summary, u.abort(err.Error())
		}
		summary.RunCreated = true
		u.env.Log(msgDone, true)
	}
	summary.RunID = runID

	resultIDs, err := u.dir.AddResults(ctx, runID, u.suite)
	if err != nil {
		return summary, u.abort(err.Error())
	}
	summary.ResultIDs = resultIDs

	u.env.Log(msgClosingRun, false)
	if _, err := u.dir.CloseRun(ctx, runID); err != nil {
		return summary, u.abort(err.Error())
	}
	summary.Closed = true
	u.env.Log(msgDone, true)

	return summary, nil
}

// abort logs msg and returns it as an AbortError
func (u *Uploader) abort(msg string) error {
	u.env.Log(msg, true)
	return &AbortError{Message: msg}
}

// resolveSuiteID determines the remote suite and writes it back to the report
func (u *Uploader) resolveSuiteID(ctx context.Context, projectID int, mode domain.SuiteMode) (int, error) {
	if u.suite.SuiteID != nil {
		return u.checkSuiteID(ctx, *u.suite.SuiteID, projectID)
	}

	var (
		suiteID int
		err     error
	)
	switch mode {
	case domain.SuiteModeMultiple:
		suiteID, err = u.createSuite(ctx, projectID)
	case domain.SuiteModeSingleBaselines:
		suiteID, err = u.singleSuiteID(ctx, projectID, true)
	case domain.SuiteModeSingle:
		suiteID, err = u.singleSuiteID(ctx, projectID, false)
	default:
		err = u.abort(unknownSuiteMode(int(mode)))
	}
	if err != nil {
		return 0, err
	}

	u.suite.SuiteID = domain.IntPtr(suiteID)
	return suiteID, nil
}

func (u *Uploader) checkSuiteID(ctx context.Context, suiteID, projectID int) (int, error) {
	exists, err := u.dir.SuiteExists(ctx, suiteID, projectID)
	if err != nil {
		return 0, u.abort(errorCheckingSuite(suiteID, err.Error()))
	}
	if !exists {
		return 0, u.abort(missingSuite(suiteID))
	}
	return suiteID, nil
}

func (u *Uploader) createSuite(ctx context.Context, projectID int) (int, error) {
	if !u.env.Ask(promptCreateSuite(u.suite.Name, u.opts.Project)) {
		return 0, u.abort(noUserAgreement(kindSuite))
	}

	u.env.Log(addingSuite(u.opts.Project), true)
	added, err := u.dir.AddSuite(ctx, projectID, u.suite)
	if err != nil {
		return 0, u.abort(errorAddingSuite(err.Error()))
	}
	if len(added) == 0 {
		return 0, u.abort(errorAddingSuite("no suite returned"))
	}
	return added[0].ID, nil
}

// singleSuiteID adopts the project's only suite. With baselines a project can
// hold several suites and picking one would attribute results to the wrong one.
func (u *Uploader) singleSuiteID(ctx context.Context, projectID int, baselines bool) (int, error) {
	ids, err := u.dir.SuiteIDs(ctx, projectID)
	if err != nil {
		return 0, u.abort(errorGettingSuites(err.Error()))
	}
	if baselines && len(ids) > 1 {
		return 0, u.abort(notUniqueForBaselines(u.opts.Project))
	}
	if len(ids) == 0 {
		return 0, u.abort(noSuitesInProject(u.opts.Project))
	}
	return ids[0], nil
}

func (u *Uploader) addMissingSections(ctx context.Context, projectID int) ([]domain.RemoteSection, error) {
	missing, err := u.dir.MissingSections(ctx, projectID, u.suite)
	if err != nil {
		return nil, u.abort(err.Error())
	}
	if len(missing) == 0 {
		return nil, nil
	}

	if !u.env.Ask(promptCreateSections(u.opts.Project)) {
		return nil, u.abort(noUserAgreement(kindSections))
	}

	u.env.Log(msgAddingSections, true)
	added, err := u.dir.AddSections(ctx, projectID, u.suite)
	if err != nil {
		return nil, u.abort(err.Error())
	}
	return added, nil
}

func (u *Uploader) addMissingCases(ctx context.Context, projectID int) ([]domain.RemoteCase, error) {
	missing, err := u.dir.MissingCases(ctx, projectID, u.suite)
	if err != nil {
		return nil, u.abort(err.Error())
	}
	if len(missing) == 0 {
		return nil, nil
	}

	if !u.env.Ask(promptCreateCases(u.opts.Project)) {
		return nil, u.abort(noUserAgreement(kindCases))
	}

	u.env.Log(msgAddingCases, true)
	added, err := u.dir.AddCases(ctx, u.suite)
	if err != nil {
		return nil, u.abort(err.Error())
	}
	return added, nil
}

// String summarizes the outcome for notifications and history
func (s *Summary) String() string {
	return fmt.Sprintf("project %d, suite %d, run %d: %d results, %d sections and %d cases created",
		s.ProjectID, s.SuiteID, s.RunID, len(s.ResultIDs), len(s.AddedSections), len(s.AddedCases))
}
