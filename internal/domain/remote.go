package domain

import "fmt"

// SuiteMode is the project-level policy governing how suites are organized
type SuiteMode int

const (
	SuiteModeSingle          SuiteMode = 1
	SuiteModeSingleBaselines SuiteMode = 2
	SuiteModeMultiple        SuiteMode = 3
)

// String returns the TestRail name of the suite mode
func (m SuiteMode) String() string {
	switch m {
	case SuiteModeSingle:
		return "single_suite"
	case SuiteModeSingleBaselines:
		return "single_suite_baselines"
	case SuiteModeMultiple:
		return "multiple_suites"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ProjectError classifies the outcome of a project lookup
type ProjectError int

const (
	ProjectFound ProjectError = iota
	ProjectNotFound
	ProjectOtherError
)

// ProjectData is the result of resolving a project by name. ID is only
// usable when Err is ProjectFound.
type ProjectData struct {
	ID        int
	SuiteMode SuiteMode
	Err       ProjectError
	Message   string
}

// Project is a TestRail project as returned by get_projects
type Project struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	SuiteMode SuiteMode `json:"suite_mode"`
}

// RemoteSuite is a suite that exists in TestRail
type RemoteSuite struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ProjectID int    `json:"project_id"`
}

// RemoteSection is a section that exists in TestRail
type RemoteSection struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	SuiteID int    `json:"suite_id"`
}

// RemoteCase is a test case that exists in TestRail
type RemoteCase struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	SectionID int    `json:"section_id"`
}

// TestRun is a TestRail run
type TestRun struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	SuiteID     int    `json:"suite_id"`
	IsCompleted bool   `json:"is_completed"`
	URL         string `json:"url"`
}
