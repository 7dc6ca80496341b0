package uploader

import "fmt"

const (
	msgCreatingRun    = "Creating test run."
	msgClosingRun     = "Closing test run."
	msgDone           = "Done."
	msgAddingSections = "Adding missing sections to the suite."
	msgAddingCases    = "Adding missing test cases to the suite."
)

// Entity kinds named in "no user agreement" messages
const (
	kindSuite    = "suite"
	kindSections = "sections"
	kindCases    = "test cases"
)

func errorCheckingProject(msg string) string {
	return fmt.Sprintf("Error detected while checking a project: '%s'", msg)
}

func errorCheckingSuite(suiteID int, msg string) string {
	return fmt.Sprintf("Error detected while checking suite with ID '%d': '%s'", suiteID, msg)
}

func errorGettingSuites(msg string) string {
	return fmt.Sprintf("Error detected while getting suites: '%s'", msg)
}

func errorAddingSuite(msg string) string {
	return fmt.Sprintf("Error detected while adding suite: '%s'", msg)
}

func missingSuite(suiteID int) string {
	return fmt.Sprintf("Suite with ID '%d' does not exist in TestRail.", suiteID)
}

func notUniqueForBaselines(project string) string {
	return fmt.Sprintf("One or more baselines created under '%s' (single suite with baseline project). "+
		"Please provide suite ID by specifying --suite-id.", project)
}

func noSuitesInProject(project string) string {
	return fmt.Sprintf("No suites found in project '%s'.", project)
}

func unknownSuiteMode(mode int) string {
	return fmt.Sprintf("Project uses unknown suite mode: %d", mode)
}

func noUserAgreement(kind string) string {
	return fmt.Sprintf("User did not agree to create '%s' automatically. Exiting.", kind)
}

func addingSuite(project string) string {
	return fmt.Sprintf("Adding missing suites to project %s.", project)
}

func promptCreateSuite(suite, project string) string {
	return fmt.Sprintf("Suite '%s' does not exist in project %s. Would you like to create it?", suite, project)
}

func promptCreateSections(project string) string {
	return fmt.Sprintf("There are sections missing in project %s. Would you like to add them?", project)
}

func promptCreateCases(project string) string {
	return fmt.Sprintf("There are test cases missing in project %s. Would you like to add them?", project)
}
