package remote

import (
	"fmt"
	"strings"

	"github.com/hochfrequenz/trupload/internal/domain"
)

// caseResult is one entry of an add_results_for_cases payload
type caseResult struct {
	CaseID   int    `json:"case_id"`
	StatusID int    `json:"status_id"`
	Comment  string `json:"comment,omitempty"`
	Elapsed  string `json:"elapsed,omitempty"`
}

// buildResults converts every case with an id into a result entry
func buildResults(suite *domain.Suite) []caseResult {
	var results []caseResult
	for _, sec := range suite.Sections {
		for _, c := range sec.Cases {
			if c.CaseID == nil {
				continue
			}
			results = append(results, caseResult{
				CaseID:   *c.CaseID,
				StatusID: int(c.Status),
				Comment:  resultComment(c),
				Elapsed:  elapsed(c),
			})
		}
	}
	return results
}

// elapsed rounds the case time up to whole seconds, TestRail rejects "0s"
func elapsed(c *domain.Case) string {
	secs := c.Time.Ceil().IntPart()
	if secs <= 0 {
		return ""
	}
	return fmt.Sprintf("%ds", secs)
}

// resultComment renders failure, error and skipped details as the result comment
func resultComment(c *domain.Case) string {
	var parts []string
	for _, r := range c.Results {
		head := r.Tag
		if r.Type != "" {
			head += " (" + r.Type + ")"
		}
		if r.Message != "" {
			head += ": " + r.Message
		}
		parts = append(parts, head)
		if text := strings.TrimSpace(r.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}
