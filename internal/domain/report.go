package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Status is a TestRail result status id
type Status int

const (
	StatusPassed  Status = 1
	StatusBlocked Status = 2
	StatusRetest  Status = 4
	StatusFailed  Status = 5

	// StatusSkipped is reported as "retest" so skipped cases stay visible in the run
	StatusSkipped = StatusRetest
)

// String returns a human readable status name
func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusBlocked:
		return "blocked"
	case StatusRetest:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Suite is the root of a parsed report. SuiteID stays nil until the
// remote suite is resolved.
type Suite struct {
	ID       string
	Name     string
	SuiteID  *int
	Time     decimal.Decimal
	Sections []*Section
	Source   string // report file the suite was parsed from
}

// Section maps a <testsuite> element to a TestRail section
type Section struct {
	ID         string // raw id attribute from the report, metadata only
	Name       string
	SectionID  *int
	Time       decimal.Decimal
	Properties []Property
	Cases      []*Case
}

// Property is a <property> entry attached to a section
type Property struct {
	Name  string
	Value string
}

// Description renders the property the way it is shown in a run description
func (p Property) Description() string {
	return fmt.Sprintf("%s: %s", p.Name, p.Value)
}

// Case maps a <testcase> element to a TestRail case and its result
type Case struct {
	Name      string
	ClassName string
	CaseID    *int
	Time      decimal.Decimal
	Status    Status
	Results   []Result
}

// Result is a failure, error or skipped child of a test case
type Result struct {
	Message string
	Tag     string
	Text    string
	Type    string
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}

// CaseCount returns the number of cases across all sections
func (s *Suite) CaseCount() int {
	n := 0
	for _, sec := range s.Sections {
		n += len(sec.Cases)
	}
	return n
}

// CaseIDs returns the remote ids of all cases that have one, in report order
func (s *Suite) CaseIDs() []int {
	var ids []int
	for _, sec := range s.Sections {
		for _, c := range sec.Cases {
			if c.CaseID != nil {
				ids = append(ids, *c.CaseID)
			}
		}
	}
	return ids
}

// IsResolved reports whether the suite, every section and every case carry a remote id
func (s *Suite) IsResolved() bool {
	if s.SuiteID == nil {
		return false
	}
	for _, sec := range s.Sections {
		if sec.SectionID == nil {
			return false
		}
		for _, c := range sec.Cases {
			if c.CaseID == nil {
				return false
			}
		}
	}
	return true
}

// StatusCounts tallies cases per status
func (s *Suite) StatusCounts() map[Status]int {
	counts := make(map[Status]int)
	for _, sec := range s.Sections {
		for _, c := range sec.Cases {
			counts[c.Status]++
		}
	}
	return counts
}
