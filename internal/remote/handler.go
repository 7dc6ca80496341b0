// Package remote looks up and creates TestRail projects, suites, sections,
// cases and runs on behalf of the uploader.
package remote

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hochfrequenz/trupload/internal/apiclient"
	"github.com/hochfrequenz/trupload/internal/domain"
)

// API is the subset of apiclient.Client used by the Handler
type API interface {
	Get(ctx context.Context, endpoint string) (*apiclient.Response, error)
	Post(ctx context.Context, endpoint string, payload any) (*apiclient.Response, error)
}

// Handler implements uploader.Directory against the TestRail API. It keeps no
// reference to the suites passed into it.
type Handler struct {
	api API
	log *logrus.Entry
}

// NewHandler creates a Handler. A nil logger discards diagnostics.
func NewHandler(api API, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Handler{api: api, log: logger.WithField("component", "remote")}
}

// ResolveProject finds the project with exactly the given name
func (h *Handler) ResolveProject(ctx context.Context, name string) domain.ProjectData {
	projects, err := getAll[domain.Project](ctx, h.api, "get_projects", "projects")
	if err != nil {
		return domain.ProjectData{Err: domain.ProjectOtherError, Message: err.Error()}
	}

	var matches []domain.Project
	for _, p := range projects {
		if p.Name == name {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 0:
		return domain.ProjectData{
			Err:     domain.ProjectNotFound,
			Message: fmt.Sprintf("%s project doesn't exist.", name),
		}
	case 1:
		h.log.WithFields(logrus.Fields{"project": name, "id": matches[0].ID, "suite_mode": matches[0].SuiteMode}).Debug("resolved project")
		return domain.ProjectData{ID: matches[0].ID, SuiteMode: matches[0].SuiteMode, Err: domain.ProjectFound}
	default:
		return domain.ProjectData{
			Err:     domain.ProjectOtherError,
			Message: fmt.Sprintf("more than one project named %s", name),
		}
	}
}

// SuiteExists reports whether suiteID belongs to the project
func (h *Handler) SuiteExists(ctx context.Context, suiteID, projectID int) (bool, error) {
	suites, err := h.suites(ctx, projectID)
	if err != nil {
		return false, err
	}
	for _, s := range suites {
		if s.ID == suiteID {
			return true, nil
		}
	}
	return false, nil
}

// SuiteIDs lists the ids of all suites in the project
func (h *Handler) SuiteIDs(ctx context.Context, projectID int) ([]int, error) {
	suites, err := h.suites(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(suites))
	for _, s := range suites {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func (h *Handler) suites(ctx context.Context, projectID int) ([]domain.RemoteSuite, error) {
	return getAll[domain.RemoteSuite](ctx, h.api, fmt.Sprintf("get_suites/%d", projectID), "suites")
}

// AddSuite creates a suite named after the report and stores its id on suite
func (h *Handler) AddSuite(ctx context.Context, projectID int, suite *domain.Suite) ([]domain.RemoteSuite, error) {
	resp, err := h.api.Post(ctx, fmt.Sprintf("add_suite/%d", projectID), map[string]any{
		"name": suite.Name,
	})
	if err != nil {
		return nil, err
	}

	var created domain.RemoteSuite
	if err := resp.Decode(&created); err != nil {
		return nil, err
	}
	suite.SuiteID = domain.IntPtr(created.ID)
	h.log.WithFields(logrus.Fields{"suite": created.Name, "id": created.ID}).Debug("added suite")
	return []domain.RemoteSuite{created}, nil
}

// MissingSections matches report sections to remote ones, storing the ids of
// those found, and returns the names of the sections that do not exist yet,
// each name once. A section id that no longer exists remotely is cleared.
func (h *Handler) MissingSections(ctx context.Context, projectID int, suite *domain.Suite) ([]string, error) {
	if suite.SuiteID == nil {
		return nil, fmt.Errorf("suite %q has no TestRail id", suite.Name)
	}

	endpoint := fmt.Sprintf("get_sections/%d&suite_id=%d", projectID, *suite.SuiteID)
	remote, err := getAll[domain.RemoteSection](ctx, h.api, endpoint, "sections")
	if err != nil {
		return nil, err
	}

	ids := make(map[int]bool, len(remote))
	byName := make(map[string]int, len(remote))
	for _, s := range remote {
		ids[s.ID] = true
		if _, ok := byName[s.Name]; !ok {
			byName[s.Name] = s.ID
		}
	}

	var missing []string
	seen := make(map[string]bool)
	for _, sec := range suite.Sections {
		if sec.SectionID != nil && ids[*sec.SectionID] {
			continue
		}
		if id, ok := byName[sec.Name]; ok {
			sec.SectionID = domain.IntPtr(id)
			continue
		}
		sec.SectionID = nil
		if !seen[sec.Name] {
			seen[sec.Name] = true
			missing = append(missing, sec.Name)
		}
	}
	return missing, nil
}

// AddSections creates every section that has no id yet. Sections sharing a
// name are created once and all receive that id.
func (h *Handler) AddSections(ctx context.Context, projectID int, suite *domain.Suite) ([]domain.RemoteSection, error) {
	if suite.SuiteID == nil {
		return nil, fmt.Errorf("suite %q has no TestRail id", suite.Name)
	}

	var added []domain.RemoteSection
	created := make(map[string]int)
	for _, sec := range suite.Sections {
		if sec.SectionID != nil {
			continue
		}
		if id, ok := created[sec.Name]; ok {
			sec.SectionID = domain.IntPtr(id)
			continue
		}
		resp, err := h.api.Post(ctx, fmt.Sprintf("add_section/%d", projectID), map[string]any{
			"name":     sec.Name,
			"suite_id": *suite.SuiteID,
		})
		if err != nil {
			return added, err
		}

		var section domain.RemoteSection
		if err := resp.Decode(&section); err != nil {
			return added, err
		}
		sec.SectionID = domain.IntPtr(section.ID)
		created[sec.Name] = section.ID
		added = append(added, section)
		h.log.WithFields(logrus.Fields{"section": section.Name, "id": section.ID}).Debug("added section")
	}
	return added, nil
}

// MissingCases matches report cases to the cases of their section, by id
// first and title second, and returns the titles of the cases still missing,
// once per remote section. A case id that does not exist in the section is cleared.
func (h *Handler) MissingCases(ctx context.Context, projectID int, suite *domain.Suite) ([]string, error) {
	if suite.SuiteID == nil {
		return nil, fmt.Errorf("suite %q has no TestRail id", suite.Name)
	}

	var missing []string
	seen := make(map[caseKey]bool)
	for _, sec := range suite.Sections {
		if sec.SectionID == nil {
			for _, c := range sec.Cases {
				c.CaseID = nil
				if key := keyFor(sec, c); !seen[key] {
					seen[key] = true
					missing = append(missing, c.Name)
				}
			}
			continue
		}

		endpoint := fmt.Sprintf("get_cases/%d&suite_id=%d&section_id=%d", projectID, *suite.SuiteID, *sec.SectionID)
		remote, err := getAll[domain.RemoteCase](ctx, h.api, endpoint, "cases")
		if err != nil {
			return nil, err
		}

		ids := make(map[int]bool, len(remote))
		byTitle := make(map[string]int, len(remote))
		for _, rc := range remote {
			ids[rc.ID] = true
			if _, ok := byTitle[rc.Title]; !ok {
				byTitle[rc.Title] = rc.ID
			}
		}

		for _, c := range sec.Cases {
			if c.CaseID != nil && ids[*c.CaseID] {
				continue
			}
			if id, ok := byTitle[c.Name]; ok {
				c.CaseID = domain.IntPtr(id)
				continue
			}
			c.CaseID = nil
			if key := keyFor(sec, c); !seen[key] {
				seen[key] = true
				missing = append(missing, c.Name)
			}
		}
	}
	return missing, nil
}

// AddCases creates every case that has no id yet in its section. Cases that
// share a title within one remote section are created once and all receive that id.
func (h *Handler) AddCases(ctx context.Context, suite *domain.Suite) ([]domain.RemoteCase, error) {
	var added []domain.RemoteCase
	created := make(map[caseKey]int)
	for _, sec := range suite.Sections {
		for _, c := range sec.Cases {
			if c.CaseID != nil {
				continue
			}
			if sec.SectionID == nil {
				return added, fmt.Errorf("section %q has no TestRail id", sec.Name)
			}
			key := keyFor(sec, c)
			if id, ok := created[key]; ok {
				c.CaseID = domain.IntPtr(id)
				continue
			}

			resp, err := h.api.Post(ctx, fmt.Sprintf("add_case/%d", *sec.SectionID), map[string]any{
				"title": c.Name,
			})
			if err != nil {
				return added, err
			}

			var rc domain.RemoteCase
			if err := resp.Decode(&rc); err != nil {
				return added, err
			}
			c.CaseID = domain.IntPtr(rc.ID)
			created[key] = rc.ID
			added = append(added, rc)
		}
	}
	h.log.WithField("count", len(added)).Debug("added cases")
	return added, nil
}

// caseKey identifies a case title within a remote section. Sections without
// a remote id yet are told apart by name.
type caseKey struct {
	sectionID   int
	sectionName string
	title       string
}

func keyFor(sec *domain.Section, c *domain.Case) caseKey {
	if sec.SectionID == nil {
		return caseKey{sectionName: sec.Name, title: c.Name}
	}
	return caseKey{sectionID: *sec.SectionID, title: c.Name}
}

// AddRun creates a run restricted to the report's cases and returns its id
func (h *Handler) AddRun(ctx context.Context, projectID int, title string, suite *domain.Suite) (int, error) {
	if suite.SuiteID == nil {
		return 0, fmt.Errorf("suite %q has no TestRail id", suite.Name)
	}

	caseIDs := suite.CaseIDs()
	if caseIDs == nil {
		caseIDs = []int{}
	}
	resp, err := h.api.Post(ctx, fmt.Sprintf("add_run/%d", projectID), map[string]any{
		"name":        title,
		"suite_id":    *suite.SuiteID,
		"include_all": false,
		"case_ids":    caseIDs,
		"description": runDescription(suite),
	})
	if err != nil {
		return 0, err
	}

	var run domain.TestRun
	if err := resp.Decode(&run); err != nil {
		return 0, err
	}
	h.log.WithFields(logrus.Fields{"run": run.ID, "cases": len(caseIDs)}).Debug("added run")
	return run.ID, nil
}

// AddResults uploads one result per case in a single request and returns
// the ids of the created results.
func (h *Handler) AddResults(ctx context.Context, runID int, suite *domain.Suite) ([]int, error) {
	results := buildResults(suite)
	if len(results) == 0 {
		return nil, nil
	}

	resp, err := h.api.Post(ctx, fmt.Sprintf("add_results_for_cases/%d", runID), map[string]any{
		"results": results,
	})
	if err != nil {
		return nil, err
	}

	var created []struct {
		ID int `json:"id"`
	}
	if err := resp.Decode(&created); err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(created))
	for _, r := range created {
		ids = append(ids, r.ID)
	}
	h.log.WithFields(logrus.Fields{"run": runID, "results": len(ids)}).Debug("added results")
	return ids, nil
}

// CloseRun marks the run completed
func (h *Handler) CloseRun(ctx context.Context, runID int) (*domain.TestRun, error) {
	resp, err := h.api.Post(ctx, fmt.Sprintf("close_run/%d", runID), nil)
	if err != nil {
		return nil, err
	}

	var run domain.TestRun
	if err := resp.Decode(&run); err != nil {
		return nil, err
	}
	return &run, nil
}

// runDescription lists section properties, one per line
func runDescription(suite *domain.Suite) string {
	var lines []string
	for _, sec := range suite.Sections {
		for _, p := range sec.Properties {
			lines = append(lines, p.Description())
		}
	}
	return strings.Join(lines, "\n")
}
