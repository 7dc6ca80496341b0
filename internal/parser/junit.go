package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hochfrequenz/trupload/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrNoTestSuites is returned when a document has neither a <testsuites> nor a <testsuite> root
var ErrNoTestSuites = errors.New("no <testsuites> or <testsuite> root element")

type xmlTestSuites struct {
	ID     string         `xml:"id,attr"`
	Name   string         `xml:"name,attr"`
	Time   string         `xml:"time,attr"`
	Suites []xmlTestSuite `xml:"testsuite"`
}

type xmlTestSuite struct {
	ID         string         `xml:"id,attr"`
	Name       string         `xml:"name,attr"`
	Time       string         `xml:"time,attr"`
	Properties []xmlProperty  `xml:"properties>property"`
	Cases      []xmlTestCase  `xml:"testcase"`
	Suites     []xmlTestSuite `xml:"testsuite"`
}

type xmlProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xmlTestCase struct {
	ID        string      `xml:"id,attr"`
	Name      string      `xml:"name,attr"`
	ClassName string      `xml:"classname,attr"`
	Time      string      `xml:"time,attr"`
	Failures  []xmlResult `xml:"failure"`
	Errors    []xmlResult `xml:"error"`
	Skipped   []xmlResult `xml:"skipped"`
}

type xmlResult struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Text    string `xml:",chardata"`
}

// ParseFile parses a JUnit XML report from disk
func ParseFile(path string) (*domain.Suite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	suite, err := Parse(f, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	suite.Source = path
	return suite, nil
}

// Parse reads a JUnit XML document. fallbackName names the suite when the
// root element carries no name attribute.
func Parse(r io.Reader, fallbackName string) (*domain.Suite, error) {
	dec := xml.NewDecoder(r)

	root, err := firstElement(dec)
	if err != nil {
		return nil, err
	}

	var doc xmlTestSuites
	switch root.Name.Local {
	case "testsuites":
		if err := dec.DecodeElement(&doc, &root); err != nil {
			return nil, fmt.Errorf("decoding testsuites: %w", err)
		}
	case "testsuite":
		var single xmlTestSuite
		if err := dec.DecodeElement(&single, &root); err != nil {
			return nil, fmt.Errorf("decoding testsuite: %w", err)
		}
		doc.Suites = []xmlTestSuite{single}
	default:
		return nil, ErrNoTestSuites
	}

	suite := &domain.Suite{
		ID:   doc.ID,
		Name: doc.Name,
	}
	if suite.Name == "" {
		suite.Name = fallbackName
	}

	for _, xs := range flatten(doc.Suites) {
		section := toSection(xs)
		for _, c := range section.Cases {
			suite.Time = suite.Time.Add(c.Time)
		}
		suite.Sections = append(suite.Sections, section)
	}

	return suite, nil
}

// firstElement skips the prolog and returns the root start element
func firstElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return xml.StartElement{}, ErrNoTestSuites
		}
		if err != nil {
			return xml.StartElement{}, fmt.Errorf("reading xml: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

// flatten turns nested <testsuite> elements into a flat list, dropping
// container suites that hold no test cases themselves
func flatten(suites []xmlTestSuite) []xmlTestSuite {
	var out []xmlTestSuite
	for _, s := range suites {
		if len(s.Cases) > 0 || len(s.Suites) == 0 {
			out = append(out, s)
		}
		out = append(out, flatten(s.Suites)...)
	}
	return out
}

func toSection(xs xmlTestSuite) *domain.Section {
	section := &domain.Section{
		ID:   xs.ID,
		Name: xs.Name,
		Time: parseTime(xs.Time),
	}
	for _, p := range xs.Properties {
		section.Properties = append(section.Properties, domain.Property{Name: p.Name, Value: p.Value})
	}
	for _, xc := range xs.Cases {
		section.Cases = append(section.Cases, toCase(xc))
	}
	return section
}

func toCase(xc xmlTestCase) *domain.Case {
	c := &domain.Case{
		Name:      xc.Name,
		ClassName: xc.ClassName,
		CaseID:    ParseCaseID(xc.ID),
		Time:      parseTime(xc.Time),
		Status:    domain.StatusPassed,
	}

	for _, f := range xc.Failures {
		c.Results = append(c.Results, toResult("failure", f))
	}
	for _, e := range xc.Errors {
		c.Results = append(c.Results, toResult("error", e))
	}
	for _, s := range xc.Skipped {
		c.Results = append(c.Results, toResult("skipped", s))
	}

	switch {
	case len(xc.Failures) > 0 || len(xc.Errors) > 0:
		c.Status = domain.StatusFailed
	case len(xc.Skipped) > 0:
		c.Status = domain.StatusSkipped
	}
	return c
}

func toResult(tag string, r xmlResult) domain.Result {
	return domain.Result{
		Message: r.Message,
		Tag:     tag,
		Text:    r.Text,
		Type:    r.Type,
	}
}

// ParseCaseID accepts "123" or "C123" and returns nil for anything else
func ParseCaseID(s string) *int {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "C"), "c")
	if s == "" {
		return nil
	}
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

func parseTime(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
