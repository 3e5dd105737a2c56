package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/spboyer/wpbench/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one benchmark run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one benchmark test.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitError represents an unexpected error during test execution.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitSkipped marks a test as skipped.
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit converts a run bundle to JUnit XML form. Each selected
// test becomes a test case; errored tests are errors and tests without a
// result are skipped. Benchmarks have no assertions, so failures stay zero.
func ConvertToJUnit(b *models.RunBundle, names map[string]string) *JUnitTestSuites {
	suite := JUnitTestSuite{
		Name:      b.Title,
		Tests:     len(b.SelectedTests),
		Time:      b.TotalTime,
		Timestamp: b.CreatedAt.UTC().Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "run_id", Value: b.ID},
			{Name: "score", Value: b.ScoreString()},
		},
	}

	for _, id := range b.SelectedTests {
		tc := JUnitTestCase{Name: id, Classname: "wpbench." + id}
		if n := names[id]; n != "" {
			tc.Name = n
		}

		res, ok := b.Results[id]
		switch {
		case !ok:
			tc.Skipped = &JUnitSkipped{Message: "no result"}
			suite.Skipped++
		case res.Failed():
			tc.Time = res.Time
			tc.Error = &JUnitError{Message: res.Error, Type: "TestError", Body: formatDetails(res)}
			suite.Errors++
		default:
			tc.Time = res.Time
		}
		suite.TestCases = append(suite.TestCases, tc)
	}

	return &JUnitTestSuites{
		Tests:      suite.Tests,
		Errors:     suite.Errors,
		Time:       suite.Time,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func formatDetails(res models.TestResult) string {
	var out string
	for _, d := range Details(res) {
		out += fmt.Sprintf("%s: %s\n", d.Label, d.Value)
	}
	return out
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(b *models.RunBundle, names map[string]string, path string) error {
	suites := ConvertToJUnit(b, names)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
