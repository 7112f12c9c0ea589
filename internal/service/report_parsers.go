package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Report formats form a closed set of parsers selected by tag, one per
// external runner. Heterogeneous runner output never leaks past this boundary.
const (
	FormatPytestJSON = "pytest-json"
	FormatRaco       = "raco"
	FormatPlunit     = "plunit"
)

type parsedReport struct {
	Passed int
	Total  int
	Detail map[string]any
}

func parseReport(format string, raw []byte) (parsedReport, error) {
	switch format {
	case FormatPytestJSON:
		return parsePytestJSON(raw)
	case FormatRaco:
		return parseRacoOutput(raw)
	case FormatPlunit:
		return parsePlunitOutput(raw)
	default:
		return parsedReport{}, fmt.Errorf("%w: unknown report format %q", ErrMalformedReport, format)
	}
}

// parsePytestJSON reads pytest --json-report output. A missing summary block
// marks the report truncated; a present summary with zero collected tests is
// the legitimate "no tests executed" state.
func parsePytestJSON(raw []byte) (parsedReport, error) {
	var report struct {
		Summary *struct {
			Passed int `json:"passed"`
			Failed int `json:"failed"`
			Total  int `json:"total"`
		} `json:"summary"`
		Tests []struct {
			NodeID  string `json:"nodeid"`
			Outcome string `json:"outcome"`
		} `json:"tests"`
	}

	if err := json.Unmarshal(raw, &report); err != nil {
		return parsedReport{}, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	if report.Summary == nil {
		return parsedReport{}, fmt.Errorf("%w: pytest report missing summary", ErrMalformedReport)
	}

	total := report.Summary.Total
	if total == 0 {
		total = report.Summary.Passed + report.Summary.Failed
	}

	detail := make(map[string]any, len(report.Tests))
	for _, test := range report.Tests {
		if test.NodeID != "" {
			detail[test.NodeID] = test.Outcome
		}
	}

	return parsedReport{Passed: report.Summary.Passed, Total: total, Detail: detail}, nil
}

var (
	racoPassedRe   = regexp.MustCompile(`(?i)(\d+)\s+tests?\s+passed`)
	racoFailedRe   = regexp.MustCompile(`(?i)(\d+)\s+tests?\s+failed`)
	plunitPassedRe = regexp.MustCompile(`(?i)(\d+)\s+(?:tests?\s+)?passed`)
	plunitFailedRe = regexp.MustCompile(`(?i)(\d+)\s+(?:tests?\s+)?failed`)
)

// parseRacoOutput reads `raco test` text output.
func parseRacoOutput(raw []byte) (parsedReport, error) {
	output := string(raw)

	passed, okPassed := matchCount(racoPassedRe, output)
	failed, okFailed := matchCount(racoFailedRe, output)
	if !okPassed && !okFailed {
		return parsedReport{}, fmt.Errorf("%w: unrecognized raco test output", ErrMalformedReport)
	}

	return parsedReport{
		Passed: passed,
		Total:  passed + failed,
		Detail: map[string]any{"failed": failed},
	}, nil
}

// parsePlunitOutput reads SWI-Prolog plunit text output ("% All N tests passed").
func parsePlunitOutput(raw []byte) (parsedReport, error) {
	var passed, failed int
	var matched bool

	for _, line := range strings.Split(string(raw), "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "passed") {
			if n, ok := matchCount(plunitPassedRe, lower); ok {
				passed = n
				matched = true
			}
		}
		if strings.Contains(lower, "failed") {
			if n, ok := matchCount(plunitFailedRe, lower); ok {
				failed = n
				matched = true
			}
		}
	}

	if !matched {
		return parsedReport{}, fmt.Errorf("%w: unrecognized plunit output", ErrMalformedReport)
	}

	return parsedReport{
		Passed: passed,
		Total:  passed + failed,
		Detail: map[string]any{"failed": failed},
	}, nil
}

func matchCount(re *regexp.Regexp, output string) (int, bool) {
	match := re.FindStringSubmatch(output)
	if match == nil {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
