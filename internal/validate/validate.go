// Package validate checks that every answer bullet is backed by a known
// source.
package validate

import (
	"fmt"
	"strings"

	"askace/internal/logging"
	"askace/internal/types"
)

// PassThreshold is the minimum coverage for a passing answer.
const PassThreshold = 0.95

const MissingCitation = "Bullet missing citation."

// Answer reports citation coverage. A bullet is covered when it has at least
// one citation and all of them name a source label. It never fails.
func Answer(answer *types.AnswerResponse) types.ValidationReport {
	report := types.ValidationReport{Issues: []types.ValidationIssue{}}
	if answer == nil {
		report.Coverage = 0
		return report
	}

	known := make(map[string]bool, len(answer.Sources))
	for _, s := range answer.Sources {
		known[s.Label] = true
	}

	covered := 0
	for i, b := range answer.Bullets {
		idx := i
		if len(b.Citations) == 0 {
			report.Issues = append(report.Issues, types.ValidationIssue{
				Message:     MissingCitation,
				Severity:    types.SeverityError,
				BulletIndex: &idx,
			})
			continue
		}
		var unknown []string
		for _, label := range b.Citations {
			if !known[label] {
				unknown = append(unknown, label)
			}
		}
		if len(unknown) > 0 {
			report.Issues = append(report.Issues, types.ValidationIssue{
				Message:       fmt.Sprintf("Bullet references unknown citations: [%s]", strings.Join(unknown, " ")),
				Severity:      types.SeverityError,
				BulletIndex:   &idx,
				CitationLabel: unknown[0],
			})
			continue
		}
		covered++
	}

	total := len(answer.Bullets)
	if total < 1 {
		total = 1
	}
	report.Coverage = float64(covered) / float64(total)
	report.Passed = report.Coverage >= PassThreshold
	if !report.Passed {
		logging.Get(logging.CategoryValidate).Info("Validation coverage %.2f below threshold", report.Coverage)
	}
	return report
}

// HasMissingCitation reports whether any issue is a missing citation.
func HasMissingCitation(report types.ValidationReport) bool {
	for _, issue := range report.Issues {
		if strings.Contains(strings.ToLower(issue.Message), "missing citation") {
			return true
		}
	}
	return false
}
