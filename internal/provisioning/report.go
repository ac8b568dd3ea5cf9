package provisioning

// report.go merges runner outcomes with validation rejections into one
// line-ordered report. Rendering stays textual and terminal-friendly; the
// HTTP surface serializes the Report struct directly.

import (
	"fmt"
	"sort"
	"strings"
)

// Report is the merged, render-ready view of one provisioning invocation.
type Report struct {
	DryRun       bool         `json:"dryRun"`
	RowsParsed   int          `json:"rowsParsed"`
	RowsValid    int          `json:"rowsValid"`
	CreatedUsers int          `json:"createdUsers"`
	UpdatedUsers int          `json:"updatedUsers"`
	FailedRows   int          `json:"failedRows"` // runner failures plus validation rejections
	Warnings     []string     `json:"warnings"`
	Outcomes     []RowOutcome `json:"outcomes"`
}

// BuildReport folds validation rejections into the run result as failed
// outcomes and sorts everything by source line number.
func BuildReport(result RunResult, issues []RowIssue, rowsParsed int) Report {
	mode := ModeApplied
	if result.DryRun {
		mode = ModeDryRun
	}

	outcomes := make([]RowOutcome, 0, len(result.Outcomes)+len(issues))
	outcomes = append(outcomes, result.Outcomes...)
	for _, issue := range issues {
		email := issue.Email
		if email == "" {
			email = "unknown"
		}
		outcomes = append(outcomes, RowOutcome{
			LineNumber: issue.LineNumber,
			Email:      email,
			Status:     StatusFailed,
			Mode:       mode,
			Reason:     issue.Reason,
		})
	}

	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].LineNumber < outcomes[j].LineNumber
	})

	return Report{
		DryRun:       result.DryRun,
		RowsParsed:   rowsParsed,
		RowsValid:    rowsParsed - len(issues),
		CreatedUsers: result.CreatedUsers,
		UpdatedUsers: result.UpdatedUsers,
		FailedRows:   result.FailedRows + len(issues),
		Warnings:     result.Warnings,
		Outcomes:     outcomes,
	}
}

// Render formats the report for terminal output.
func (r Report) Render() string {
	var b strings.Builder

	modeLabel := "APPLY"
	if r.DryRun {
		modeLabel = "DRY RUN"
	}

	fmt.Fprintf(&b, "Provisioning mode: %s\n", modeLabel)
	fmt.Fprintf(&b, "Rows parsed: %d\n", r.RowsParsed)
	fmt.Fprintf(&b, "Rows valid: %d\n", r.RowsValid)
	fmt.Fprintf(&b, "Users created: %d\n", r.CreatedUsers)
	fmt.Fprintf(&b, "Users updated: %d\n", r.UpdatedUsers)
	fmt.Fprintf(&b, "Rows failed: %d\n", r.FailedRows)

	if len(r.Warnings) > 0 {
		b.WriteString("Security warnings:\n")
		for _, warning := range r.Warnings {
			fmt.Fprintf(&b, "  - %s\n", warning)
		}
	}

	if len(r.Outcomes) > 0 {
		b.WriteString("Row results:\n")
		for _, outcome := range r.Outcomes {
			b.WriteString(formatOutcome(outcome))
			b.WriteByte('\n')
		}
	}

	return b.String()
}

// formatOutcome renders one row's terminal line. Dry-run successes are
// prefixed with WOULD so a preview never reads like a committed change.
func formatOutcome(outcome RowOutcome) string {
	if outcome.Status == StatusFailed {
		return fmt.Sprintf("  - line %d (%s): FAILED - %s", outcome.LineNumber, outcome.Email, outcome.Reason)
	}

	prefix := ""
	if outcome.Mode == ModeDryRun {
		prefix = "WOULD "
	}
	return fmt.Sprintf("  - line %d (%s): %s%s", outcome.LineNumber, outcome.Email, prefix,
		strings.ToUpper(string(outcome.Status)))
}
