package feedback

import (
	"strings"
	"time"
)

// SubmittedLayout renders the submission time as ISO-8601 UTC with
// millisecond precision.
const SubmittedLayout = "2006-01-02T15:04:05.000Z07:00"

const submittedFooter = "_Submitted via in-app feedback_"

// BuildIssueDraft renders a submission as a tracker issue.
func BuildIssueDraft(sub Submission, reporter Reporter, now time.Time) IssueDraft {
	label := sub.Type.Label()

	lines := []string{
		"## " + sub.Type.Emoji() + " " + label,
		"",
		sub.Description,
		"",
		"---",
		"",
		"### Reporter Context",
		"",
		"| Field | Value |",
		"|-------|-------|",
		"| **Reporter** | " + reporter.DisplayName() + " |",
		"| **Email** | " + reporter.DisplayEmail() + " |",
	}
	if sub.CurrentURL != "" {
		lines = append(lines, "| **Page** | "+sub.CurrentURL+" |")
	}
	lines = append(lines,
		"| **Submitted** | "+now.UTC().Format(SubmittedLayout)+" |",
		"",
		submittedFooter,
	)

	return IssueDraft{
		Title:  "[" + label + "] " + sub.Title,
		Body:   strings.Join(lines, "\n"),
		Labels: sub.Type.IssueLabels(),
	}
}
