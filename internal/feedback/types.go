// Package feedback turns authenticated in-app feedback into issues on an
// external tracker, under a per-user submission quota.
package feedback

import (
	"context"
	"strings"
)

// Type is the kind of feedback being submitted.
type Type string

const (
	TypeBug     Type = "bug"
	TypeFeature Type = "feature"
)

// Types lists every accepted feedback type.
var Types = []Type{TypeBug, TypeFeature}

// ParseType returns the Type named by s.
func ParseType(s string) (Type, bool) {
	switch t := Type(s); t {
	case TypeBug, TypeFeature:
		return t, true
	}
	return "", false
}

// Label is the human readable name used in issue titles and headings.
func (t Type) Label() string {
	switch t {
	case TypeBug:
		return "Bug Report"
	case TypeFeature:
		return "Feature Request"
	}
	return ""
}

// Emoji prefixes the issue body heading.
func (t Type) Emoji() string {
	switch t {
	case TypeBug:
		return "🐛"
	case TypeFeature:
		return "💡"
	}
	return ""
}

// IssueLabels are the tracker labels applied to the created issue.
func (t Type) IssueLabels() []string {
	switch t {
	case TypeBug:
		return []string{"bug"}
	case TypeFeature:
		return []string{"enhancement"}
	}
	return nil
}

// Submission is a validated feedback request body.
type Submission struct {
	Type        Type   `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CurrentURL  string `json:"currentUrl,omitempty"`
}

const unknownReporter = "Unknown"

// Reporter identifies the authenticated submitter.
type Reporter struct {
	ID    string
	Name  string
	Email string
}

// DisplayName returns the reporter name or "Unknown".
func (r Reporter) DisplayName() string {
	if strings.TrimSpace(r.Name) == "" {
		return unknownReporter
	}
	return r.Name
}

// DisplayEmail returns the reporter email or "Unknown".
func (r Reporter) DisplayEmail() string {
	if strings.TrimSpace(r.Email) == "" {
		return unknownReporter
	}
	return r.Email
}

// IssueDraft is the issue to be created on the tracker.
type IssueDraft struct {
	Title  string
	Body   string
	Labels []string
}

// Settings holds the integration credentials.
type Settings struct {
	Token      string
	Repository string
}

// Enabled reports whether both settings are present.
func (s Settings) Enabled() bool {
	return strings.TrimSpace(s.Token) != "" && strings.TrimSpace(s.Repository) != ""
}

// Target splits Repository into owner and repo. ok is false unless the
// value has exactly the form owner/repo.
func (s Settings) Target() (owner, repo string, ok bool) {
	owner, repo, found := strings.Cut(strings.TrimSpace(s.Repository), "/")
	if !found || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", false
	}
	return owner, repo, true
}

// SettingsSource supplies the current integration settings. It is read on
// every request so reloaded configuration applies immediately.
type SettingsSource interface {
	FeedbackSettings() Settings
}

// SettingsFunc adapts a function to SettingsSource.
type SettingsFunc func() Settings

func (f SettingsFunc) FeedbackSettings() Settings { return f() }

// IssueTracker creates issues on an external tracker and returns the
// issue's web URL.
type IssueTracker interface {
	CreateIssue(ctx context.Context, token, owner, repo string, draft IssueDraft) (string, error)
}

// namedTracker is implemented by trackers that label their metrics.
type namedTracker interface {
	Name() string
}
