package github

import (
	"context"

	"github.com/feedbackd/feedbackd/internal/feedback"
)

// Tracker exposes Client as a feedback.IssueTracker.
type Tracker struct {
	Client *Client
}

var _ feedback.IssueTracker = (*Tracker)(nil)

// NewTracker wraps client.
func NewTracker(client *Client) *Tracker {
	return &Tracker{Client: client}
}

// Name labels tracker metrics.
func (t *Tracker) Name() string { return "github" }

// CreateIssue files draft and returns the issue's web URL.
func (t *Tracker) CreateIssue(ctx context.Context, token, owner, repo string, draft feedback.IssueDraft) (string, error) {
	issue, err := t.Client.CreateIssue(ctx, token, owner, repo, IssueRequest{
		Title:  draft.Title,
		Body:   draft.Body,
		Labels: draft.Labels,
	})
	if err != nil {
		return "", err
	}
	return issue.HTMLURL, nil
}
