package hosting

import (
	"context"
	"fmt"

	"github.com/limaronaldo/orc-task/internal/task"
	"github.com/limaronaldo/orc-task/internal/taskdriver"
)

// ProviderFactory resolves the hosting.Provider for a task's repo. It
// exists so Collaborator can look up a fresh provider per call instead of
// binding to a single repo at construction time — a task driver runs tasks
// against whatever repos its store hands it.
type ProviderFactory func(repo string) (Provider, error)

// NewProviderFactory builds a ProviderFactory bound to cfg — the provider
// type, base URL, and token env var are the same for every repo a given
// deployment drives (one config, one hosting account).
func NewProviderFactory(cfg Config) ProviderFactory {
	return func(repo string) (Provider, error) {
		return NewProvider(repo, cfg)
	}
}

// Collaborator adapts a hosting Provider to taskdriver.PRCreator, opening
// a pull request for a task whose tests have passed.
type Collaborator struct {
	providerFor ProviderFactory
	labels      []string
}

// NewCollaborator builds a Collaborator. labels are applied to every PR it
// opens (e.g. an "auto-dev" marker label).
func NewCollaborator(providerFor ProviderFactory, labels ...string) *Collaborator {
	return &Collaborator{providerFor: providerFor, labels: labels}
}

var _ taskdriver.PRCreator = (*Collaborator)(nil)

// OpenPR implements taskdriver.PRCreator.
func (c *Collaborator) OpenPR(ctx context.Context, t *task.Task) (int, string, error) {
	provider, err := c.providerFor(t.Repo)
	if err != nil {
		return 0, "", fmt.Errorf("resolve hosting provider: %w", err)
	}

	pr, err := provider.CreatePR(ctx, PRCreateOptions{
		Title:  fmt.Sprintf("%s (#%d)", t.Title, t.IssueNumber),
		Body:   prBody(t),
		Head:   t.BranchName,
		Base:   t.BaseBranch,
		Labels: c.labels,
	})
	if err != nil {
		return 0, "", fmt.Errorf("create PR: %w", err)
	}
	return pr.Number, pr.HTMLURL, nil
}

// prBody renders the PR description from the task's issue body, its commit
// message and a trailing "Closes #N" line — there is no separate "PR
// description" field on Task.
func prBody(t *task.Task) string {
	body := t.Body
	if t.CommitMessage != "" {
		if body != "" {
			body += "\n\n"
		}
		body += t.CommitMessage
	}
	body += fmt.Sprintf("\n\nCloses #%d", t.IssueNumber)
	return body
}
