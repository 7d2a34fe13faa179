// Package ingress normalizes webhook events — label triggers, check-run
// results and PR merges — into Tasks and Jobs through one synchronous entry
// point, so the allowlist and label-trigger rules are evaluated in exactly
// one place (§4.8). The direct API handlers create tasks and jobs without
// going through this package.
package ingress

// Kind identifies the external event being normalized.
type Kind string

const (
	// KindIssueLabeled fires when a label is applied to an issue. Only
	// the configured auto-dev and batch labels trigger anything; any
	// other label is ignored.
	KindIssueLabeled Kind = "issue_labeled"
	// KindCheckRunCompleted fires when CI reports a check-run result for
	// a branch the orchestrator owns.
	KindCheckRunCompleted Kind = "check_run_completed"
	// KindPRMerged fires when a pull request the orchestrator opened is
	// merged.
	KindPRMerged Kind = "pr_merged"
)

// CheckRunPayload carries a completed check-run's outcome for a branch.
type CheckRunPayload struct {
	BranchName string
	// Conclusion is "success" or anything else counts as failure.
	Conclusion string
	Logs       string
}

// PRPayload carries a pull-request event's identifying fields.
type PRPayload struct {
	Number     int
	BranchName string
	Merged     bool
}

// RawEvent is the normalized wire shape the webhook handler translates its
// input into before calling Normalize (§6: `POST /webhooks/source` body is `{type, repo, issue_number?,
// check_run?, pr?}`).
type RawEvent struct {
	Kind        Kind
	Repo        string
	IssueNumber int
	Title       string
	Body        string
	Label       string
	CheckRun    *CheckRunPayload
	PR          *PRPayload
}
