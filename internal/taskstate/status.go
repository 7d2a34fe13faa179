// Package taskstate defines the task status enum and the exhaustive
// transition table the task store checks on every status write.
package taskstate

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusNew            Status = "NEW"
	StatusPlanning       Status = "PLANNING"
	StatusPlanningDone   Status = "PLANNING_DONE"
	StatusCoding         Status = "CODING"
	StatusCodingDone     Status = "CODING_DONE"
	StatusReviewing      Status = "REVIEWING"
	StatusReviewApproved Status = "REVIEW_APPROVED"
	StatusReviewRejected Status = "REVIEW_REJECTED"
	StatusTesting        Status = "TESTING"
	StatusTestsPassed    Status = "TESTS_PASSED"
	StatusTestsFailed    Status = "TESTS_FAILED"
	StatusFixing         Status = "FIXING"
	StatusPRCreated      Status = "PR_CREATED"
	StatusWaitingHuman   Status = "WAITING_HUMAN"
	StatusWaitingBatch   Status = "WAITING_BATCH"
	StatusCompleted      Status = "COMPLETED"
	StatusFailed         Status = "FAILED"
)

// validStatuses is the membership set, following the reference repo's
// map-of-valid-values idiom used for its own enum types.
var validStatuses = map[Status]bool{
	StatusNew: true, StatusPlanning: true, StatusPlanningDone: true,
	StatusCoding: true, StatusCodingDone: true, StatusReviewing: true,
	StatusReviewApproved: true, StatusReviewRejected: true, StatusTesting: true,
	StatusTestsPassed: true, StatusTestsFailed: true, StatusFixing: true,
	StatusPRCreated: true, StatusWaitingHuman: true, StatusWaitingBatch: true,
	StatusCompleted: true, StatusFailed: true,
}

// IsValidStatus reports whether s is a known status.
func IsValidStatus(s Status) bool {
	return validStatuses[s]
}

// AllStatuses lists every known status, for callers (the HTTP list
// endpoint) that need to query across the entire lifecycle.
var AllStatuses = []Status{
	StatusNew, StatusPlanning, StatusPlanningDone,
	StatusCoding, StatusCodingDone, StatusReviewing,
	StatusReviewApproved, StatusReviewRejected, StatusTesting,
	StatusTestsPassed, StatusTestsFailed, StatusFixing,
	StatusPRCreated, StatusWaitingHuman, StatusWaitingBatch,
	StatusCompleted, StatusFailed,
}

// terminalStatuses are the statuses a task never leaves.
var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusFailed:    true,
}

// IsTerminal reports whether s is a terminal status.
func IsTerminal(s Status) bool {
	return terminalStatuses[s]
}

// suspensionStatuses are the statuses where the driver yields and waits
// for an external event to reawaken the task.
var suspensionStatuses = map[Status]bool{
	StatusWaitingHuman: true,
	StatusWaitingBatch: true,
	StatusPRCreated:    true,
}

// IsSuspended reports whether s is a suspension point.
func IsSuspended(s Status) bool {
	return suspensionStatuses[s]
}

// transitions is the exhaustive allowed-transition table from §4.1. It
// keeps the original mid-stage hops (NEW->PLANNING->PLANNING_DONE, and so
// on) alongside the direct hops the single-step driver actually persists —
// Step never itself sets a task to PLANNING/CODING/REVIEWING/FIXING, it
// jumps straight from one stage's entry status to the next one's. Each of
// the five LLM-stage entry statuses (NEW, PLANNING_DONE, CODING_DONE,
// REVIEW_REJECTED, TESTS_FAILED) can also move to WAITING_HUMAN (the driver
// itself routes there only from PLANNING_DONE, when the model selector
// calls for a breakdown of the CODE stage; the table permits it from the
// other entry statuses as well) or FAILED (a driver-level fatal or a budget/step-limit timeout can
// strike at any stage entry point).
var transitions = map[Status]map[Status]bool{
	StatusNew:            {StatusPlanning: true, StatusPlanningDone: true, StatusWaitingHuman: true, StatusFailed: true},
	StatusPlanning:       {StatusPlanningDone: true, StatusFailed: true},
	StatusPlanningDone:   {StatusCoding: true, StatusCodingDone: true, StatusWaitingHuman: true, StatusFailed: true},
	StatusCoding:         {StatusCodingDone: true, StatusFailed: true},
	StatusCodingDone:     {StatusReviewing: true, StatusReviewApproved: true, StatusReviewRejected: true, StatusWaitingHuman: true, StatusFailed: true},
	StatusReviewing:      {StatusReviewApproved: true, StatusReviewRejected: true, StatusFailed: true},
	StatusReviewRejected: {StatusFixing: true, StatusCodingDone: true, StatusWaitingHuman: true, StatusFailed: true},
	StatusReviewApproved: {StatusWaitingBatch: true, StatusTesting: true, StatusTestsPassed: true, StatusTestsFailed: true, StatusFailed: true},
	StatusWaitingBatch:   {StatusTesting: true, StatusReviewApproved: true},
	StatusTesting:        {StatusTestsPassed: true, StatusTestsFailed: true},
	StatusTestsFailed:    {StatusFixing: true, StatusCodingDone: true, StatusWaitingHuman: true, StatusFailed: true},
	StatusFixing:         {StatusCodingDone: true, StatusFailed: true},
	StatusTestsPassed:    {StatusPRCreated: true, StatusFailed: true},
	StatusPRCreated:      {StatusWaitingHuman: true},
	StatusWaitingHuman:   {StatusCompleted: true},
}

// Transition reports whether moving from `from` to `to` is allowed.
// It is a pure predicate with no side effects; the task store's UpdateTask
// calls it before writing any status change and rejects a false result as
// InvalidStateTransition.
func Transition(from, to Status) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// Action is the next step the driver should take for a task in a given status.
type Action string

const (
	ActionPlan  Action = "PLAN"
	ActionCode  Action = "CODE"
	ActionReview Action = "REVIEW"
	ActionTest  Action = "TEST"
	ActionFix   Action = "FIX"
	ActionOpenPR Action = "OPEN_PR"
	ActionWait  Action = "WAIT"
	ActionDone  Action = "DONE"
	ActionFail  Action = "FAIL"
)

// NextAction returns the action the driver should perform for a task
// currently in status s. Terminal and suspension states return WAIT/DONE/FAIL.
func NextAction(s Status) Action {
	switch s {
	case StatusNew:
		return ActionPlan
	case StatusPlanningDone:
		return ActionCode
	case StatusCodingDone:
		return ActionReview
	case StatusReviewApproved:
		return ActionTest
	case StatusWaitingBatch:
		return ActionWait
	case StatusReviewRejected, StatusTestsFailed:
		return ActionFix
	case StatusFixing:
		return ActionReview
	case StatusTestsPassed:
		return ActionOpenPR
	case StatusPRCreated, StatusWaitingHuman:
		return ActionWait
	case StatusCompleted:
		return ActionDone
	case StatusFailed:
		return ActionFail
	case StatusPlanning, StatusCoding, StatusReviewing, StatusTesting:
		// Mid-stage statuses: Step never sets PLANNING, CODING or
		// REVIEWING (it jumps between stage entry statuses), and TESTING is
		// set by batch processing, not by Step; surfaced here only for
		// completeness.
		return ActionWait
	default:
		return ActionWait
	}
}

// IsAttemptReentry reports whether moving into `to` from `from` counts as a
// new attempt, per §4.1: "An attempt is counted each time FIXING or CODING
// re-enters after a failure."
func IsAttemptReentry(from, to Status) bool {
	if to == StatusFixing {
		return true
	}
	if to == StatusCoding && from != StatusPlanningDone {
		return true
	}
	return false
}
