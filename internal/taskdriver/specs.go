package taskdriver

import (
	"strings"

	"github.com/limaronaldo/orc-task/internal/modelselect"
	"github.com/limaronaldo/orc-task/internal/stagehandler"
	"github.com/limaronaldo/orc-task/internal/task"
	"github.com/limaronaldo/orc-task/internal/taskerr"
	"github.com/limaronaldo/orc-task/internal/taskstate"
)

// actionSpec binds one driver Action to the handler kind it invokes, the
// model-selector stage it maps to, its precondition check, input/output
// projection, and where the task lands on success or on a recoverable
// content failure (§4.5).
type actionSpec struct {
	kind              stagehandler.Kind
	stage             modelselect.Stage
	successStatus     taskstate.Status
	successEvent      task.EventType
	retryStatus       taskstate.Status // non-empty if a failed attempt moves status (e.g. to FIXING)
	requiresBreakdown func(*task.Task) bool
	checkPreconditions func(*task.Task) *taskerr.Error
	buildInput         func(*task.Task, string) stagehandler.Input
	applyOutput        func(*task.Task, stagehandler.Output)
}

var actionSpecs = map[taskstate.Action]actionSpec{
	taskstate.ActionPlan: {
		kind:          stagehandler.KindPlan,
		stage:         modelselect.StagePlan,
		successStatus: taskstate.StatusPlanningDone,
		successEvent:  task.EventPlanned,
		checkPreconditions: func(t *task.Task) *taskerr.Error {
			if strings.TrimSpace(t.Body) == "" {
				return taskerr.New(taskerr.CodePreconditionViolation, "PLAN requires a non-empty issue body")
			}
			return nil
		},
		buildInput: func(t *task.Task, repoContext string) stagehandler.Input {
			return stagehandler.Input{Title: t.Title, Body: t.Body, RepoContext: repoContext}
		},
		applyOutput: func(t *task.Task, out stagehandler.Output) {
			t.DefinitionOfDone = out.DefinitionOfDone
			t.Plan = out.Plan
			t.TargetFiles = out.TargetFiles
			t.EstimatedComplexity = out.EstimatedComplexity
			t.EstimatedEffort = out.EstimatedEffort
		},
	},

	taskstate.ActionCode: {
		kind:          stagehandler.KindCode,
		stage:         modelselect.StageCode,
		successStatus: taskstate.StatusCodingDone,
		successEvent:  task.EventCoded,
		requiresBreakdown: func(t *task.Task) bool {
			return task.RequiresBreakdown(t.EstimatedComplexity)
		},
		checkPreconditions: func(t *task.Task) *taskerr.Error {
			if len(t.Plan) == 0 || len(t.TargetFiles) == 0 {
				return taskerr.New(taskerr.CodePreconditionViolation, "CODE requires a non-empty plan and target files")
			}
			return nil
		},
		buildInput: func(t *task.Task, repoContext string) stagehandler.Input {
			return stagehandler.Input{
				Plan: t.Plan, DefinitionOfDone: t.DefinitionOfDone, TargetFiles: t.TargetFiles, RepoContext: repoContext,
			}
		},
		applyOutput: func(t *task.Task, out stagehandler.Output) {
			t.CurrentDiff = out.Diff
			t.CommitMessage = out.CommitMessage
		},
	},

	taskstate.ActionReview: {
		kind:          stagehandler.KindReview,
		stage:         modelselect.StageReview,
		successStatus: taskstate.StatusReviewApproved, // overridden by applyOutput below when rejected
		successEvent:  task.EventReviewed,
		checkPreconditions: func(t *task.Task) *taskerr.Error {
			if strings.TrimSpace(t.CurrentDiff) == "" {
				return taskerr.New(taskerr.CodePreconditionViolation, "REVIEW requires a current diff")
			}
			return nil
		},
		buildInput: func(t *task.Task, repoContext string) stagehandler.Input {
			return stagehandler.Input{Title: t.Title, Body: t.Body, Plan: t.Plan, CurrentDiff: t.CurrentDiff, RepoContext: repoContext}
		},
		applyOutput: func(t *task.Task, out stagehandler.Output) {
			switch out.Verdict {
			case stagehandler.VerdictApprove:
				t.Status = taskstate.StatusReviewApproved
			default:
				t.Status = taskstate.StatusReviewRejected
				t.LastError = out.Summary
			}
		},
	},

	taskstate.ActionFix: {
		kind:          stagehandler.KindFix,
		stage:         modelselect.StageFix,
		successStatus: taskstate.StatusCodingDone,
		successEvent:  task.EventFixed,
		checkPreconditions: func(t *task.Task) *taskerr.Error {
			if t.LastError == "" {
				return taskerr.New(taskerr.CodePreconditionViolation, "FIX requires a last error or test-result context")
			}
			return nil
		},
		buildInput: func(t *task.Task, repoContext string) stagehandler.Input {
			return stagehandler.Input{
				DefinitionOfDone: t.DefinitionOfDone, Plan: t.Plan, CurrentDiff: t.CurrentDiff,
				ErrorLogs: t.LastError, RepoContext: repoContext,
			}
		},
		applyOutput: func(t *task.Task, out stagehandler.Output) {
			t.CurrentDiff = out.Diff
			t.CommitMessage = out.CommitMessage
			t.LastError = ""
		},
	},

}
