package stagehandler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/limaronaldo/orc-task/internal/llmclient"
)

type scriptedClient struct {
	response string
	err      error
}

func (c *scriptedClient) Complete(_ context.Context, _ llmclient.CompletionRequest) (*llmclient.CompletionResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &llmclient.CompletionResponse{Content: c.response}, nil
}

func TestPlannerHandlerRun(t *testing.T) {
	resp, _ := json.Marshal(plannerResponse{
		DefinitionOfDone:    []string{"tests pass"},
		Plan:                []string{"edit foo.go"},
		TargetFiles:         []string{"foo.go"},
		EstimatedComplexity: "M",
		EstimatedEffort:     "medium",
	})
	h := NewPlannerHandler(&scriptedClient{response: string(resp)})

	out, hErr := h.Run(context.Background(), "m1", Input{Title: "fix bug", Body: "details"})
	if hErr != nil {
		t.Fatalf("run: %v", hErr)
	}
	if out.EstimatedComplexity != "M" || len(out.Plan) != 1 {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestPlannerHandlerRejectsUnknownComplexity(t *testing.T) {
	resp, _ := json.Marshal(plannerResponse{EstimatedComplexity: "HUGE"})
	h := NewPlannerHandler(&scriptedClient{response: string(resp)})

	_, hErr := h.Run(context.Background(), "m1", Input{})
	if hErr == nil || hErr.Code != ErrInvalidOutput {
		t.Errorf("expected ErrInvalidOutput, got %v", hErr)
	}
}

func TestCoderHandlerRejectsMalformedDiff(t *testing.T) {
	resp, _ := json.Marshal(coderResponse{Diff: "not a diff", CommitMessage: "x", FilesModified: []string{"a.go"}})
	h := NewCoderHandler(&scriptedClient{response: string(resp)})

	_, hErr := h.Run(context.Background(), "m1", Input{})
	if hErr == nil || hErr.Code != ErrInvalidOutput {
		t.Errorf("expected ErrInvalidOutput for malformed diff, got %v", hErr)
	}
}

func TestCoderHandlerAcceptsValidDiff(t *testing.T) {
	diff := "--- a/foo.go\n+++ b/foo.go\n@@ -1 +1 @@\n-old\n+new\n"
	resp, _ := json.Marshal(coderResponse{Diff: diff, CommitMessage: "fix", FilesModified: []string{"foo.go"}})
	h := NewCoderHandler(&scriptedClient{response: string(resp)})

	out, hErr := h.Run(context.Background(), "m1", Input{})
	if hErr != nil {
		t.Fatalf("run: %v", hErr)
	}
	if out.Diff != diff {
		t.Errorf("expected diff to round-trip, got %q", out.Diff)
	}
}

func TestReviewerHandlerRejectsUnknownVerdict(t *testing.T) {
	resp, _ := json.Marshal(reviewerResponse{Verdict: "MAYBE"})
	h := NewReviewerHandler(&scriptedClient{response: string(resp)})

	_, hErr := h.Run(context.Background(), "m1", Input{})
	if hErr == nil || hErr.Code != ErrInvalidOutput {
		t.Errorf("expected ErrInvalidOutput, got %v", hErr)
	}
}

func TestReviewerHandlerApprove(t *testing.T) {
	resp, _ := json.Marshal(reviewerResponse{Verdict: "APPROVE", Summary: "looks good"})
	h := NewReviewerHandler(&scriptedClient{response: string(resp)})

	out, hErr := h.Run(context.Background(), "m1", Input{})
	if hErr != nil {
		t.Fatalf("run: %v", hErr)
	}
	if out.Verdict != VerdictApprove {
		t.Errorf("expected APPROVE, got %s", out.Verdict)
	}
}

func TestFixerHandlerRun(t *testing.T) {
	diff := "--- a/foo.go\n+++ b/foo.go\n@@ -1 +1 @@\n-old\n+fixed\n"
	resp, _ := json.Marshal(fixerResponse{Diff: diff, CommitMessage: "fix", FixDescription: "patched nil check", FilesModified: []string{"foo.go"}})
	h := NewFixerHandler(&scriptedClient{response: string(resp)})

	out, hErr := h.Run(context.Background(), "m1", Input{CurrentDiff: diff, ErrorLogs: "panic: nil pointer"})
	if hErr != nil {
		t.Fatalf("run: %v", hErr)
	}
	if out.FixDescription == "" {
		t.Error("expected a fix description")
	}
}

func TestRegistryDispatch(t *testing.T) {
	client := &scriptedClient{response: "{}"}
	reg := NewRegistry(
		NewPlannerHandler(client),
		NewCoderHandler(client),
		NewReviewerHandler(client),
		NewFixerHandler(client),
	)

	h, err := reg.Handler(KindReview)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if h.Kind() != KindReview {
		t.Errorf("expected review handler, got %s", h.Kind())
	}

	if _, err := reg.Handler(Kind("bogus")); err == nil {
		t.Error("expected error for unregistered kind")
	}
}
