package batchcoalesce

import "testing"

func TestCombineDiffsConcatenatesNonOverlappingHunks(t *testing.T) {
	diffA := "--- a/f.go\n+++ b/f.go\n@@ -1,2 +1,2 @@\n-old1\n+new1\n"
	diffB := "--- a/f.go\n+++ b/f.go\n@@ -20,1 +20,1 @@\n-old2\n+new2\n"

	combined, conflicts, err := CombineDiffs([]string{diffA, diffB})
	if err != nil {
		t.Fatalf("CombineDiffs: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %v", conflicts)
	}
	if combined == "" {
		t.Fatal("expected non-empty combined diff")
	}
}

func TestCombineDiffsJoinsAdjacentHunks(t *testing.T) {
	diffA := "--- a/f.go\n+++ b/f.go\n@@ -1,2 +1,2 @@\n-old1\n+new1\n"
	diffB := "--- a/f.go\n+++ b/f.go\n@@ -3,1 +3,1 @@\n-old2\n+new2\n"

	files, err := parseDiff(diffA)
	if err != nil {
		t.Fatalf("parseDiff a: %v", err)
	}
	filesB, err := parseDiff(diffB)
	if err != nil {
		t.Fatalf("parseDiff b: %v", err)
	}

	all := append(files[0].hunks, filesB[0].hunks...)
	merged, err := mergeHunks(all)
	if err != nil {
		t.Fatalf("mergeHunks: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("expected adjacent hunks to join into one, got %d", len(merged))
	}
	if merged[0].oldLines != 3 {
		t.Errorf("expected joined hunk to span 3 old lines, got %d", merged[0].oldLines)
	}
}

func TestCombineDiffsDetectsOverlapConflict(t *testing.T) {
	diffA := "--- a/f.go\n+++ b/f.go\n@@ -1,5 +1,5 @@\n-old1\n+new1\n context\n"
	diffB := "--- a/f.go\n+++ b/f.go\n@@ -3,2 +3,2 @@\n-old2\n+new2\n"

	_, conflicts, err := CombineDiffs([]string{diffA, diffB})
	if err != nil {
		t.Fatalf("CombineDiffs: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0] != "f.go" {
		t.Fatalf("expected conflict on f.go, got %v", conflicts)
	}
}

func TestParseDiffRejectsUnrecognizedInput(t *testing.T) {
	if _, err := parseDiff("not a diff at all"); err == nil {
		t.Error("expected an error for input with no file headers")
	}
}
