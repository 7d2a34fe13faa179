package batchcoalesce

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// hunk is a single unified-diff hunk, the header plus its body lines
// verbatim (including the leading +/-/space marker).
type hunk struct {
	oldStart int
	oldLines int
	newStart int
	newLines int
	body     []string
}

// fileDiff is one file's unified diff: its `--- a/x` / `+++ b/x` header
// lines plus the hunks that follow.
type fileDiff struct {
	path    string
	headers []string
	hunks   []hunk
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)
var fileHeaderRe = regexp.MustCompile(`^\+\+\+ (?:b/)?(.+)$`)

// parseDiff splits a unified diff into its per-file sections, preserving
// each file's header lines and decoding its hunks, matching the hunk-header
// format used throughout the reference diff tooling.
func parseDiff(diff string) ([]*fileDiff, error) {
	var files []*fileDiff
	var current *fileDiff
	var curHunk *hunk

	flushHunk := func() {
		if current != nil && curHunk != nil {
			current.hunks = append(current.hunks, *curHunk)
			curHunk = nil
		}
	}
	flushFile := func() {
		flushHunk()
		if current != nil {
			files = append(files, current)
			current = nil
		}
	}

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flushFile()
			current = &fileDiff{}
		case strings.HasPrefix(line, "--- "):
			if current == nil {
				current = &fileDiff{}
			}
			flushHunk()
			current.headers = append(current.headers, line)
		case strings.HasPrefix(line, "+++ "):
			if current == nil {
				current = &fileDiff{}
			}
			current.headers = append(current.headers, line)
			if m := fileHeaderRe.FindStringSubmatch(line); m != nil {
				current.path = m[1]
			}
		case hunkHeaderRe.MatchString(line):
			flushHunk()
			m := hunkHeaderRe.FindStringSubmatch(line)
			oldStart, _ := strconv.Atoi(m[1])
			oldLines := 1
			if m[2] != "" {
				oldLines, _ = strconv.Atoi(m[2])
			}
			newStart, _ := strconv.Atoi(m[3])
			newLines := 1
			if m[4] != "" {
				newLines, _ = strconv.Atoi(m[4])
			}
			curHunk = &hunk{oldStart: oldStart, oldLines: oldLines, newStart: newStart, newLines: newLines}
		default:
			if curHunk != nil {
				curHunk.body = append(curHunk.body, line)
			}
		}
	}
	flushFile()

	if len(files) == 0 {
		return nil, fmt.Errorf("batchcoalesce: no file sections found in diff")
	}
	for _, f := range files {
		if f.path == "" {
			return nil, fmt.Errorf("batchcoalesce: could not determine file path from diff headers")
		}
	}
	return files, nil
}

// mergeHunks merges same-file hunks gathered from multiple task diffs.
// Hunks are sorted by their old-file start line. Adjacent ranges are joined
// into one hunk; non-overlapping ranges are concatenated in order;
// overlapping ranges are a conflict (§4.6's conservative "same file, any
// hunk overlap" rule — no attempt at line-level reconciliation).
func mergeHunks(hunks []hunk) ([]hunk, error) {
	if len(hunks) <= 1 {
		return hunks, nil
	}

	sorted := append([]hunk{}, hunks...)
	sortHunksByOldStart(sorted)

	merged := []hunk{sorted[0]}
	for _, h := range sorted[1:] {
		last := &merged[len(merged)-1]
		lastEnd := last.oldStart + last.oldLines

		switch {
		case h.oldStart == lastEnd:
			last.oldLines += h.oldLines
			last.newLines += h.newLines
			last.body = append(last.body, h.body...)
		case h.oldStart > lastEnd:
			merged = append(merged, h)
		default:
			return nil, fmt.Errorf("batchcoalesce: conflicting hunks at line %d", h.oldStart)
		}
	}
	return merged, nil
}

func sortHunksByOldStart(hunks []hunk) {
	for i := 1; i < len(hunks); i++ {
		for j := i; j > 0 && hunks[j-1].oldStart > hunks[j].oldStart; j-- {
			hunks[j-1], hunks[j] = hunks[j], hunks[j-1]
		}
	}
}

// CombineDiffs merges the diffs of a batch's member tasks into one unified
// diff, returning the files that conflicted if any did. Per §4.6, a
// non-empty conflict list means the whole batch falls back: the caller
// marks the Batch failed and returns every member task to REVIEW_APPROVED.
func CombineDiffs(diffs []string) (combined string, conflicts []string, err error) {
	byPath := map[string]*fileDiff{}
	var order []string

	for _, d := range diffs {
		files, err := parseDiff(d)
		if err != nil {
			return "", nil, err
		}
		for _, f := range files {
			existing, ok := byPath[f.path]
			if !ok {
				clone := *f
				byPath[f.path] = &clone
				order = append(order, f.path)
				continue
			}
			existing.hunks = append(existing.hunks, f.hunks...)
		}
	}

	var b strings.Builder
	for _, path := range order {
		f := byPath[path]
		merged, err := mergeHunks(f.hunks)
		if err != nil {
			conflicts = append(conflicts, path)
			continue
		}
		for _, h := range f.headers {
			b.WriteString(h)
			b.WriteString("\n")
		}
		for _, h := range merged {
			b.WriteString(formatHunkHeader(h))
			b.WriteString("\n")
			for _, line := range h.body {
				b.WriteString(line)
				b.WriteString("\n")
			}
		}
	}

	if len(conflicts) > 0 {
		return "", conflicts, nil
	}
	return b.String(), nil, nil
}

func formatHunkHeader(h hunk) string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.oldStart, h.oldLines, h.newStart, h.newLines)
}
