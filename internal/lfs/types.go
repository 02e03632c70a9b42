package lfs

import (
	"fmt"
	"strings"
)

// Mode selects how far the pipeline runs
type Mode string

const (
	// ModeRepair runs the full pipeline including the repair commit
	ModeRepair Mode = "repair"
	// ModeList only reports what is out of policy
	ModeList Mode = "list"
	// ModeVerify reports and fails when anything is out of policy
	ModeVerify Mode = "verify"
)

// AttributeFile is a tracked .gitattributes file
type AttributeFile struct {
	Path string // repository-relative path of the file
	Dir  string // repository-relative directory its patterns are relative to
}

// GlobPattern is an LFS glob together with the directory that declared it
type GlobPattern struct {
	Pattern string
	Dir     string
}

// Plan is the set of files to repair, split by strategy
type Plan struct {
	ToDelete  []string // empty files, removed from the tree
	ToMigrate []string // non-empty files, re-added through the LFS filter
}

// Len returns the number of files the plan touches
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.ToDelete) + len(p.ToMigrate)
}

// Empty reports whether there is nothing to fix
func (p *Plan) Empty() bool {
	return p.Len() == 0
}

// CommitMessage summarizes the plan. Sections only appear for non-empty lists.
func (p *Plan) CommitMessage() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Move %s into Git LFS\n", countFiles(p.Len()))

	if len(p.ToDelete) > 0 {
		fmt.Fprintf(&b, "\nDeleted %s:\n", countEmptyFiles(len(p.ToDelete)))
		writeList(&b, p.ToDelete)
	}
	if len(p.ToMigrate) > 0 {
		fmt.Fprintf(&b, "\nConverted %s to Git LFS:\n", countFiles(len(p.ToMigrate)))
		writeList(&b, p.ToMigrate)
	}

	return b.String()
}

// Report is the outcome of one run
type Report struct {
	Mode       Mode
	Candidates []string // tracked files matched by an LFS glob
	Verified   []string // candidates carrying filter, diff and merge = lfs
	Managed    []string // files git-lfs already manages
	Plan       *Plan
	Message    string // commit message, set whenever Plan is non-empty
	Committed  bool   // repair commit created and amended
}

// NothingToDo reports whether every eligible file is already in LFS
func (r *Report) NothingToDo() bool {
	return r.Plan.Empty()
}

func writeList(b *strings.Builder, paths []string) {
	for _, p := range paths {
		fmt.Fprintf(b, "  %s\n", p)
	}
}

func countFiles(n int) string {
	if n == 1 {
		return "1 file"
	}
	return fmt.Sprintf("%d files", n)
}

func countEmptyFiles(n int) string {
	if n == 1 {
		return "1 empty file"
	}
	return fmt.Sprintf("%d empty files", n)
}
