package lfs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/schaermu/lfsmend/internal/git"
)

// lfsMarkers must all appear on an attribute line for it to declare LFS policy
var lfsMarkers = []string{"filter=lfs", "diff=lfs", "merge=lfs"}

// ParseGlobs extracts the leading glob of every line carrying all LFS markers.
// Matching is plain substring search. The result is sorted and unique.
func ParseGlobs(r io.Reader) ([]string, error) {
	var globs []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !hasAllMarkers(line) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		globs = append(globs, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return git.SortedUnique(globs), nil
}

func hasAllMarkers(line string) bool {
	for _, m := range lfsMarkers {
		if !strings.Contains(line, m) {
			return false
		}
	}
	return true
}

// ReadGlobs parses the LFS globs declared by one attribute file in the working tree
func ReadGlobs(root string, file AttributeFile) ([]GlobPattern, error) {
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(file.Path)))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	globs, err := ParseGlobs(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file.Path, err)
	}

	patterns := make([]GlobPattern, 0, len(globs))
	for _, g := range globs {
		patterns = append(patterns, GlobPattern{Pattern: g, Dir: file.Dir})
	}
	return patterns, nil
}

// ResolveCandidates expands every LFS glob relative to its declaring directory
// and returns the union of matching tracked files, sorted and unique.
func ResolveCandidates(ctx context.Context, client git.Client, files []AttributeFile) ([]string, error) {
	var candidates []string

	for _, file := range files {
		patterns, err := ReadGlobs(client.Root(), file)
		if err != nil {
			return nil, err
		}
		if len(patterns) == 0 {
			continue
		}

		globs := make([]string, 0, len(patterns))
		for _, p := range patterns {
			globs = append(globs, p.Pattern)
		}

		matched, err := client.ListTracked(ctx, file.Dir, globs...)
		if err != nil {
			return nil, fmt.Errorf("failed to expand globs from %s: %w", file.Path, err)
		}
		candidates = append(candidates, matched...)
	}

	return git.SortedUnique(candidates), nil
}
