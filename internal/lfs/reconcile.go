package lfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schaermu/lfsmend/internal/git"
)

// ManagedSet returns the sorted, unique paths git-lfs currently manages
func ManagedSet(ctx context.Context, client git.Client) ([]string, error) {
	managed, err := client.ListLFSFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list LFS files: %w", err)
	}
	return git.SortedUnique(managed), nil
}

// Difference returns the elements of left that are not in right.
// Both slices must already be sorted; the result keeps left's order.
func Difference(left, right []string) []string {
	var out []string
	j := 0
	for _, l := range left {
		for j < len(right) && right[j] < l {
			j++
		}
		if j < len(right) && right[j] == l {
			continue
		}
		out = append(out, l)
	}
	return out
}

// StatFunc reports file info for a path; os.Lstat in production
type StatFunc func(name string) (os.FileInfo, error)

// Partition splits toFix by size: zero-byte regular files are deleted,
// everything else is migrated.
func Partition(root string, toFix []string, stat StatFunc) (*Plan, error) {
	if stat == nil {
		stat = os.Lstat
	}

	plan := &Plan{}
	for _, p := range toFix {
		info, err := stat(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if info.Mode().IsRegular() && info.Size() == 0 {
			plan.ToDelete = append(plan.ToDelete, p)
		} else {
			plan.ToMigrate = append(plan.ToMigrate, p)
		}
	}
	return plan, nil
}
