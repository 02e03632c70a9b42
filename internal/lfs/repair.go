package lfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/schaermu/lfsmend/internal/git"
)

// Repairer moves the files of a plan into LFS through a commit-then-amend cycle
type Repairer struct {
	git        git.Client
	logger     *slog.Logger
	scratchDir string
	autoCRLF   string
	allowDirty bool
}

// NewRepairer creates a repairer that backs files up to scratchDir
func NewRepairer(client git.Client, logger *slog.Logger, scratchDir, autoCRLF string, allowDirty bool) *Repairer {
	return &Repairer{
		git:        client,
		logger:     logger,
		scratchDir: scratchDir,
		autoCRLF:   autoCRLF,
		allowDirty: allowDirty,
	}
}

// Repair applies plan and records it as a single commit with message.
// On failure the scratch directory is left in place with the originals.
func (r *Repairer) Repair(ctx context.Context, plan *Plan, message string) (err error) {
	root := r.git.Root()

	if !r.allowDirty {
		if err := r.checkClean(ctx, plan); err != nil {
			return err
		}
	}

	scratch, stale, err := AcquireScratch(r.scratchDir)
	if err != nil {
		return err
	}
	if stale {
		r.logger.Warn("removed stale scratch directory from an earlier run", "scratch", scratch.Dir())
	}
	defer func() {
		if err != nil {
			r.logger.Error("repair failed, originals kept in scratch directory", "scratch", scratch.Dir())
			return
		}
		err = scratch.Release()
	}()

	for _, p := range plan.ToDelete {
		r.logger.Info("deleting empty file", "path", p)
		if err := removeFile(root, p); err != nil {
			return fmt.Errorf("failed to delete %s: %w", p, err)
		}
	}

	for _, p := range plan.ToMigrate {
		r.logger.Debug("backing up file", "path", p, "scratch", scratch.Dir())
		if err := scratch.Backup(root, p); err != nil {
			return fmt.Errorf("failed to back up %s: %w", p, err)
		}
	}

	for _, p := range plan.ToMigrate {
		if err := removeFile(root, p); err != nil {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}

	r.logger.Info("committing removal", "deleted", len(plan.ToDelete), "migrating", len(plan.ToMigrate))
	if err := r.git.StageAll(ctx, git.StageOptions{}); err != nil {
		return err
	}
	if err := r.git.Commit(ctx, message); err != nil {
		return err
	}

	restored, err := scratch.Restore(root)
	if err != nil {
		return err
	}
	for _, p := range restored {
		r.logger.Info("converting file to LFS", "path", p)
	}

	if err := r.git.StageAll(ctx, git.StageOptions{AutoCRLF: r.autoCRLF}); err != nil {
		return err
	}
	if err := r.git.AmendCommit(ctx); err != nil {
		return err
	}

	return nil
}

// checkClean refuses to run when paths outside the plan have uncommitted
// changes. Plan paths are exempt: a plain blob under filter=lfs is reported
// as modified because the clean filter now turns it into a pointer.
func (r *Repairer) checkClean(ctx context.Context, plan *Plan) error {
	changed, err := r.git.Status(ctx)
	if err != nil {
		return err
	}

	planned := git.SortedUnique(append(append([]string(nil), plan.ToDelete...), plan.ToMigrate...))
	unrelated := Difference(git.SortedUnique(changed), planned)
	if len(unrelated) == 0 {
		return nil
	}

	r.logger.Debug("uncommitted changes outside the plan", "paths", unrelated)
	return fmt.Errorf("working tree has %d uncommitted change(s) outside the files to fix (first: %s); commit or stash them first (or set repair.allow_dirty)",
		len(unrelated), unrelated[0])
}

// removeFile deletes root/rel; a file that is already gone is not an error
func removeFile(root, rel string) error {
	err := os.Remove(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
