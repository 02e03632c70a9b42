package lfs

import (
	"context"
	"log/slog"

	"github.com/schaermu/lfsmend/internal/config"
	"github.com/schaermu/lfsmend/internal/git"
)

// Engine orchestrates the reconcile process
type Engine struct {
	cfg    *config.Config
	git    git.Client
	logger *slog.Logger
	stat   StatFunc
}

// NewEngine creates a new reconcile engine
func NewEngine(cfg *config.Config, gitClient git.Client, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		git:    gitClient,
		logger: logger,
	}
}

// Run executes the pipeline in the given mode. The returned report is non-nil
// whenever reconciliation finished, even if the repair or verification failed.
func (e *Engine) Run(ctx context.Context, mode Mode) (*Report, error) {
	e.logger.Info("starting reconcile",
		"root", e.git.Root(),
		"mode", mode,
		"backend", e.cfg.Git.Backend)

	report, err := e.reconcile(ctx)
	if err != nil {
		return nil, err
	}
	report.Mode = mode

	e.logger.Info("reconcile plan",
		"candidates", len(report.Candidates),
		"verified", len(report.Verified),
		"managed", len(report.Managed),
		"delete", len(report.Plan.ToDelete),
		"migrate", len(report.Plan.ToMigrate))

	if report.NothingToDo() {
		e.logger.Info("nothing to do")
		return report, nil
	}

	switch mode {
	case ModeList:
		return report, nil
	case ModeVerify:
		return report, ErrVerifyFailed
	}

	e.enter(StageRepairing)
	repairer := NewRepairer(e.git, e.logger, e.cfg.ScratchPath(e.git.GitDir()), e.cfg.Repair.AutoCRLF, e.cfg.Repair.AllowDirty)
	if err := repairer.Repair(ctx, report.Plan, report.Message); err != nil {
		return report, stageErr(StageRepairing, err)
	}
	report.Committed = true

	e.logger.Info("repair completed successfully")
	return report, nil
}

// reconcile runs scanning through reconciling and builds the report
func (e *Engine) reconcile(ctx context.Context) (*Report, error) {
	report := &Report{}

	e.enter(StageScanning)
	files, err := FindAttributeFiles(ctx, e.git)
	if err != nil {
		return nil, stageErr(StageScanning, err)
	}
	e.logger.Debug("discovered attribute files", "count", len(files))

	e.enter(StageResolving)
	report.Candidates, err = ResolveCandidates(ctx, e.git, files)
	if err != nil {
		return nil, stageErr(StageResolving, err)
	}

	e.enter(StageVerifying)
	report.Verified, err = VerifyCandidates(ctx, e.git, report.Candidates)
	if err != nil {
		return nil, stageErr(StageVerifying, err)
	}

	e.enter(StageReconciling)
	report.Managed, err = ManagedSet(ctx, e.git)
	if err != nil {
		return nil, stageErr(StageReconciling, err)
	}

	toFix := Difference(report.Verified, report.Managed)
	report.Plan, err = Partition(e.git.Root(), toFix, e.stat)
	if err != nil {
		return nil, stageErr(StageReconciling, err)
	}
	if !report.Plan.Empty() {
		report.Message = report.Plan.CommitMessage()
	}

	return report, nil
}

func (e *Engine) enter(stage Stage) {
	e.logger.Debug("entering stage", "stage", stage)
}
