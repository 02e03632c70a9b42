package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/schaermu/lfsmend/internal/config"
	"github.com/schaermu/lfsmend/internal/git"
	"github.com/schaermu/lfsmend/internal/lfs"
	"github.com/schaermu/lfsmend/internal/report"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	gitBinary string

	// Mode flags, counted so a repeated flag can be rejected
	listMode   modeFlag
	verifyMode modeFlag
)

// envPrefix namespaces the environment overrides of the ambient flags
const envPrefix = "LFSMEND"

// envFlags may also be set as LFSMEND_<FLAG> environment variables
var envFlags = []string{"config", "log-level", "log-format", "git-binary"}

func main() {
	os.Exit(execute(newRootCmd(), os.Args[1:], os.Stderr))
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lfsmend [-l | -v]",
		Short: "Move files that should be in Git LFS into Git LFS",
		Long: `lfsmend finds tracked files that the repository's .gitattributes declare
as Git LFS files (filter, diff and merge set to lfs) but that are stored as
regular blobs, and fixes them in a single commit.

Empty files are deleted. Every other file is removed, committed, restored and
re-added so that the LFS filter stores it as a pointer, then the commit is
amended.

With --list the files are only reported. With --verify they are reported and
the command exits 1 when anything needs fixing.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runReconcile,
	}

	listMode, verifyMode = 0, 0
	flags := cmd.Flags()
	flags.VarPF(&listMode, "list", "l", "list files that need fixing and exit 0").NoOptDefVal = "true"
	flags.VarPF(&verifyMode, "verify", "v", "list files that need fixing and exit 1 if there are any").NoOptDefVal = "true"

	flags.StringVar(&cfgFile, "config", "", "config file (default is <repo>/"+config.FileName+" if present)")
	flags.StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	flags.StringVar(&gitBinary, "git-binary", "git", "git executable to run")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &lfs.UsageError{Msg: err.Error()}
	})

	return cmd
}

// execute runs cmd with args and maps the outcome to an exit code.
// Fatal errors are printed with the usage text; a failed verification is not.
func execute(cmd *cobra.Command, args []string, stderr io.Writer) int {
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return 0
	}

	if !errors.Is(err, lfs.ErrVerifyFailed) {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		_, _ = fmt.Fprint(stderr, cmd.UsageString())
	}
	return 1
}

func noArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &lfs.UsageError{Msg: fmt.Sprintf("unexpected argument %q", args[0])}
	}
	return nil
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	mode, err := selectMode()
	if err != nil {
		return err
	}
	if err := bindEnv(cmd.Flags()); err != nil {
		return err
	}

	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger(cmd.ErrOrStderr())

	cwd, err := os.Getwd()
	if err != nil {
		return lfs.NewEnvironmentError(err)
	}

	client, cfg, err := openRepository(ctx, logger, cwd)
	if err != nil {
		return lfs.NewEnvironmentError(err)
	}

	engine := lfs.NewEngine(cfg, client, logger)
	rep, runErr := engine.Run(ctx, mode)
	if rep != nil {
		if err := report.NewPrinter(cmd.OutOrStdout()).Print(rep); err != nil {
			logger.Error("failed to print report", "error", err)
		}
	}
	if runErr != nil && !errors.Is(runErr, lfs.ErrVerifyFailed) {
		logger.Error("reconcile failed", "mode", mode, "error", runErr)
	}
	return runErr
}

// selectMode maps the mode flags to a mode. At most one may be given, once.
func selectMode() (lfs.Mode, error) {
	switch {
	case listMode > 0 && verifyMode > 0:
		return "", &lfs.UsageError{Msg: "--list and --verify cannot be used together"}
	case listMode > 1:
		return "", &lfs.UsageError{Msg: "--list given more than once"}
	case verifyMode > 1:
		return "", &lfs.UsageError{Msg: "--verify given more than once"}
	case listMode == 1:
		return lfs.ModeList, nil
	case verifyMode == 1:
		return lfs.ModeVerify, nil
	default:
		return lfs.ModeRepair, nil
	}
}

// modeFlag is a boolean flag that counts how often it was set to true
type modeFlag int

func (f *modeFlag) String() string { return strconv.FormatBool(*f > 0) }

func (f *modeFlag) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if v {
		*f++
	}
	return nil
}

func (f *modeFlag) Type() string { return "bool" }

// IsBoolFlag lets the flag appear without a value
func (f *modeFlag) IsBoolFlag() bool { return true }

// bindEnv fills every ambient flag not given on the command line from its
// LFSMEND_<FLAG> environment variable.
func bindEnv(flags *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, name := range envFlags {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	cfgFile = v.GetString("config")
	logLevel = v.GetString("log-level")
	logFormat = v.GetString("log-format")
	gitBinary = v.GetString("git-binary")
	return nil
}

func setupLogger(w io.Writer) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// openRepository locates the working tree around dir, loads its configuration
// and returns the git client the configuration selects.
func openRepository(ctx context.Context, logger *slog.Logger, dir string) (git.Client, *config.Config, error) {
	shell, err := git.Open(ctx, gitBinary, dir)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := loadConfig(logger, shell.Root())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Git.Backend == config.BackendGoGit {
		client, err := git.NewIndexClient(shell)
		if err != nil {
			return nil, nil, err
		}
		return client, cfg, nil
	}
	return shell, cfg, nil
}

func loadConfig(logger *slog.Logger, root string) (*config.Config, error) {
	if cfgFile != "" {
		logger.Info("loading configuration", "path", cfgFile)
		return config.Load(cfgFile)
	}

	path := filepath.Join(root, config.FileName)
	logger.Debug("looking for repository configuration", "path", path)

	cfg, err := config.LoadOptional(path)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"backend", cfg.Git.Backend,
		"scratch_dir", cfg.Repair.ScratchDir,
		"autocrlf", cfg.Repair.AutoCRLF,
		"allow_dirty", cfg.Repair.AllowDirty)

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
