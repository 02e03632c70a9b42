//go:build integration

package tier1

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/schaermu/lfsmend/internal/testutil"
)

const defaultTimeout = 5 * time.Minute

// Harness builds the lfsmend binary once and runs it against throwaway repositories
type Harness struct {
	t      *testing.T
	binary string
}

// Result is the outcome of one lfsmend invocation
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// NewHarness creates a new test harness
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	if err := exec.Command("git", "lfs", "version").Run(); err != nil {
		t.Skip("git-lfs not available")
	}
	return &Harness{
		t:      t,
		binary: filepath.Join(t.TempDir(), "lfsmend"),
	}
}

// BuildBinary compiles cmd/lfsmend into the harness temp dir
func (h *Harness) BuildBinary(ctx context.Context) error {
	h.t.Helper()

	// Get absolute path to project root by finding go.mod
	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("get project root: %w", err)
	}

	h.t.Logf("Building %s", h.binary)
	cmd := exec.CommandContext(ctx, "go", "build", "-o", h.binary, "./cmd/lfsmend")
	cmd.Dir = projectRoot
	cmd.Stdout = &testWriter{t: h.t, prefix: "[build] "}
	cmd.Stderr = &testWriter{t: h.t, prefix: "[build] "}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	return nil
}

// Run executes lfsmend inside dir. A non-zero exit is reported through
// Result.ExitCode, not as an error.
func (h *Harness) Run(ctx context.Context, dir string, args ...string) (Result, error) {
	h.t.Helper()
	h.t.Logf("Running lfsmend %s", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, h.binary, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(&stderr, &testWriter{t: h.t, prefix: "[lfsmend] "})

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("run lfsmend: %w", err)
	}
	return res, nil
}

// MustRun is Run that fails the test on execution errors
func (h *Harness) MustRun(ctx context.Context, dir string, args ...string) Result {
	h.t.Helper()
	res, err := h.Run(ctx, dir, args...)
	if err != nil {
		h.t.Fatal(err)
	}
	return res
}

// NewRepo creates a repository with git-lfs filters installed locally
func (h *Harness) NewRepo() string {
	h.t.Helper()
	root := testutil.InitRepo(h.t)
	testutil.RequireLFS(h.t, root)
	return root
}

// WriteConfig writes an lfsmend config outside any repository and returns its path
func (h *Harness) WriteConfig(content string) string {
	h.t.Helper()
	path := filepath.Join(h.t.TempDir(), "lfsmend.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		h.t.Fatal(err)
	}
	return path
}

// testWriter wraps test logging for command output
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	lines := strings.Split(string(p), "\n")
	for _, line := range lines {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*testWriter)(nil)

// findProjectRoot walks up the directory tree from the current file to find go.mod
func findProjectRoot() (string, error) {
	// Get the directory of this source file
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}

	dir := filepath.Dir(filename)

	// Walk up the directory tree looking for go.mod
	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the root without finding go.mod
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}
