// Package testutil builds throwaway git repositories for tests.
package testutil

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// InitRepo creates a git repository on branch main with a committer identity
// and returns its root.
func InitRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	// Resolve symlinks (e.g. /tmp on macOS) so paths compare equal to git's output.
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	Git(t, dir, "init", "-b", "main")
	Git(t, dir, "config", "user.email", "test@test.com")
	Git(t, dir, "config", "user.name", "Test")
	Git(t, dir, "config", "commit.gpgsign", "false")
	return dir
}

// Git runs git in dir and returns trimmed stdout, failing the test on error.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("git %s: %v: %s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(stdout.String())
}

// WriteFile creates rel (and its parent directories) below root.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// CommitFiles stages exactly the given paths and commits them.
func CommitFiles(t *testing.T, root, msg string, rels ...string) {
	t.Helper()
	Git(t, root, append([]string{"add", "--"}, rels...)...)
	Git(t, root, "commit", "--quiet", "-m", msg)
}

// RequireLFS skips the test unless git-lfs is installed, then enables its
// filters for the repository at root.
func RequireLFS(t *testing.T, root string) {
	t.Helper()
	if err := exec.Command("git", "lfs", "version").Run(); err != nil {
		t.Skip("git-lfs not available")
	}
	Git(t, root, "lfs", "install", "--local")
}

// CommitCount returns the number of commits reachable from HEAD.
func CommitCount(t *testing.T, root string) string {
	t.Helper()
	return Git(t, root, "rev-list", "--count", "HEAD")
}
