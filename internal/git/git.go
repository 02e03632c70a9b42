package git

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Client provides the git and git-lfs primitives the reconciler needs
type Client interface {
	// Root returns the absolute path of the working tree top level
	Root() string
	// GitDir returns the absolute path of the git metadata directory
	GitDir() string
	// ListTracked returns tracked files matching patterns evaluated relative to
	// dir, as repository-relative slash paths. No patterns means no results.
	ListTracked(ctx context.Context, dir string, patterns ...string) ([]string, error)
	// CheckAttr resolves one attribute for every path
	CheckAttr(ctx context.Context, attr string, paths []string) (map[string]string, error)
	// ListLFSFiles returns the paths git-lfs currently manages
	ListLFSFiles(ctx context.Context) ([]string, error)
	// Status returns the paths with uncommitted changes, untracked files included
	Status(ctx context.Context) ([]string, error)
	// StageAll stages every working-tree change including deletions
	StageAll(ctx context.Context, opts StageOptions) error
	// Commit records the staged changes with message
	Commit(ctx context.Context, message string) error
	// AmendCommit folds the staged changes into the last commit
	AmendCommit(ctx context.Context) error
}

// StageOptions tweaks a StageAll call
type StageOptions struct {
	// AutoCRLF, when set, overrides core.autocrlf for this call only
	AutoCRLF string
}

// ShellClient implements Client by shelling out to the git command
type ShellClient struct {
	binary string
	root   string
	gitDir string
}

// Open locates the working tree containing dir and returns a client bound to it
func Open(ctx context.Context, binary, dir string) (*ShellClient, error) {
	if binary == "" {
		binary = "git"
	}
	c := &ShellClient{binary: binary}

	out, err := c.output(ctx, dir, nil, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("not inside a git working tree: %w", err)
	}
	c.root = filepath.Clean(strings.TrimSpace(string(out)))

	out, err = c.output(ctx, c.root, nil, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return nil, fmt.Errorf("git rev-parse --absolute-git-dir failed: %w", err)
	}
	c.gitDir = filepath.Clean(strings.TrimSpace(string(out)))

	return c, nil
}

// Root returns the working tree top level
func (c *ShellClient) Root() string { return c.root }

// GitDir returns the git metadata directory
func (c *ShellClient) GitDir() string { return c.gitDir }

// ListTracked runs git ls-files inside dir so pathspecs resolve relative to it
func (c *ShellClient) ListTracked(ctx context.Context, dir string, patterns ...string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	args := append([]string{"ls-files", "-z", "--full-name", "--"}, patterns...)
	out, err := c.output(ctx, filepath.Join(c.root, filepath.FromSlash(dir)), nil, args...)
	if err != nil {
		return nil, fmt.Errorf("git ls-files in %q failed: %w", dir, err)
	}

	return SortedUnique(splitNUL(out)), nil
}

// CheckAttr feeds paths to git check-attr over stdin
func (c *ShellClient) CheckAttr(ctx context.Context, attr string, paths []string) (map[string]string, error) {
	result := make(map[string]string, len(paths))
	if len(paths) == 0 {
		return result, nil
	}

	var stdin bytes.Buffer
	for _, p := range paths {
		stdin.WriteString(p)
		stdin.WriteByte(0)
	}

	out, err := c.output(ctx, c.root, &stdin, "check-attr", "-z", "--stdin", attr)
	if err != nil {
		return nil, fmt.Errorf("git check-attr %s failed: %w", attr, err)
	}

	return parseCheckAttr(out, result)
}

// ListLFSFiles runs git lfs ls-files and strips the oid and status columns
func (c *ShellClient) ListLFSFiles(ctx context.Context) ([]string, error) {
	out, err := c.output(ctx, c.root, nil, "lfs", "ls-files")
	if err != nil {
		return nil, fmt.Errorf("git lfs ls-files failed: %w", err)
	}
	return parseLFSListing(out), nil
}

// Status runs git status --porcelain -z; paths are relative to the top level
func (c *ShellClient) Status(ctx context.Context) ([]string, error) {
	out, err := c.output(ctx, c.root, nil, "status", "--porcelain", "-z", "--untracked-files=all")
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}
	return parseStatus(out)
}

// StageAll runs git add --all at the top level
func (c *ShellClient) StageAll(ctx context.Context, opts StageOptions) error {
	var args []string
	if opts.AutoCRLF != "" {
		args = append(args, "-c", "core.autocrlf="+opts.AutoCRLF)
	}
	args = append(args, "add", "--all")

	if _, err := c.output(ctx, c.root, nil, args...); err != nil {
		return fmt.Errorf("git add failed: %w", err)
	}
	return nil
}

// Commit passes message on stdin so it is recorded verbatim
func (c *ShellClient) Commit(ctx context.Context, message string) error {
	if _, err := c.output(ctx, c.root, strings.NewReader(message), "commit", "--quiet", "--file", "-"); err != nil {
		return fmt.Errorf("git commit failed: %w", err)
	}
	return nil
}

// AmendCommit amends HEAD keeping its message
func (c *ShellClient) AmendCommit(ctx context.Context) error {
	if _, err := c.output(ctx, c.root, nil, "commit", "--quiet", "--amend", "--no-edit"); err != nil {
		return fmt.Errorf("git commit --amend failed: %w", err)
	}
	return nil
}

// output executes git in dir and returns stdout, or an error carrying stderr on failure
func (c *ShellClient) output(ctx context.Context, dir string, stdin io.Reader, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Dir = dir
	if stdin != nil {
		cmd.Stdin = stdin
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// splitNUL splits NUL-terminated output, dropping empty fields
func splitNUL(data []byte) []string {
	var fields []string
	for _, f := range bytes.Split(data, []byte{0}) {
		if len(f) > 0 {
			fields = append(fields, string(f))
		}
	}
	return fields
}

// parseCheckAttr decodes "path NUL attr NUL value NUL" triples into dst
func parseCheckAttr(data []byte, dst map[string]string) (map[string]string, error) {
	fields := bytes.Split(data, []byte{0})
	// A trailing NUL leaves one empty field behind
	if n := len(fields); n > 0 && len(fields[n-1]) == 0 {
		fields = fields[:n-1]
	}
	if len(fields)%3 != 0 {
		return nil, fmt.Errorf("malformed check-attr output: %d fields", len(fields))
	}

	for i := 0; i < len(fields); i += 3 {
		dst[string(fields[i])] = string(fields[i+2])
	}
	return dst, nil
}

// parseStatus decodes "XY path" entries. Renames and copies carry the
// original path in the following entry; only the new path is kept.
func parseStatus(data []byte) ([]string, error) {
	var paths []string
	entries := splitNUL(data)
	for i := 0; i < len(entries); i++ {
		e := entries[i]
		if len(e) < 4 || e[2] != ' ' {
			return nil, fmt.Errorf("malformed status entry %q", e)
		}
		paths = append(paths, e[3:])
		if e[0] == 'R' || e[0] == 'C' {
			i++
		}
	}
	return SortedUnique(paths), nil
}

// parseLFSListing reduces "oid <*|-> path" lines to sorted unique paths.
// Lines already holding a bare path are kept as they are.
func parseLFSListing(data []byte) []string {
	var paths []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 3)
		if len(parts) == 3 && (parts[1] == "*" || parts[1] == "-") {
			paths = append(paths, parts[2])
			continue
		}
		paths = append(paths, line)
	}
	return SortedUnique(paths)
}

// SortedUnique returns a sorted copy of paths with duplicates removed
func SortedUnique(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	copy(out, paths)
	sort.Strings(out)

	uniq := out[:1]
	for _, p := range out[1:] {
		if p != uniq[len(uniq)-1] {
			uniq = append(uniq, p)
		}
	}
	return uniq
}
