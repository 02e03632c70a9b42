package lfs

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/schaermu/lfsmend/internal/git"
)

// fakeGit implements git.Client over a real directory with in-memory
// tracking, attribute and LFS state.
type fakeGit struct {
	root   string
	gitDir string

	tracked []string
	attrs   map[string]map[string]string // attr -> path -> value
	lfs     []string
	changed []string // reported by Status

	listErr   error
	attrErr   error
	lfsErr    error
	commitErr error
	amendErr  error

	attrCalls  []string
	stageCalls []git.StageOptions
	commits    []string
	amended    int
	onCommit   func()
}

func newFakeGit(t *testing.T) *fakeGit {
	t.Helper()
	root := t.TempDir()
	gitDir := filepath.Join(root, ".git")
	if err := os.MkdirAll(gitDir, 0755); err != nil {
		t.Fatal(err)
	}
	return &fakeGit{
		root:   root,
		gitDir: gitDir,
		attrs:  map[string]map[string]string{},
	}
}

// addFile writes rel below the fake root and tracks it
func (f *fakeGit) addFile(t *testing.T, rel, content string) {
	t.Helper()
	p := filepath.Join(f.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	f.tracked = append(f.tracked, rel)
}

// setLFSAttrs marks the given attributes as lfs for rel
func (f *fakeGit) setLFSAttrs(rel string, attrs ...string) {
	for _, a := range attrs {
		if f.attrs[a] == nil {
			f.attrs[a] = map[string]string{}
		}
		f.attrs[a][rel] = "lfs"
	}
}

func (f *fakeGit) Root() string   { return f.root }
func (f *fakeGit) GitDir() string { return f.gitDir }

// ListTracked treats slash-free patterns as basename globs at any depth
func (f *fakeGit) ListTracked(_ context.Context, dir string, patterns ...string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}

	var out []string
	for _, p := range f.tracked {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rel := strings.TrimPrefix(p, prefix)
		for _, pat := range patterns {
			subject := rel
			if !strings.Contains(pat, "/") {
				subject = path.Base(rel)
			}
			if ok, _ := path.Match(pat, subject); ok {
				out = append(out, p)
				break
			}
		}
	}
	return git.SortedUnique(out), nil
}

func (f *fakeGit) CheckAttr(_ context.Context, attr string, paths []string) (map[string]string, error) {
	f.attrCalls = append(f.attrCalls, attr)
	if f.attrErr != nil {
		return nil, f.attrErr
	}
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		v, ok := f.attrs[attr][p]
		if !ok {
			v = "unspecified"
		}
		out[p] = v
	}
	return out, nil
}

func (f *fakeGit) ListLFSFiles(_ context.Context) ([]string, error) {
	if f.lfsErr != nil {
		return nil, f.lfsErr
	}
	return append([]string(nil), f.lfs...), nil
}

func (f *fakeGit) Status(_ context.Context) ([]string, error) {
	return append([]string(nil), f.changed...), nil
}

func (f *fakeGit) StageAll(_ context.Context, opts git.StageOptions) error {
	f.stageCalls = append(f.stageCalls, opts)
	return nil
}

// Commit drops files that vanished from the working tree
func (f *fakeGit) Commit(_ context.Context, message string) error {
	if f.onCommit != nil {
		f.onCommit()
	}
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits = append(f.commits, message)

	var kept []string
	for _, p := range f.tracked {
		if f.exists(p) {
			kept = append(kept, p)
		}
	}
	f.tracked = kept
	return nil
}

// AmendCommit behaves like the LFS filter: restored files with lfs attributes become managed
func (f *fakeGit) AmendCommit(_ context.Context) error {
	if f.amendErr != nil {
		return f.amendErr
	}
	f.amended++
	for p, v := range f.attrs["filter"] {
		if v == "lfs" && f.exists(p) {
			f.lfs = append(f.lfs, p)
			f.tracked = append(f.tracked, p)
		}
	}
	f.tracked = git.SortedUnique(f.tracked)
	f.lfs = git.SortedUnique(f.lfs)
	return nil
}

func (f *fakeGit) exists(rel string) bool {
	_, err := os.Lstat(filepath.Join(f.root, filepath.FromSlash(rel)))
	return !errors.Is(err, fs.ErrNotExist)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
