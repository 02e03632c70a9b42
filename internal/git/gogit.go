package git

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5/osfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitattributes"
	"github.com/gobwas/glob"
)

// IndexClient answers ListTracked and CheckAttr from the index and the
// .gitattributes files through go-git, without spawning git. Everything that
// has to run the LFS filters is delegated to the embedded ShellClient.
type IndexClient struct {
	*ShellClient
	repo *gogit.Repository
	mode pathspecMode
}

// NewIndexClient opens the repository that shell is bound to with go-git
func NewIndexClient(shell *ShellClient) (*IndexClient, error) {
	repo, err := gogit.PlainOpenWithOptions(shell.Root(), &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("go-git open %s failed: %w", shell.Root(), err)
	}
	return &IndexClient{ShellClient: shell, repo: repo, mode: defaultPathspecMode()}, nil
}

// ListTracked matches index entries below dir against git-style pathspecs
func (c *IndexClient) ListTracked(ctx context.Context, dir string, patterns ...string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	idx, err := c.repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("read index failed: %w", err)
	}

	prefix := ""
	if d := path.Clean(dir); d != "." && d != "" {
		prefix = d + "/"
	}

	var matched []string
	for _, e := range idx.Entries {
		if !strings.HasPrefix(e.Name, prefix) {
			continue
		}
		rel := strings.TrimPrefix(e.Name, prefix)
		for _, p := range patterns {
			ok, err := matchPathspec(p, rel, c.mode)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
			}
			if ok {
				matched = append(matched, e.Name)
				break
			}
		}
	}

	return SortedUnique(matched), nil
}

// CheckAttr evaluates the working tree's .gitattributes stack with go-git's matcher
func (c *IndexClient) CheckAttr(ctx context.Context, attr string, paths []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make(map[string]string, len(paths))
	if len(paths) == 0 {
		return result, nil
	}

	patterns, err := gitattributes.ReadPatterns(osfs.New(c.Root()), nil)
	if err != nil {
		return nil, fmt.Errorf("read .gitattributes failed: %w", err)
	}
	matcher := gitattributes.NewMatcher(patterns)

	for _, p := range paths {
		attrs, _ := matcher.Match(strings.Split(p, "/"), []string{attr})
		result[p] = attributeValue(attrs[attr])
	}
	return result, nil
}

// attributeValue renders an attribute the way git check-attr prints it
func attributeValue(a gitattributes.Attribute) string {
	switch {
	case a == nil || a.IsUnspecified():
		return "unspecified"
	case a.IsSet():
		return "set"
	case a.IsUnset():
		return "unset"
	default:
		return a.Value()
	}
}

// pathspecMode selects how a pathspec pattern is interpreted
type pathspecMode int

const (
	// wildcard is git's default: fnmatch without FNM_PATHNAME, "*" crosses "/"
	wildcardPathspec pathspecMode = iota
	// glob is ":(glob)" or GIT_GLOB_PATHSPECS: "*" stays within a segment, "**" spans directories
	globPathspec
	// literal is ":(literal)" or GIT_LITERAL_PATHSPECS
	literalPathspec
)

// defaultPathspecMode mirrors the environment switches git itself honours
func defaultPathspecMode() pathspecMode {
	switch {
	case os.Getenv("GIT_LITERAL_PATHSPECS") == "1":
		return literalPathspec
	case os.Getenv("GIT_GLOB_PATHSPECS") == "1":
		return globPathspec
	default:
		return wildcardPathspec
	}
}

// parsePathspec strips a long-form magic prefix and returns the mode it selects
func parsePathspec(pattern string, def pathspecMode) (string, pathspecMode) {
	for magic, mode := range map[string]pathspecMode{
		":(glob)":    globPathspec,
		":(literal)": literalPathspec,
	} {
		if rest, ok := strings.CutPrefix(pattern, magic); ok {
			return rest, mode
		}
	}
	return pattern, def
}

// matchPathspec reports whether rel matches pattern the way git ls-files
// would. Exact paths and directory prefixes always match.
func matchPathspec(pattern, rel string, def pathspecMode) (bool, error) {
	pattern, mode := parsePathspec(pattern, def)
	pattern = strings.TrimPrefix(pattern, "./")
	if pattern == rel || strings.HasPrefix(rel, strings.TrimSuffix(pattern, "/")+"/") {
		return true, nil
	}

	switch mode {
	case literalPathspec:
		return false, nil
	case globPathspec:
		return doublestar.Match(pattern, rel)
	}

	// No separators: "*" and "?" match "/" too
	g, err := glob.Compile(pattern)
	if err != nil {
		return false, err
	}
	return g.Match(rel), nil
}
