package git

import (
	"context"
	"reflect"
	"testing"
)

func openIndexClient(t *testing.T, root string) *IndexClient {
	t.Helper()
	shell, err := Open(context.Background(), "git", root)
	if err != nil {
		t.Fatal(err)
	}
	client, err := NewIndexClient(shell)
	if err != nil {
		t.Fatalf("NewIndexClient: %v", err)
	}
	return client
}

func TestIndexClient_ListTracked(t *testing.T) {
	root := setupRepo(t)
	client := openIndexClient(t, root)
	ctx := context.Background()

	tests := []struct {
		name     string
		dir      string
		patterns []string
		want     []string
	}{
		{name: "root glob crosses directories", dir: "", patterns: []string{"*.bin"}, want: []string{"assets/deep/model.bin", "top.bin"}},
		{name: "subdir glob stays in subdir", dir: "assets", patterns: []string{"*.psd"}, want: []string{"assets/art.psd"}},
		{name: "slash pattern crosses directories", dir: "", patterns: []string{"assets/*.bin"}, want: []string{"assets/deep/model.bin"}},
		{name: "literal path", dir: "", patterns: []string{"README.md"}, want: []string{"README.md"}},
		{name: "no patterns", dir: "", patterns: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.ListTracked(ctx, tt.dir, tt.patterns...)
			if err != nil {
				t.Fatalf("ListTracked: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ListTracked(%q, %v) = %v, want %v", tt.dir, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestIndexClient_ListTrackedCanceled(t *testing.T) {
	root := setupRepo(t)
	client := openIndexClient(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.ListTracked(ctx, "", "*.bin"); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestIndexClient_CheckAttrMatchesShell(t *testing.T) {
	root := setupRepo(t)
	client := openIndexClient(t, root)
	ctx := context.Background()

	paths := []string{"top.bin", "assets/art.psd", "assets/deep/model.bin", "other/art.psd", "README.md"}
	for _, attr := range []string{"filter", "diff", "merge"} {
		got, err := client.CheckAttr(ctx, attr, paths)
		if err != nil {
			t.Fatalf("IndexClient.CheckAttr(%s): %v", attr, err)
		}
		want, err := client.ShellClient.CheckAttr(ctx, attr, paths)
		if err != nil {
			t.Fatalf("ShellClient.CheckAttr(%s): %v", attr, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("CheckAttr(%s) go-git = %v, git = %v", attr, got, want)
		}
	}
}

func TestIndexClient_ListTrackedMatchesShell(t *testing.T) {
	root := setupRepo(t)
	client := openIndexClient(t, root)
	ctx := context.Background()

	for _, tc := range []struct {
		dir     string
		pattern string
	}{
		{"", "*.bin"},
		{"", "assets/*.bin"},
		{"", "*/art.psd"},
		{"", "a*/*.psd"},
		{"", "assets"},
		{"", "t?p.bin"},
		{"assets", "*"},
		{"assets", "deep/*.bin"},
		{"", ":(glob)assets/*.bin"},
		{"", ":(glob)assets/**/*.bin"},
		{"", ":(literal)*.bin"},
	} {
		t.Run(tc.dir+"/"+tc.pattern, func(t *testing.T) {
			got, err := client.ListTracked(ctx, tc.dir, tc.pattern)
			if err != nil {
				t.Fatalf("IndexClient.ListTracked: %v", err)
			}
			want, err := client.ShellClient.ListTracked(ctx, tc.dir, tc.pattern)
			if err != nil {
				t.Fatalf("ShellClient.ListTracked: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("ListTracked(%q, %q) go-git = %v, git = %v", tc.dir, tc.pattern, got, want)
			}
		})
	}
}

func TestMatchPathspec(t *testing.T) {
	tests := []struct {
		pattern string
		rel     string
		mode    pathspecMode
		want    bool
	}{
		{"*.bin", "a.bin", wildcardPathspec, true},
		{"*.bin", "deep/dir/a.bin", wildcardPathspec, true},
		{"*.bin", "a.bin.txt", wildcardPathspec, false},
		{"data/*.bin", "data/a.bin", wildcardPathspec, true},
		{"data/*.bin", "data/x/y.bin", wildcardPathspec, true},
		{"data/*.bin", "other/a.bin", wildcardPathspec, false},
		{"d?ta/a.bin", "data/a.bin", wildcardPathspec, true},
		{"data", "data/a.bin", wildcardPathspec, true},
		{"data/", "data/a.bin", wildcardPathspec, true},
		{"./a.bin", "a.bin", wildcardPathspec, true},
		{"**/*.psd", "x/y/z.psd", wildcardPathspec, true},
		{"a.bin", "ba.bin", wildcardPathspec, false},
		{"data/*.bin", "data/x/y.bin", globPathspec, false},
		{"data/**/*.bin", "data/x/y.bin", globPathspec, true},
		{":(glob)data/*.bin", "data/x/y.bin", wildcardPathspec, false},
		{":(glob)data/*.bin", "data/y.bin", wildcardPathspec, true},
		{":(literal)*.bin", "a.bin", wildcardPathspec, false},
		{":(literal)*.bin", "*.bin", wildcardPathspec, true},
		{"*.bin", "a.bin", literalPathspec, false},
	}

	for _, tt := range tests {
		got, err := matchPathspec(tt.pattern, tt.rel, tt.mode)
		if err != nil {
			t.Fatalf("matchPathspec(%q, %q): %v", tt.pattern, tt.rel, err)
		}
		if got != tt.want {
			t.Errorf("matchPathspec(%q, %q, %d) = %v, want %v", tt.pattern, tt.rel, tt.mode, got, tt.want)
		}
	}
}

func TestDefaultPathspecMode(t *testing.T) {
	t.Setenv("GIT_LITERAL_PATHSPECS", "")
	t.Setenv("GIT_GLOB_PATHSPECS", "")
	if got := defaultPathspecMode(); got != wildcardPathspec {
		t.Errorf("default mode = %d, want wildcard", got)
	}

	t.Setenv("GIT_GLOB_PATHSPECS", "1")
	if got := defaultPathspecMode(); got != globPathspec {
		t.Errorf("GIT_GLOB_PATHSPECS mode = %d, want glob", got)
	}

	t.Setenv("GIT_LITERAL_PATHSPECS", "1")
	if got := defaultPathspecMode(); got != literalPathspec {
		t.Errorf("GIT_LITERAL_PATHSPECS mode = %d, want literal", got)
	}
}
