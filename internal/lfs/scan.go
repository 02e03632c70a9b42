package lfs

import (
	"context"
	"fmt"
	"path"

	"github.com/schaermu/lfsmend/internal/git"
)

// attributesFile is the per-directory attribute declaration file name
const attributesFile = ".gitattributes"

// FindAttributeFiles returns every tracked .gitattributes file, sorted by path.
// Untracked attribute files are ignored.
func FindAttributeFiles(ctx context.Context, client git.Client) ([]AttributeFile, error) {
	// "*" crosses directory boundaries in pathspecs, so this also finds nested files
	tracked, err := client.ListTracked(ctx, "", "*"+attributesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked attribute files: %w", err)
	}

	var files []AttributeFile
	for _, p := range git.SortedUnique(tracked) {
		if path.Base(p) != attributesFile {
			continue
		}
		dir := path.Dir(p)
		if dir == "." {
			dir = ""
		}
		files = append(files, AttributeFile{Path: p, Dir: dir})
	}
	return files, nil
}
