package lfs

import (
	"context"
	"fmt"

	"github.com/schaermu/lfsmend/internal/git"
)

// lfsValue is the attribute value LFS-tracked paths resolve to
const lfsValue = "lfs"

// verifiedAttributes are queried in this order; all must resolve to lfsValue
var verifiedAttributes = []string{"filter", "diff", "merge"}

// VerifyCandidates keeps the candidates whose filter, diff and merge
// attributes all resolve to lfs. Input order is preserved.
func VerifyCandidates(ctx context.Context, client git.Client, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	results := make([]map[string]string, 0, len(verifiedAttributes))
	for _, attr := range verifiedAttributes {
		values, err := client.CheckAttr(ctx, attr, candidates)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s attribute: %w", attr, err)
		}
		results = append(results, values)
	}

	var verified []string
	for _, p := range candidates {
		if allLFS(p, results) {
			verified = append(verified, p)
		}
	}
	return verified, nil
}

func allLFS(p string, results []map[string]string) bool {
	for _, values := range results {
		if values[p] != lfsValue {
			return false
		}
	}
	return true
}
