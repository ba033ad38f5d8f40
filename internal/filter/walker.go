package filter

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/olemoy/craigpy/pkg/types"
)

// WalkResult is the outcome of one repository walk: the relative paths
// that passed the filter and the paths skipped by policy, with reasons.
type WalkResult struct {
	Included []string
	Skipped  []types.SkippedFile
}

// Walk traverses the repository root depth-first, applying directory
// pruning and the per-file verdict. Output ordering is deterministic.
func (f *Filter) Walk() (*WalkResult, error) {
	result := &WalkResult{}

	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == f.root {
			return nil
		}

		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if f.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			result.Skipped = append(result.Skipped, types.SkippedFile{Path: rel, Reason: "unreadable"})
			return nil
		}

		switch verdict := f.Check(rel, info.Size()); verdict {
		case Include:
			result.Included = append(result.Included, rel)
		case ExcludeIgnored:
			// Ignored paths are invisible to the index, not recorded.
		default:
			result.Skipped = append(result.Skipped, types.SkippedFile{Path: rel, Reason: f.skipReason(verdict, info.Size())})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(result.Included)
	sort.Slice(result.Skipped, func(i, j int) bool {
		return result.Skipped[i].Path < result.Skipped[j].Path
	})
	return result, nil
}
