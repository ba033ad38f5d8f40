package merkle

import (
	"strings"

	"github.com/olemoy/craigpy/pkg/types"
)

// Diff compares a freshly computed tree against the persisted node set
// for the same repository and produces the changeset. Subtrees whose
// directory hash matches the stored node are skipped wholesale without
// visiting their leaves, so diff cost is proportional to changed content.
//
// A path absent from the current tree — whether deleted on disk or newly
// excluded by the filter — lands in Deleted either way: the index only
// tracks what the filter admits.
func Diff(current *Tree, stored map[string]Node) *types.Changeset {
	cs := &types.Changeset{}

	if len(stored) == 0 {
		for p, n := range current.Nodes {
			if !n.IsDir {
				cs.Added = append(cs.Added, p)
			}
		}
		cs.Sort()
		return cs
	}

	// Walk top-down from the root, short-circuiting matched directories.
	childIndex := buildChildIndex(current)
	var visit func(dir string)
	visit = func(dir string) {
		for _, childPath := range childIndex[dir] {
			child := current.Nodes[childPath]
			storedNode, existed := stored[childPath]
			if child.IsDir {
				if existed && storedNode.IsDir && storedNode.Hash == child.Hash {
					markSubtreeUnchanged(current, childPath, cs)
					continue
				}
				visit(childPath)
				continue
			}
			switch {
			case !existed || storedNode.IsDir:
				cs.Added = append(cs.Added, childPath)
			case storedNode.Hash != child.Hash:
				cs.Modified = append(cs.Modified, childPath)
			default:
				cs.Unchanged = append(cs.Unchanged, childPath)
			}
		}
	}
	visit(RootPath)

	// Stored leaves absent from the current tree were deleted.
	for p, n := range stored {
		if n.IsDir {
			continue
		}
		if _, ok := current.Nodes[p]; !ok {
			cs.Deleted = append(cs.Deleted, p)
		}
	}

	cs.Sort()
	return cs
}

// DirtyDirs returns the directory paths whose rollup hash differs from
// the stored node set (or which are new), i.e. the ancestors of changed
// leaves. Only these need re-persisting after an ingest.
func DirtyDirs(current *Tree, stored map[string]Node) []string {
	var dirty []string
	for p, n := range current.Nodes {
		if !n.IsDir {
			continue
		}
		if old, ok := stored[p]; !ok || !old.IsDir || old.Hash != n.Hash {
			dirty = append(dirty, p)
		}
	}
	return dirty
}

func buildChildIndex(t *Tree) map[string][]string {
	index := make(map[string][]string)
	for p := range t.Nodes {
		if p == RootPath {
			continue
		}
		parent := parentPath(p)
		index[parent] = append(index[parent], p)
	}
	return index
}

func markSubtreeUnchanged(t *Tree, dir string, cs *types.Changeset) {
	prefix := dir + "/"
	for p, n := range t.Nodes {
		if n.IsDir {
			continue
		}
		if p == dir || strings.HasPrefix(p, prefix) {
			cs.Unchanged = append(cs.Unchanged, p)
		}
	}
}
