package types

import "sort"

// Changeset is the result of diffing the current merkle tree against the
// persisted one. Paths are repository-relative, sorted for determinism.
type Changeset struct {
	Added     []string
	Modified  []string
	Deleted   []string
	Unchanged []string
}

// HasChanges reports whether any path was added, modified, or deleted.
// Unchanged paths never count as changes.
func (cs *Changeset) HasChanges() bool {
	return len(cs.Added) > 0 || len(cs.Modified) > 0 || len(cs.Deleted) > 0
}

// Total returns the number of changed paths.
func (cs *Changeset) Total() int {
	return len(cs.Added) + len(cs.Modified) + len(cs.Deleted)
}

// Sort orders every path list lexicographically.
func (cs *Changeset) Sort() {
	sort.Strings(cs.Added)
	sort.Strings(cs.Modified)
	sort.Strings(cs.Deleted)
	sort.Strings(cs.Unchanged)
}
