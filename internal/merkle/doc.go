// Package merkle builds and diffs content hash trees for change detection.
//
// Every tracked file is a leaf whose hash is the SHA-256 of its bytes.
// Directory hashes are derived from their children, so one changed file
// changes every hash on the path to the root and nothing else. Diffing
// the current tree against the persisted one walks top-down and skips
// entire subtrees whose directory hashes still match.
//
// # Basic Usage
//
//	leaves := map[string]string{}
//	for _, path := range files {
//	    hash, err := merkle.HashFile(filepath.Join(root, path))
//	    if err != nil {
//	        return err
//	    }
//	    leaves[path] = hash
//	}
//	tree := merkle.Build(leaves)
//
//	cs := merkle.Diff(tree, storedNodes)
//	for _, path := range cs.Modified {
//	    // re-chunk and re-embed path
//	}
//
// All paths are repository-relative with forward slashes; the root node
// is always ".".
package merkle
