package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
)

// RootPath is the node path of the tree root.
const RootPath = "."

// Node is one entry in the hash tree: a file leaf or a directory rollup.
type Node struct {
	Path  string // repository-relative, "/"-separated, "." for the root
	Hash  string // leaf: content hash; directory: rollup of child hashes
	IsDir bool
}

// Tree is the full path-keyed hash tree for one repository snapshot.
// Keying by path rather than building a pointer structure keeps partial
// updates and diffs to plain map lookups.
type Tree struct {
	Nodes map[string]Node
}

// HashFile computes the hex SHA-256 digest of a file's bytes.
func HashFile(absPath string) (string, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Build constructs the tree from leaf hashes: a map of relative file path
// to content hash. Directory hashes roll up bottom-up from the sorted
// (child-name, child-hash) pairs, so the result is independent of
// enumeration order and a single leaf change propagates to the root.
func Build(leafHashes map[string]string) *Tree {
	t := &Tree{Nodes: make(map[string]Node, len(leafHashes)*2)}

	children := make(map[string]map[string]bool)
	for filePath, hash := range leafHashes {
		t.Nodes[filePath] = Node{Path: filePath, Hash: hash}

		child := filePath
		for {
			parent := parentPath(child)
			if children[parent] == nil {
				children[parent] = make(map[string]bool)
			}
			children[parent][child] = true
			if parent == RootPath {
				break
			}
			child = parent
		}
	}

	// Deepest directories first so children are hashed before parents.
	dirs := make([]string, 0, len(children))
	for dir := range children {
		dirs = append(dirs, dir)
	}
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := depth(dirs[i]), depth(dirs[j])
		if di != dj {
			return di > dj
		}
		return dirs[i] < dirs[j]
	})

	for _, dir := range dirs {
		names := make([]string, 0, len(children[dir]))
		for child := range children[dir] {
			names = append(names, child)
		}
		sort.Strings(names)

		h := sha256.New()
		for _, name := range names {
			fmt.Fprintf(h, "%s\x00%s\x00", path.Base(name), t.Nodes[name].Hash)
		}
		t.Nodes[dir] = Node{Path: dir, Hash: hex.EncodeToString(h.Sum(nil)), IsDir: true}
	}

	return t
}

// Leaves returns the file nodes as a path-to-hash map.
func (t *Tree) Leaves() map[string]string {
	leaves := make(map[string]string)
	for p, n := range t.Nodes {
		if !n.IsDir {
			leaves[p] = n.Hash
		}
	}
	return leaves
}

// Root returns the root node and whether the tree is non-empty.
func (t *Tree) Root() (Node, bool) {
	n, ok := t.Nodes[RootPath]
	return n, ok
}

func parentPath(p string) string {
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return RootPath
	}
	return p[:idx]
}

func depth(p string) int {
	if p == RootPath {
		return 0
	}
	return strings.Count(p, "/") + 1
}
