package filter

import (
	"path/filepath"
	"strings"
)

// Extensions recognized as text; anything else is checked by sniffing.
var textExtensions = map[string]bool{
	".py": true, ".pyw": true, ".pyx": true, ".pyi": true,
	".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".java": true, ".kt": true, ".kts": true,
	".go": true,
	".rs": true,
	".c": true, ".h": true, ".cpp": true, ".cc": true, ".cxx": true, ".hpp": true, ".hxx": true,
	".cs": true,
	".rb": true, ".erb": true,
	".php": true,
	".swift": true,
	".scala": true,
	".lua": true,
	".pl": true, ".pm": true,
	".sh": true, ".bash": true, ".zsh": true, ".fish": true,
	".ps1": true, ".bat": true, ".cmd": true,
	".json": true, ".jsonc": true, ".json5": true,
	".yaml": true, ".yml": true,
	".toml": true, ".ini": true, ".cfg": true, ".conf": true,
	".xml": true, ".csv": true, ".tsv": true, ".env": true, ".properties": true,
	".html": true, ".htm": true, ".css": true, ".scss": true, ".sass": true, ".less": true, ".svg": true,
	".md": true, ".mdx": true, ".markdown": true, ".rst": true, ".txt": true, ".adoc": true, ".tex": true,
	".sql": true,
	".graphql": true, ".gql": true, ".proto": true,
	".tf": true, ".hcl": true,
	".ex": true, ".exs": true, ".erl": true, ".hrl": true,
	".hs": true, ".ml": true, ".mli": true,
	".nim": true, ".zig": true, ".dart": true,
	".groovy": true, ".gradle": true, ".mk": true,
}

// Extensionless files recognized as text by name.
var textFilenames = map[string]bool{
	"Makefile":    true,
	"Dockerfile":  true,
	"Jenkinsfile": true,
	"Vagrantfile": true,
}

var languageByExt = map[string]string{
	".py": "python", ".pyw": "python", ".pyx": "python", ".pyi": "python",
	".ts": "typescript", ".tsx": "typescript",
	".js": "javascript", ".jsx": "javascript", ".mjs": "javascript", ".cjs": "javascript",
	".java": "java", ".kt": "kotlin", ".kts": "kotlin",
	".go": "go",
	".rs": "rust",
	".c": "c", ".h": "c",
	".cpp": "cpp", ".cc": "cpp", ".cxx": "cpp", ".hpp": "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".sql":   "sql",
	".sh":    "shell", ".bash": "shell", ".zsh": "shell",
	".md": "markdown", ".mdx": "markdown",
	".json": "json", ".yaml": "yaml", ".yml": "yaml", ".toml": "toml",
	".html": "html", ".css": "css", ".xml": "xml",
}

// Language returns the language tag for a path, or "" when unknown.
// Unknown languages fall through to the generic chunking policy.
func Language(path string) string {
	return languageByExt[strings.ToLower(filepath.Ext(path))]
}

func isTextPath(path string) bool {
	if textFilenames[filepath.Base(path)] {
		return true
	}
	return textExtensions[strings.ToLower(filepath.Ext(path))]
}
