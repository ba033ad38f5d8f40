package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func repoProperty(required bool) map[string]interface{} {
	desc := "Repository name to search; omit to search all indexed repositories"
	if required {
		desc = "Repository name"
	}
	return map[string]interface{}{
		"type":        "string",
		"description": desc,
	}
}

var limitProperty = map[string]interface{}{
	"type":        "integer",
	"description": "Maximum number of results to return (1-100)",
	"default":     10,
	"minimum":     1,
	"maximum":     100,
}

// queryTool returns the tool definition for query
func queryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query",
		Description: "Semantic search over indexed code with a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language description of the code to find",
				},
				"repo":  repoProperty(false),
				"limit": limitProperty,
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to one language tag (e.g. go, python)",
				},
				"path_prefix": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to files under this path prefix",
				},
				"min_similarity": map[string]interface{}{
					"type":        "number",
					"description": "Drop results below this cosine similarity (0-1)",
					"default":     0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// similarTool returns the tool definition for similar
func similarTool() mcp.Tool {
	return mcp.Tool{
		Name:        "similar",
		Description: "Find code similar to the chunk at a given file location",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repo": repoProperty(true),
				"file": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to the repository root",
				},
				"line": map[string]interface{}{
					"type":        "integer",
					"description": "Line number inside the chunk of interest",
					"minimum":     1,
				},
				"limit": limitProperty,
			},
			Required: []string{"repo", "file", "line"},
		},
	}
}

// similarSnippetTool returns the tool definition for similar_snippet
func similarSnippetTool() mcp.Tool {
	return mcp.Tool{
		Name:        "similar_snippet",
		Description: "Find indexed code similar to an arbitrary text snippet",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"snippet": map[string]interface{}{
					"type":        "string",
					"description": "Code or text to rank stored chunks against",
				},
				"repo":  repoProperty(false),
				"limit": limitProperty,
			},
			Required: []string{"snippet"},
		},
	}
}

// findSymbolTool returns the tool definition for find_symbol
func findSymbolTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_symbol",
		Description: "Find symbol definitions by name, with glob patterns (e.g. Parse*, *Handler)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Symbol name or glob pattern",
				},
				"repo":  repoProperty(false),
				"limit": limitProperty,
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to one language tag",
				},
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to one symbol kind (function, method, class, struct, interface, type)",
				},
			},
			Required: []string{"name"},
		},
	}
}

// reposTool returns the tool definition for repos
func reposTool() mcp.Tool {
	return mcp.Tool{
		Name:        "repos",
		Description: "List indexed repositories",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// filesTool returns the tool definition for files
func filesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "files",
		Description: "List tracked files of a repository, including skipped files with reasons",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repo": repoProperty(true),
				"prefix": map[string]interface{}{
					"type":        "string",
					"description": "Only list files under this path prefix",
				},
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Only list files whose path matches this glob pattern (e.g. internal/**/*.go)",
				},
			},
			Required: []string{"repo"},
		},
	}
}

// statsTool returns the tool definition for stats
func statsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "stats",
		Description: "Index statistics for one repository or the whole index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repo": repoProperty(false),
			},
		},
	}
}

// readFileTool returns the tool definition for read_file
func readFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "read_file",
		Description: "Read a tracked file's indexed content, reassembled from its chunks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repo": repoProperty(true),
				"file": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to the repository root",
				},
			},
			Required: []string{"repo", "file"},
		},
	}
}

// statusTool returns the tool definition for status
func statusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "status",
		Description: "Compare working trees against the index without modifying it; omit repo to check every repository",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repo": map[string]interface{}{
					"type":        "string",
					"description": "Repository name; omit to report all indexed repositories",
				},
			},
		},
	}
}
