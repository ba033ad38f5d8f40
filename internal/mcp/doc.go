// Package mcp implements the Model Context Protocol (MCP) server for
// craig.
//
// The server exposes the read-only query surface to AI coding
// assistants over JSON-RPC 2.0 on stdio. Ingest never happens here;
// tools only read what the CLI has indexed.
//
// # Tools
//
//   - query: semantic search with natural language
//   - similar: find code similar to a file location
//   - similar_snippet: find code similar to arbitrary input text
//   - find_symbol: glob match against indexed symbol names
//   - repos: list registered repositories
//   - files: list a repository's tracked files
//   - stats: index statistics
//   - read_file: reassemble a file's indexed content
//   - status: pending changes for one repository or all of them
//
// # Basic Usage
//
// The server is started via the mcp command and speaks on stdin/stdout:
//
//	craig mcp
//
// Client configuration:
//
//	{
//	  "mcpServers": {
//	    "craig": {
//	      "command": "/usr/local/bin/craig",
//	      "args": ["mcp"]
//	    }
//	  }
//	}
//
// # Tool: query
//
//	Request:
//	{
//	  "name": "query",
//	  "arguments": {
//	    "query": "where is retry backoff implemented",
//	    "repo": "myrepo",
//	    "limit": 10,
//	    "min_similarity": 0.3,
//	    "language": "go"
//	  }
//	}
//
// Results carry the repository, file path, line range, symbol, cosine
// similarity, and chunk content for each hit.
//
// # Error Handling
//
// Failures map to JSON-RPC error codes:
//   - -32602: invalid params (missing or malformed arguments)
//   - -32603: internal error (database, embedding provider)
//   - -32001: repository not found
//   - -32002: ingest in progress
//   - -32003: file not found
//   - -32004: empty query
//
// # Logging
//
// All logging goes to stderr; stdout is reserved for protocol frames.
package mcp
