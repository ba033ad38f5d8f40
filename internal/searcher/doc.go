// Package searcher answers read-only queries against the index:
// semantic search, similar-code lookup, symbol search, and file
// listing.
//
// Searchers never write, so they are safe to serve concurrently with a
// running ingest. Query text is embedded with the same provider the
// index was built with; symbol lookup matches glob patterns against
// the symbol names the chunker recorded.
//
//	s := searcher.New(store, embed)
//	results, err := s.SemanticSearch(ctx, "parse configuration file", searcher.Options{
//	    Repository: "myrepo",
//	    Limit:      10,
//	})
package searcher
