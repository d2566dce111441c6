// ABOUTME: Retrieval collaborator contract: ranked textual matches for a query.

package retrieval

import "context"

// Document is one ranked retrieval result.
type Document struct {
	Text     string
	Metadata map[string]string
}

// Retriever returns the topK most relevant documents for a query, optionally
// restricted to a category ("" means no filter).
type Retriever interface {
	Query(ctx context.Context, text string, topK int, category string) ([]Document, error)
}
