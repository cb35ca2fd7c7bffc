package schema

import "context"

// Refresher bundles the store with the embedding and vector index clients
// so callers can re-embed the catalog through one handle.
type Refresher struct {
	store    *Store
	embedder Embedder
	index    VectorIndex
}

func NewRefresher(store *Store, embedder Embedder, index VectorIndex) *Refresher {
	return &Refresher{store: store, embedder: embedder, index: index}
}

// Refresh re-embeds every schema element and upserts the vectors.
// It returns the number of elements refreshed.
func (r *Refresher) Refresh(ctx context.Context) (int, error) {
	return r.store.Refresh(ctx, r.embedder, r.index)
}
