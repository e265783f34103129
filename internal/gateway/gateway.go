package gateway

import (
	"context"
	"errors"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
)

// ErrEngineUnavailable is returned for network failures and non-2xx engine
// responses. Orchestrators react by falling back to the content store's native
// listing; it must never surface to the user as a 5xx.
var ErrEngineUnavailable = errors.New("search engine unavailable")

// Hit is a single matched document in engine order.
type Hit struct {
	Document domain.Document `json:"document"`
}

// FacetCount is one value/count pair as returned by the engine.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FacetField is the engine's per-field facet breakdown, computed under the
// current filter set.
type FacetField struct {
	FieldName string       `json:"field_name"`
	Counts    []FacetCount `json:"counts"`
}

// SearchResponse is the raw engine result for one sub-query.
type SearchResponse struct {
	Hits         []Hit        `json:"hits"`
	Found        int          `json:"found"`
	FacetCounts  []FacetField `json:"facet_counts,omitempty"`
	SearchTimeMs int64        `json:"search_time_ms"`
}

// SearchRequest pairs a compiled query with a target collection for batched
// multi-search calls.
type SearchRequest struct {
	Collection string
	Query      *domain.CompiledQuery
}

// MultiSearchResult holds one leg of a batched multi-search. Exactly one of
// Response and Err is set; a failed leg never fails the batch.
type MultiSearchResult struct {
	Response *SearchResponse
	Err      error
}

// Gateway executes compiled queries against a search backend and maintains
// the indexed documents. Implementations own timeouts and retries; the caller
// sees a single synchronous call returning a result or a typed error.
type Gateway interface {
	// Search executes one query against a collection.
	Search(ctx context.Context, query *domain.CompiledQuery, collection string) (*SearchResponse, error)

	// MultiSearch executes a batch of queries in a single engine round trip.
	// Per-leg failures are reported in the result slice; the returned error is
	// reserved for batch-level failures (the whole engine being unreachable).
	MultiSearch(ctx context.Context, reqs []SearchRequest) ([]MultiSearchResult, error)

	// Upsert adds or replaces a single document.
	Upsert(ctx context.Context, collection string, doc *domain.Document) error

	// Delete removes a document by ID. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// BulkUpsert adds or replaces documents in one batch.
	BulkUpsert(ctx context.Context, collection string, docs []domain.Document) error

	// Ping checks engine reachability for health probes.
	Ping(ctx context.Context) error
}
