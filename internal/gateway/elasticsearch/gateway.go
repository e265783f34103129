package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
	"github.com/slimsayari/woocommerce-typesense-search/internal/gateway"
)

// Gateway is an Elasticsearch-backed implementation of gateway.Gateway. It
// ignores the compiled query's dialect-specific filter expression and builds
// a bool query from the clause groups instead; facet fields become terms
// aggregations.
type Gateway struct {
	client      *elasticsearch.Client
	indexPrefix string
	logger      *slog.Logger
}

// esSearchResponse decodes Elasticsearch search responses.
type esSearchResponse struct {
	Took int `json:"took"`
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source domain.Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]struct {
		Buckets []struct {
			Key      any `json:"key"`
			DocCount int `json:"doc_count"`
		} `json:"buckets"`
	} `json:"aggregations"`
}

// esErrorResponse decodes Elasticsearch error responses.
type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates an Elasticsearch gateway. Collections map to indices named
// "<prefix>_<collection>"; the products index is created on startup if absent.
func New(esURL, indexPrefix string, logger *slog.Logger) (*Gateway, error) {
	if indexPrefix == "" {
		indexPrefix = DefaultIndexPrefix
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{esURL}})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to create client: %w", err)
	}

	g := &Gateway{
		client:      client,
		indexPrefix: indexPrefix,
		logger:      logger,
	}

	if err := g.ensureIndex(g.index(domain.CollectionProducts)); err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to ensure index: %w", err)
	}

	return g, nil
}

func (g *Gateway) index(collection string) string {
	return g.indexPrefix + "_" + collection
}

// Ping implements gateway.Gateway.
func (g *Gateway) Ping(ctx context.Context) error {
	res, err := g.client.Ping(g.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: elasticsearch ping: %v", gateway.ErrEngineUnavailable, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("%w: elasticsearch ping: unexpected status %s", gateway.ErrEngineUnavailable, res.Status())
	}
	return nil
}

// ensureIndex checks whether the index exists and creates it if not.
func (g *Gateway) ensureIndex(name string) error {
	res, err := g.client.Indices.Exists([]string{name})
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == 200 {
		g.logger.Info("elasticsearch index already exists", "index", name)
		return nil
	}

	res, err = g.client.Indices.Create(
		name,
		g.client.Indices.Create.WithBody(strings.NewReader(buildIndexMapping())),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("create index: %s", decodeError(res.Body, res.Status()))
	}

	g.logger.Info("elasticsearch index created", "index", name)
	return nil
}

// Search implements gateway.Gateway.
func (g *Gateway) Search(ctx context.Context, query *domain.CompiledQuery, collection string) (*gateway.SearchResponse, error) {
	body := buildSearchBody(query)

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: marshal query: %w", err)
	}

	res, err := g.client.Search(
		g.client.Search.WithIndex(g.index(collection)),
		g.client.Search.WithBody(bytes.NewReader(data)),
		g.client.Search.WithContext(ctx),
		g.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: elasticsearch search: %v", gateway.ErrEngineUnavailable, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, fmt.Errorf("%w: elasticsearch search: %s", gateway.ErrEngineUnavailable, decodeError(res.Body, res.Status()))
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("%w: elasticsearch search: decode response: %v", gateway.ErrEngineUnavailable, err)
	}

	out := &gateway.SearchResponse{
		Found:        esResp.Hits.Total.Value,
		SearchTimeMs: int64(esResp.Took),
	}
	for _, hit := range esResp.Hits.Hits {
		out.Hits = append(out.Hits, gateway.Hit{Document: hit.Source})
	}
	for _, field := range query.FacetFields {
		agg, ok := esResp.Aggregations[field]
		if !ok {
			continue
		}
		ff := gateway.FacetField{FieldName: field}
		for _, b := range agg.Buckets {
			ff.Counts = append(ff.Counts, gateway.FacetCount{Value: fmt.Sprintf("%v", b.Key), Count: b.DocCount})
		}
		out.FacetCounts = append(out.FacetCounts, ff)
	}

	return out, nil
}

// MultiSearch implements gateway.Gateway. Elasticsearch legs are executed
// sequentially; each leg fails independently.
func (g *Gateway) MultiSearch(ctx context.Context, reqs []gateway.SearchRequest) ([]gateway.MultiSearchResult, error) {
	results := make([]gateway.MultiSearchResult, 0, len(reqs))
	for _, r := range reqs {
		resp, err := g.Search(ctx, r.Query, r.Collection)
		results = append(results, gateway.MultiSearchResult{Response: resp, Err: err})
	}
	return results, nil
}

// Upsert implements gateway.Gateway.
func (g *Gateway) Upsert(ctx context.Context, collection string, doc *domain.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("elasticsearch upsert: marshal document: %w", err)
	}

	res, err := g.client.Index(
		g.index(collection),
		bytes.NewReader(data),
		g.client.Index.WithDocumentID(doc.ID),
		g.client.Index.WithRefresh("true"),
		g.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: elasticsearch upsert: %v", gateway.ErrEngineUnavailable, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch upsert: %s", decodeError(res.Body, res.Status()))
	}

	g.logger.Debug("indexed document", "id", doc.ID, "collection", collection)
	return nil
}

// Delete implements gateway.Gateway. A 404 is ignored.
func (g *Gateway) Delete(ctx context.Context, collection, id string) error {
	res, err := g.client.Delete(
		g.index(collection),
		id,
		g.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: elasticsearch delete: %v", gateway.ErrEngineUnavailable, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("elasticsearch delete: %s", decodeError(res.Body, res.Status()))
	}

	g.logger.Debug("deleted document", "id", id, "collection", collection)
	return nil
}

// BulkUpsert implements gateway.Gateway using the bulk NDJSON API.
func (g *Gateway) BulkUpsert(ctx context.Context, collection string, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	idx := g.index(collection)
	var buf bytes.Buffer
	for i := range docs {
		action := map[string]any{
			"index": map[string]any{"_index": idx, "_id": docs[i].ID},
		}
		if err := json.NewEncoder(&buf).Encode(action); err != nil {
			return fmt.Errorf("elasticsearch bulk: encode action: %w", err)
		}
		if err := json.NewEncoder(&buf).Encode(docs[i]); err != nil {
			return fmt.Errorf("elasticsearch bulk: encode document: %w", err)
		}
	}

	res, err := g.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		g.client.Bulk.WithIndex(idx),
		g.client.Bulk.WithRefresh("true"),
		g.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: elasticsearch bulk: %v", gateway.ErrEngineUnavailable, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch bulk: %s", decodeError(res.Body, res.Status()))
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []struct {
			Index struct {
				ID    string `json:"_id"`
				Error struct {
					Type   string `json:"type"`
					Reason string `json:"reason"`
				} `json:"error"`
			} `json:"index"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("elasticsearch bulk: decode response: %w", err)
	}
	if bulkResp.Errors {
		var errMsgs []string
		for _, item := range bulkResp.Items {
			if item.Index.Error.Type != "" {
				errMsgs = append(errMsgs, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason))
			}
		}
		return fmt.Errorf("elasticsearch bulk: partial errors: %s", strings.Join(errMsgs, "; "))
	}

	g.logger.Info("bulk indexed documents", "count", len(docs), "collection", collection)
	return nil
}

// buildSearchBody constructs the Elasticsearch query DSL from a CompiledQuery.
func buildSearchBody(query *domain.CompiledQuery) map[string]any {
	var mustClause any
	if query.QueryText != "" && query.QueryText != "*" {
		mustClause = map[string]any{
			"multi_match": map[string]any{
				"query":         query.QueryText,
				"fields":        boostFields(query.QueryFields),
				"type":          "best_fields",
				"fuzziness":     "AUTO",
				"prefix_length": 1,
			},
		}
	} else {
		mustClause = map[string]any{"match_all": map[string]any{}}
	}

	boolQuery := map[string]any{"must": []any{mustClause}}
	if filters := buildFilters(query.Groups); len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	body := map[string]any{
		"query":            map[string]any{"bool": boolQuery},
		"from":             (query.Page - 1) * query.PerPage,
		"size":             query.PerPage,
		"track_total_hits": true,
	}

	if len(query.FacetFields) > 0 {
		aggs := make(map[string]any, len(query.FacetFields))
		for _, field := range query.FacetFields {
			aggs[field] = map[string]any{
				"terms": map[string]any{"field": field, "size": query.MaxFacetValues},
			}
		}
		body["aggs"] = aggs
	}

	if sortClause := buildSort(query.SortExpression); sortClause != nil {
		body["sort"] = sortClause
	}

	return body
}

// buildFilters turns clause groups into bool filter clauses. Each group is one
// filter entry; multi-clause groups become a nested bool should.
func buildFilters(groups []domain.ClauseGroup) []any {
	var filters []any
	for _, group := range groups {
		if len(group.Clauses) == 0 {
			continue
		}
		if len(group.Clauses) == 1 {
			filters = append(filters, clauseFilter(group.Clauses[0]))
			continue
		}
		should := make([]any, 0, len(group.Clauses))
		for _, c := range group.Clauses {
			should = append(should, clauseFilter(c))
		}
		filters = append(filters, map[string]any{
			"bool": map[string]any{"should": should, "minimum_should_match": 1},
		})
	}
	return filters
}

func clauseFilter(c domain.FilterClause) map[string]any {
	switch c.Operator {
	case domain.OpRangeGte:
		return map[string]any{"range": map[string]any{c.Field: map[string]any{"gte": firstValue(c.Values)}}}
	case domain.OpRangeLte:
		return map[string]any{"range": map[string]any{c.Field: map[string]any{"lte": firstValue(c.Values)}}}
	case domain.OpEqualsBool:
		return map[string]any{"term": map[string]any{c.Field: firstValue(c.Values) == "true"}}
	default:
		return map[string]any{"terms": map[string]any{c.Field: c.Values}}
	}
}

// buildSort translates the compiled "field:direction" sort form. Text-match
// ordering maps to the ES relevance score.
func buildSort(sortExpr string) []any {
	if sortExpr == "" {
		return nil
	}
	field, dir, ok := strings.Cut(sortExpr, ":")
	if !ok {
		return nil
	}
	if field == "_text_match" {
		field = "_score"
	}
	return []any{map[string]any{field: dir}}
}

func boostFields(fields []string) []string {
	out := make([]string, 0, len(fields))
	for i, f := range fields {
		if i == 0 {
			out = append(out, f+"^3")
			continue
		}
		out = append(out, f)
	}
	return out
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func decodeError(body io.Reader, status string) string {
	var errResp esErrorResponse
	if err := json.NewDecoder(body).Decode(&errResp); err == nil && errResp.Error.Type != "" {
		return fmt.Sprintf("%s: %s", errResp.Error.Type, errResp.Error.Reason)
	}
	return "unexpected status " + status
}
