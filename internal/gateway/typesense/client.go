package typesense

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
	"github.com/slimsayari/woocommerce-typesense-search/internal/gateway"
	"github.com/slimsayari/woocommerce-typesense-search/pkg/httpclient"
)

const apiKeyHeader = "X-TYPESENSE-API-KEY"

// Client is the Typesense implementation of gateway.Gateway. All requests go
// through a circuit-breaker-wrapped HTTP client; retries and timeouts live
// there, not here.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.CircuitBreakerClient
	logger  *slog.Logger
}

// New creates a Typesense gateway client.
func New(baseURL, apiKey string, hc *httpclient.CircuitBreakerClient, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    hc,
		logger:  logger,
	}
}

// searchResponse mirrors the engine's search result body.
type searchResponse struct {
	Hits         []gateway.Hit `json:"hits"`
	Found        int           `json:"found"`
	FacetCounts  []facetField  `json:"facet_counts"`
	SearchTimeMs int64         `json:"search_time_ms"`
}

type facetField struct {
	FieldName string `json:"field_name"`
	Counts    []struct {
		Value string `json:"value"`
		Count int    `json:"count"`
	} `json:"counts"`
}

// Search implements gateway.Gateway.
func (c *Client) Search(ctx context.Context, query *domain.CompiledQuery, collection string) (*gateway.SearchResponse, error) {
	endpoint := fmt.Sprintf("%s/collections/%s/documents/search?%s",
		c.baseURL, url.PathEscape(collection), searchParams(query).Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrEngineUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: search returned status %d: %s", gateway.ErrEngineUnavailable, resp.StatusCode, string(body))
	}

	var raw searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", gateway.ErrEngineUnavailable, err)
	}

	return convertResponse(&raw), nil
}

// multiSearchBody is the POST /multi_search request shape.
type multiSearchBody struct {
	Searches []map[string]any `json:"searches"`
}

// multiSearchResult legs carry either a search result or an error payload.
type multiSearchResult struct {
	searchResponse
	Code  int    `json:"code"`
	Error string `json:"error"`
}

// MultiSearch implements gateway.Gateway. One engine round trip; each leg of
// the response can fail independently.
func (c *Client) MultiSearch(ctx context.Context, reqs []gateway.SearchRequest) ([]gateway.MultiSearchResult, error) {
	body := multiSearchBody{Searches: make([]map[string]any, 0, len(reqs))}
	for _, r := range reqs {
		leg := map[string]any{"collection": r.Collection}
		for k, v := range searchParams(r.Query) {
			leg[k] = v[0]
		}
		body.Searches = append(body.Searches, leg)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal multi_search body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/multi_search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create multi_search request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrEngineUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: multi_search returned status %d: %s", gateway.ErrEngineUnavailable, resp.StatusCode, string(body))
	}

	var raw struct {
		Results []multiSearchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode multi_search response: %v", gateway.ErrEngineUnavailable, err)
	}

	out := make([]gateway.MultiSearchResult, 0, len(raw.Results))
	for i, leg := range raw.Results {
		if leg.Error != "" {
			c.logger.WarnContext(ctx, "multi_search leg failed",
				slog.Int("leg", i),
				slog.Int("code", leg.Code),
				slog.String("error", leg.Error),
			)
			out = append(out, gateway.MultiSearchResult{
				Err: fmt.Errorf("multi_search leg %d: %s (code %d)", i, leg.Error, leg.Code),
			})
			continue
		}
		out = append(out, gateway.MultiSearchResult{Response: convertResponse(&leg.searchResponse)})
	}
	return out, nil
}

// Upsert implements gateway.Gateway.
func (c *Client) Upsert(ctx context.Context, collection string, doc *domain.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	endpoint := fmt.Sprintf("%s/collections/%s/documents?action=upsert", c.baseURL, url.PathEscape(collection))
	return c.write(ctx, http.MethodPost, endpoint, payload, "application/json")
}

// Delete implements gateway.Gateway. A 404 from the engine is treated as
// success so deletes are idempotent.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	endpoint := fmt.Sprintf("%s/collections/%s/documents/%s",
		c.baseURL, url.PathEscape(collection), url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrEngineUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("delete document %s: status %d: %s", id, resp.StatusCode, string(body))
	}
	return nil
}

// BulkUpsert implements gateway.Gateway using the JSONL import endpoint.
func (c *Client) BulkUpsert(ctx context.Context, collection string, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range docs {
		if err := enc.Encode(&docs[i]); err != nil {
			return fmt.Errorf("marshal document %s: %w", docs[i].ID, err)
		}
	}

	endpoint := fmt.Sprintf("%s/collections/%s/documents/import?action=upsert", c.baseURL, url.PathEscape(collection))
	return c.write(ctx, http.MethodPost, endpoint, buf.Bytes(), "text/plain")
}

// Ping implements gateway.Gateway via the engine health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrEngineUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned status %d", gateway.ErrEngineUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) write(ctx context.Context, method, endpoint string, payload []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrEngineUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("engine write returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// searchParams renders a CompiledQuery as engine query parameters.
func searchParams(q *domain.CompiledQuery) url.Values {
	params := url.Values{}
	params.Set("q", q.QueryText)
	params.Set("query_by", strings.Join(q.QueryFields, ","))
	if q.FilterExpression != "" {
		params.Set("filter_by", q.FilterExpression)
	}
	if len(q.FacetFields) > 0 {
		params.Set("facet_by", strings.Join(q.FacetFields, ","))
		params.Set("max_facet_values", strconv.Itoa(q.MaxFacetValues))
	}
	if q.SortExpression != "" {
		params.Set("sort_by", q.SortExpression)
	}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("per_page", strconv.Itoa(q.PerPage))
	return params
}

func convertResponse(raw *searchResponse) *gateway.SearchResponse {
	out := &gateway.SearchResponse{
		Hits:         raw.Hits,
		Found:        raw.Found,
		SearchTimeMs: raw.SearchTimeMs,
	}
	for _, f := range raw.FacetCounts {
		ff := gateway.FacetField{FieldName: f.FieldName}
		for _, c := range f.Counts {
			ff.Counts = append(ff.Counts, gateway.FacetCount{Value: c.Value, Count: c.Count})
		}
		out.FacetCounts = append(out.FacetCounts, ff)
	}
	return out
}
