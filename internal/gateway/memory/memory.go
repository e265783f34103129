package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
	"github.com/slimsayari/woocommerce-typesense-search/internal/gateway"
)

// Gateway is an in-memory implementation of gateway.Gateway. It evaluates the
// compiled query's clause groups directly (the filter expression string is an
// engine dialect it does not parse) and counts facets under the full current
// filter set. Thread-safe via sync.RWMutex.
type Gateway struct {
	mu          sync.RWMutex
	collections map[string]map[string]domain.Document
}

// New creates an empty in-memory gateway.
func New() *Gateway {
	return &Gateway{collections: make(map[string]map[string]domain.Document)}
}

// Search implements gateway.Gateway.
func (g *Gateway) Search(_ context.Context, query *domain.CompiledQuery, collection string) (*gateway.SearchResponse, error) {
	start := time.Now()

	g.mu.RLock()
	defer g.mu.RUnlock()

	matched := make([]domain.Document, 0)
	queryLower := strings.ToLower(query.QueryText)

	for _, doc := range g.collections[collection] {
		if !matchesText(doc, queryLower, query.QueryFields) {
			continue
		}
		if !matchesGroups(doc, query.Groups) {
			continue
		}
		matched = append(matched, doc)
	}

	sortDocuments(matched, query.SortExpression)

	total := len(matched)
	facets := countFacets(matched, query.FacetFields, query.MaxFacetValues)

	page := query.Page
	if page < 1 {
		page = 1
	}
	perPage := query.PerPage
	if perPage < 1 {
		perPage = 1
	}

	offset := (page - 1) * perPage
	if offset > total {
		offset = total
	}
	end := offset + perPage
	if end > total {
		end = total
	}

	hits := make([]gateway.Hit, 0, end-offset)
	for _, doc := range matched[offset:end] {
		hits = append(hits, gateway.Hit{Document: doc})
	}

	return &gateway.SearchResponse{
		Hits:         hits,
		Found:        total,
		FacetCounts:  facets,
		SearchTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// MultiSearch implements gateway.Gateway by evaluating each leg locally.
func (g *Gateway) MultiSearch(ctx context.Context, reqs []gateway.SearchRequest) ([]gateway.MultiSearchResult, error) {
	results := make([]gateway.MultiSearchResult, 0, len(reqs))
	for _, r := range reqs {
		resp, err := g.Search(ctx, r.Query, r.Collection)
		results = append(results, gateway.MultiSearchResult{Response: resp, Err: err})
	}
	return results, nil
}

// Upsert implements gateway.Gateway.
func (g *Gateway) Upsert(_ context.Context, collection string, doc *domain.Document) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.collections[collection] == nil {
		g.collections[collection] = make(map[string]domain.Document)
	}
	g.collections[collection][doc.ID] = *doc
	return nil
}

// Delete implements gateway.Gateway.
func (g *Gateway) Delete(_ context.Context, collection, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.collections[collection], id)
	return nil
}

// BulkUpsert implements gateway.Gateway.
func (g *Gateway) BulkUpsert(_ context.Context, collection string, docs []domain.Document) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.collections[collection] == nil {
		g.collections[collection] = make(map[string]domain.Document)
	}
	for i := range docs {
		g.collections[collection][docs[i].ID] = docs[i]
	}
	return nil
}

// Ping implements gateway.Gateway.
func (g *Gateway) Ping(_ context.Context) error { return nil }

// Count returns the number of documents in a collection.
func (g *Gateway) Count(collection string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.collections[collection])
}

func matchesText(doc domain.Document, queryLower string, fields []string) bool {
	if queryLower == "" || queryLower == "*" {
		return true
	}
	for _, f := range fields {
		var hay string
		switch f {
		case "name":
			hay = doc.Name
		case "description":
			hay = doc.Description
		case "short_description":
			hay = doc.ShortDescription
		case "sku":
			hay = doc.SKU
		}
		if hay != "" && strings.Contains(strings.ToLower(hay), queryLower) {
			return true
		}
	}
	return false
}

func matchesGroups(doc domain.Document, groups []domain.ClauseGroup) bool {
	for _, g := range groups {
		if len(g.Clauses) == 0 {
			continue
		}
		matched := false
		for _, c := range g.Clauses {
			if matchesClause(doc, c) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func matchesClause(doc domain.Document, c domain.FilterClause) bool {
	switch c.Operator {
	case domain.OpRangeGte:
		bound, err := strconv.ParseFloat(firstValue(c.Values), 64)
		return err == nil && numericField(doc, c.Field) >= bound
	case domain.OpRangeLte:
		bound, err := strconv.ParseFloat(firstValue(c.Values), 64)
		return err == nil && numericField(doc, c.Field) <= bound
	case domain.OpEqualsBool:
		want := firstValue(c.Values) == "true"
		if c.Field == "on_sale" {
			return doc.OnSale == want
		}
		return false
	default:
		for _, want := range c.Values {
			for _, have := range stringField(doc, c.Field) {
				if have == want {
					return true
				}
			}
		}
		return false
	}
}

func numericField(doc domain.Document, field string) float64 {
	switch field {
	case "price":
		return doc.Price
	case "rating":
		return doc.Rating
	case "created_at":
		return float64(doc.CreatedAt)
	default:
		return 0
	}
}

func stringField(doc domain.Document, field string) []string {
	switch field {
	case "categories":
		return doc.Categories
	case "attributes":
		return doc.Attributes
	case "tags":
		return doc.Tags
	case "stock_status":
		return []string{doc.StockStatus}
	default:
		return nil
	}
}

func sortDocuments(docs []domain.Document, sortExpr string) {
	switch sortExpr {
	case "price:asc":
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].Price < docs[j].Price })
	case "price:desc":
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].Price > docs[j].Price })
	case "created_at:desc":
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].CreatedAt > docs[j].CreatedAt })
	case "rating:desc":
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].Rating > docs[j].Rating })
	default:
		// Engine default: sort by ID for a stable order across runs.
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	}
}

func countFacets(docs []domain.Document, fields []string, maxValues int) []gateway.FacetField {
	out := make([]gateway.FacetField, 0, len(fields))
	for _, field := range fields {
		counts := make(map[string]int)
		for _, doc := range docs {
			switch field {
			case "on_sale":
				counts[strconv.FormatBool(doc.OnSale)]++
			case "rating":
				counts[strconv.FormatFloat(doc.Rating, 'f', -1, 64)]++
			default:
				for _, v := range stringField(doc, field) {
					if v != "" {
						counts[v]++
					}
				}
			}
		}

		values := make([]string, 0, len(counts))
		for v := range counts {
			values = append(values, v)
		}
		// Highest count first, value as tie-break, like the real engine.
		sort.Slice(values, func(i, j int) bool {
			if counts[values[i]] != counts[values[j]] {
				return counts[values[i]] > counts[values[j]]
			}
			return values[i] < values[j]
		})
		if maxValues > 0 && len(values) > maxValues {
			values = values[:maxValues]
		}

		ff := gateway.FacetField{FieldName: field}
		for _, v := range values {
			ff.Counts = append(ff.Counts, gateway.FacetCount{Value: v, Count: counts[v]})
		}
		out = append(out, ff)
	}
	return out
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
