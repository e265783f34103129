package typesense

import (
	"strings"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
)

// Serializer renders clause groups in the Typesense filter_by dialect, e.g.
//
//	price:>=20 && price:<=80 && categories:=[`Chaussures`,`Sacs`]
//
// Multi-clause groups render as a parenthesized OR.
type Serializer struct{}

// Serialize implements query.ClauseSerializer.
func (Serializer) Serialize(groups []domain.ClauseGroup) string {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		if len(g.Clauses) == 0 {
			continue
		}
		if len(g.Clauses) == 1 {
			parts = append(parts, serializeClause(g.Clauses[0]))
			continue
		}
		members := make([]string, 0, len(g.Clauses))
		for _, c := range g.Clauses {
			members = append(members, serializeClause(c))
		}
		parts = append(parts, "("+strings.Join(members, " || ")+")")
	}
	return strings.Join(parts, " && ")
}

// MatchAll implements query.ClauseSerializer.
func (Serializer) MatchAll() string { return "*" }

// SortExpression implements query.ClauseSerializer. Relevance with a real
// search term sorts by text match score; relevance without one leaves the
// engine default ordering.
func (Serializer) SortExpression(sort string, hasFreeText bool) string {
	switch sort {
	case domain.SortPriceAsc:
		return "price:asc"
	case domain.SortPriceDesc:
		return "price:desc"
	case domain.SortNewest:
		return "created_at:desc"
	case domain.SortRatingDesc:
		return "rating:desc"
	default:
		if hasFreeText {
			return "_text_match:desc"
		}
		return ""
	}
}

func serializeClause(c domain.FilterClause) string {
	switch c.Operator {
	case domain.OpRangeGte:
		return c.Field + ":>=" + first(c.Values)
	case domain.OpRangeLte:
		return c.Field + ":<=" + first(c.Values)
	case domain.OpEqualsBool:
		return c.Field + ":=" + first(c.Values)
	default:
		quoted := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			quoted = append(quoted, "`"+v+"`")
		}
		return c.Field + ":=[" + strings.Join(quoted, ",") + "]"
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
