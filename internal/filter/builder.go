package filter

import (
	"context"
	"log/slog"
	"sort"
	"strconv"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
)

// CategoryTaxonomy is the taxonomy name used to resolve category slugs.
const CategoryTaxonomy = "product_cat"

// TermResolver resolves a taxonomy term slug to its display name. The index
// stores display names, so the builder must translate before emitting clauses.
type TermResolver interface {
	ResolveTermName(ctx context.Context, taxonomy, slug string) (string, error)
}

// Builder translates a FilterState into ordered clause groups. Groups are
// AND-joined by the compiler; values within one clause are OR-joined. The
// builder performs no I/O beyond the read-only taxonomy lookup.
type Builder struct {
	resolver TermResolver
	fieldMap map[string]string
	logger   *slog.Logger
}

// NewBuilder creates a clause builder. resolver may be nil, in which case raw
// values pass through verbatim. fieldMap maps attribute labels to engine field
// names; labels absent from the map use the flattened "attributes" field.
func NewBuilder(resolver TermResolver, fieldMap map[string]string, logger *slog.Logger) *Builder {
	if fieldMap == nil {
		fieldMap = map[string]string{}
	}
	return &Builder{
		resolver: resolver,
		fieldMap: fieldMap,
		logger:   logger,
	}
}

// Build produces the ordered clause groups for the given state, plus a
// normalized copy of the state in which category and attribute selections are
// replaced by their resolved display names. The normalized copy is what facet
// reconciliation compares engine values against.
//
// Emission order is fixed: price lower bound, price upper bound, categories,
// stock, sale, rating, then attribute groups ordered by label. A fixed order
// keeps the compiled query byte-identical across entry points.
func (b *Builder) Build(ctx context.Context, state *domain.FilterState) ([]domain.ClauseGroup, *domain.FilterState) {
	groups := make([]domain.ClauseGroup, 0, 6+len(state.AttributeSelections))
	normalized := *state

	// Zero or absent price bounds mean "no bound", never "bound at zero".
	if state.PriceMin != nil && *state.PriceMin > 0 {
		groups = append(groups, singleClause("price", domain.OpRangeGte, formatDecimal(*state.PriceMin)))
	}
	if state.PriceMax != nil && *state.PriceMax > 0 {
		groups = append(groups, singleClause("price", domain.OpRangeLte, formatDecimal(*state.PriceMax)))
	}

	if len(state.Categories) > 0 {
		names := make([]string, 0, len(state.Categories))
		for _, slug := range state.Categories {
			names = append(names, b.resolve(ctx, CategoryTaxonomy, slug))
		}
		normalized.Categories = names
		groups = append(groups, domain.ClauseGroup{Clauses: []domain.FilterClause{{
			Field:    "categories",
			Operator: domain.OpEqualsAny,
			Values:   names,
		}}})
	}

	if state.InStockOnly {
		groups = append(groups, singleClause("stock_status", domain.OpEqualsAny, "instock"))
	}

	if state.OnSaleOnly {
		groups = append(groups, singleClause("on_sale", domain.OpEqualsBool, "true"))
	}

	if state.MinRating != nil && *state.MinRating > 0 {
		groups = append(groups, singleClause("rating", domain.OpRangeGte, formatDecimal(*state.MinRating)))
	}

	if len(state.AttributeSelections) > 0 {
		labels := make([]string, 0, len(state.AttributeSelections))
		for label := range state.AttributeSelections {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		normAttrs := make(map[string][]string, len(labels))
		for _, label := range labels {
			terms := state.AttributeSelections[label]
			if len(terms) == 0 {
				continue
			}
			field := b.fieldMap[label]
			if field == "" {
				field = "attributes"
			}
			values := make([]string, 0, len(terms))
			resolved := make([]string, 0, len(terms))
			for _, term := range terms {
				name := b.resolve(ctx, label, term)
				resolved = append(resolved, name)
				// The index flattens attributes to "Label: Value" strings.
				values = append(values, label+": "+name)
			}
			normAttrs[label] = resolved
			groups = append(groups, domain.ClauseGroup{Clauses: []domain.FilterClause{{
				Field:    field,
				Operator: domain.OpEqualsAny,
				Values:   values,
			}}})
		}
		normalized.AttributeSelections = normAttrs
	}

	return groups, &normalized
}

// resolve returns the display name for a slug, or the slug verbatim when the
// lookup fails. A user selection is never dropped silently.
func (b *Builder) resolve(ctx context.Context, taxonomy, slug string) string {
	if b.resolver == nil {
		return slug
	}
	name, err := b.resolver.ResolveTermName(ctx, taxonomy, slug)
	if err != nil || name == "" {
		if b.logger != nil {
			b.logger.DebugContext(ctx, "term resolution fell back to raw slug",
				slog.String("taxonomy", taxonomy),
				slog.String("slug", slug),
			)
		}
		return slug
	}
	return name
}

func singleClause(field string, op domain.ClauseOperator, value string) domain.ClauseGroup {
	return domain.ClauseGroup{Clauses: []domain.FilterClause{{
		Field:    field,
		Operator: op,
		Values:   []string{value},
	}}}
}

// formatDecimal renders a bound without trailing zeros so 20.0 serializes as "20".
func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
