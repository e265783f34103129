package filter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
)

// stubResolver maps "taxonomy/slug" to display names.
type stubResolver struct {
	names map[string]string
}

func (s *stubResolver) ResolveTermName(_ context.Context, taxonomy, slug string) (string, error) {
	if name, ok := s.names[taxonomy+"/"+slug]; ok {
		return name, nil
	}
	return "", errors.New("term not found")
}

func newTestBuilder(names map[string]string) *Builder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBuilder(&stubResolver{names: names}, nil, logger)
}

func TestBuild_EmptyStateEmitsNoGroups(t *testing.T) {
	b := newTestBuilder(nil)

	groups, normalized := b.Build(context.Background(), &domain.FilterState{})

	assert.Empty(t, groups)
	assert.Empty(t, normalized.Categories)
}

func TestBuild_ZeroPriceBoundsAreOmitted(t *testing.T) {
	b := newTestBuilder(nil)

	zero := 0.0
	groups, _ := b.Build(context.Background(), &domain.FilterState{
		PriceMin: &zero,
		PriceMax: &zero,
	})

	assert.Empty(t, groups, "a bound of zero means no bound, not a bound at zero")
}

func TestBuild_AbsentAndZeroPriceBoundsAreEquivalent(t *testing.T) {
	b := newTestBuilder(nil)
	zero := 0.0

	withZero, _ := b.Build(context.Background(), &domain.FilterState{PriceMin: &zero})
	absent, _ := b.Build(context.Background(), &domain.FilterState{})

	assert.Equal(t, absent, withZero)
}

func TestBuild_PriceBounds(t *testing.T) {
	b := newTestBuilder(nil)

	minP, maxP := 20.0, 80.0
	groups, _ := b.Build(context.Background(), &domain.FilterState{
		PriceMin: &minP,
		PriceMax: &maxP,
	})

	require.Len(t, groups, 2)
	assert.Equal(t, domain.FilterClause{
		Field: "price", Operator: domain.OpRangeGte, Values: []string{"20"},
	}, groups[0].Clauses[0])
	assert.Equal(t, domain.FilterClause{
		Field: "price", Operator: domain.OpRangeLte, Values: []string{"80"},
	}, groups[1].Clauses[0])
}

func TestBuild_CategorySlugsResolveToDisplayNames(t *testing.T) {
	b := newTestBuilder(map[string]string{
		"product_cat/chaussures": "Chaussures",
	})

	groups, normalized := b.Build(context.Background(), &domain.FilterState{
		Categories: []string{"chaussures"},
	})

	require.Len(t, groups, 1)
	assert.Equal(t, "categories", groups[0].Clauses[0].Field)
	assert.Equal(t, []string{"Chaussures"}, groups[0].Clauses[0].Values)
	assert.Equal(t, []string{"Chaussures"}, normalized.Categories)
}

func TestBuild_UnresolvableSlugPassesThroughVerbatim(t *testing.T) {
	b := newTestBuilder(nil)

	groups, _ := b.Build(context.Background(), &domain.FilterState{
		Categories: []string{"mystery-slug"},
	})

	require.Len(t, groups, 1)
	assert.Equal(t, []string{"mystery-slug"}, groups[0].Clauses[0].Values)
}

func TestBuild_StockSaleAndRating(t *testing.T) {
	b := newTestBuilder(nil)

	rating := 4.0
	groups, _ := b.Build(context.Background(), &domain.FilterState{
		InStockOnly: true,
		OnSaleOnly:  true,
		MinRating:   &rating,
	})

	require.Len(t, groups, 3)
	assert.Equal(t, "stock_status", groups[0].Clauses[0].Field)
	assert.Equal(t, []string{"instock"}, groups[0].Clauses[0].Values)
	assert.Equal(t, "on_sale", groups[1].Clauses[0].Field)
	assert.Equal(t, domain.OpEqualsBool, groups[1].Clauses[0].Operator)
	assert.Equal(t, "rating", groups[2].Clauses[0].Field)
	assert.Equal(t, []string{"4"}, groups[2].Clauses[0].Values)
}

func TestBuild_AttributesEmitFlattenedLabelValuePairs(t *testing.T) {
	b := newTestBuilder(map[string]string{
		"Couleur/rouge": "Rouge",
		"Couleur/bleu":  "Bleu",
	})

	groups, normalized := b.Build(context.Background(), &domain.FilterState{
		AttributeSelections: map[string][]string{
			"Couleur": {"rouge", "bleu"},
		},
	})

	require.Len(t, groups, 1)
	clause := groups[0].Clauses[0]
	assert.Equal(t, "attributes", clause.Field)
	assert.Equal(t, domain.OpEqualsAny, clause.Operator)
	assert.Equal(t, []string{"Couleur: Rouge", "Couleur: Bleu"}, clause.Values)
	assert.Equal(t, []string{"Rouge", "Bleu"}, normalized.AttributeSelections["Couleur"])
}

func TestBuild_AttributeGroupsOrderedByLabel(t *testing.T) {
	b := newTestBuilder(nil)

	groups, _ := b.Build(context.Background(), &domain.FilterState{
		AttributeSelections: map[string][]string{
			"Taille":  {"m"},
			"Couleur": {"rouge"},
			"Matière": {"cuir"},
		},
	})

	require.Len(t, groups, 3)
	assert.Equal(t, []string{"Couleur: rouge"}, groups[0].Clauses[0].Values)
	assert.Equal(t, []string{"Matière: cuir"}, groups[1].Clauses[0].Values)
	assert.Equal(t, []string{"Taille: m"}, groups[2].Clauses[0].Values)
}

func TestBuild_EmissionOrderIsFixed(t *testing.T) {
	b := newTestBuilder(nil)

	minP, maxP, rating := 10.0, 50.0, 3.0
	state := &domain.FilterState{
		PriceMin:    &minP,
		PriceMax:    &maxP,
		Categories:  []string{"sacs"},
		InStockOnly: true,
		OnSaleOnly:  true,
		MinRating:   &rating,
		AttributeSelections: map[string][]string{
			"Couleur": {"rouge"},
		},
	}

	groups, _ := b.Build(context.Background(), state)

	require.Len(t, groups, 7)
	fields := make([]string, 0, len(groups))
	for _, g := range groups {
		fields = append(fields, g.Clauses[0].Field)
	}
	assert.Equal(t, []string{"price", "price", "categories", "stock_status", "on_sale", "rating", "attributes"}, fields)
}

func TestBuild_DoesNotMutateInputState(t *testing.T) {
	b := newTestBuilder(map[string]string{"product_cat/sacs": "Sacs"})

	state := &domain.FilterState{Categories: []string{"sacs"}}
	_, normalized := b.Build(context.Background(), state)

	assert.Equal(t, []string{"sacs"}, state.Categories)
	assert.Equal(t, []string{"Sacs"}, normalized.Categories)
}

func TestBuild_IsDeterministic(t *testing.T) {
	b := newTestBuilder(nil)

	state := &domain.FilterState{
		Categories: []string{"sacs"},
		AttributeSelections: map[string][]string{
			"Taille":  {"m", "l"},
			"Couleur": {"rouge"},
		},
	}

	first, _ := b.Build(context.Background(), state)
	for i := 0; i < 20; i++ {
		again, _ := b.Build(context.Background(), state)
		require.Equal(t, first, again)
	}
}
