package facet

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
	"github.com/slimsayari/woocommerce-typesense-search/internal/gateway"
)

// attributesField is the engine field that stores flattened "Label: Value"
// attribute strings.
const attributesField = "attributes"

// OptionSource provides the full known universe of filter options: category
// display names under "categories", stock statuses under "stock_status", and
// attribute term names keyed by attribute label.
type OptionSource interface {
	KnownOptions(ctx context.Context) (map[string][]string, error)
}

// Reconciler merges engine facet counts onto the known option universe.
//
// Engine counts are computed under the full current filter set, so an option
// the user has already selected can legitimately come back with no count. The
// reconciler always surfaces selected options, even at count 0, so the user
// can deselect them.
type Reconciler struct {
	logger *slog.Logger
}

// NewReconciler creates a facet reconciler.
func NewReconciler(logger *slog.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// Reconcile merges raw engine facet counts with the known option universe and
// the user's current selections. The returned map is keyed by engine field
// name, except attribute facets which are regrouped under their attribute
// label. Every known option appears in the output; options missing from the
// engine counts get count 0. Options at count 0 that are not selected carry a
// hidden hint but are still returned.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	raw []gateway.FacetField,
	known map[string][]string,
	state *domain.FilterState,
) map[string]domain.FacetResult {
	out := make(map[string]domain.FacetResult)

	for _, field := range raw {
		if field.FieldName == attributesField {
			r.reconcileAttributes(ctx, field, known, state, out)
			continue
		}
		out[field.FieldName] = r.reconcileField(field.FieldName, field.Counts, known[field.FieldName], state)
	}

	// Known fields the engine returned nothing for still get their universe
	// at count 0, so the UI can render the full filter panel.
	for field, options := range known {
		if _, done := out[field]; done {
			continue
		}
		if isAttributeLabel(field) {
			continue
		}
		out[field] = r.reconcileField(field, nil, options, state)
	}

	return out
}

// reconcileField merges one flat field. Known options keep their order;
// engine-returned values outside the known universe are appended in engine
// order rather than dropped.
func (r *Reconciler) reconcileField(field string, counts []gateway.FacetCount, knownOptions []string, state *domain.FilterState) domain.FacetResult {
	byValue := make(map[string]int, len(counts))
	for _, c := range counts {
		byValue[c.Value] = c.Count
	}

	seen := make(map[string]bool, len(knownOptions))
	values := make([]domain.FacetValueCount, 0, len(knownOptions)+len(counts))

	for _, opt := range knownOptions {
		if seen[opt] {
			continue
		}
		seen[opt] = true
		values = append(values, r.entry(field, opt, byValue[opt], state, ""))
	}
	for _, c := range counts {
		if seen[c.Value] {
			continue
		}
		seen[c.Value] = true
		values = append(values, r.entry(field, c.Value, c.Count, state, ""))
	}

	return domain.FacetResult{Field: field, Counts: values}
}

// reconcileAttributes regroups flat "Label: Value" strings into per-attribute
// facets. Malformed entries without the delimiter are dropped with a warning.
func (r *Reconciler) reconcileAttributes(
	ctx context.Context,
	field gateway.FacetField,
	known map[string][]string,
	state *domain.FilterState,
	out map[string]domain.FacetResult,
) {
	grouped := make(map[string]map[string]int)
	order := make([]string, 0)

	for _, c := range field.Counts {
		label, value, ok := strings.Cut(c.Value, ": ")
		if !ok || label == "" {
			r.logger.WarnContext(ctx, "dropping malformed attribute facet entry",
				slog.String("raw", c.Value),
			)
			continue
		}
		if grouped[label] == nil {
			grouped[label] = make(map[string]int)
			order = append(order, label)
		}
		grouped[label][value] = c.Count
	}

	// Attribute labels the engine never mentioned still show their universe.
	missing := make([]string, 0)
	for label := range known {
		if !isAttributeLabel(label) || grouped[label] != nil {
			continue
		}
		grouped[label] = make(map[string]int)
		missing = append(missing, label)
	}
	sort.Strings(missing)
	order = append(order, missing...)

	for _, label := range order {
		counts := grouped[label]
		seen := make(map[string]bool)
		values := make([]domain.FacetValueCount, 0, len(counts))

		for _, opt := range known[label] {
			if seen[opt] {
				continue
			}
			seen[opt] = true
			values = append(values, r.entry(attributesField, opt, counts[opt], state, label))
		}
		for _, c := range field.Counts {
			l, v, ok := strings.Cut(c.Value, ": ")
			if !ok || l != label || seen[v] {
				continue
			}
			seen[v] = true
			values = append(values, r.entry(attributesField, v, c.Count, state, label))
		}

		out[label] = domain.FacetResult{Field: label, Counts: values}
	}
}

func (r *Reconciler) entry(field, value string, count int, state *domain.FilterState, attrLabel string) domain.FacetValueCount {
	var selected bool
	switch {
	case attrLabel != "":
		selected = state.IsSelectedAttribute(attrLabel, value)
	case field == "categories":
		selected = state.IsSelectedCategory(value)
	case field == "stock_status":
		selected = state.InStockOnly && value == "instock"
	case field == "on_sale":
		selected = state.OnSaleOnly && value == "true"
	}

	return domain.FacetValueCount{
		Value:    value,
		Count:    count,
		Selected: selected,
		Hidden:   count == 0 && !selected,
	}
}

// isAttributeLabel distinguishes attribute-label keys in the known option map
// from engine field names. Engine field names are lowercase identifiers;
// attribute labels are human-readable ("Color", "Type de cheveux").
func isAttributeLabel(key string) bool {
	switch key {
	case "categories", "stock_status", "on_sale", "rating", "price", attributesField:
		return false
	default:
		return true
	}
}
