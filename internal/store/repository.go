package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
	"github.com/slimsayari/woocommerce-typesense-search/pkg/database"
	apperrors "github.com/slimsayari/woocommerce-typesense-search/pkg/errors"
)

// productColumns is the standard SELECT column list for catalog products.
const productColumns = `id, name, description, short_description, sku, price,
	regular_price, sale_price, on_sale, stock_status, rating, categories,
	attributes, tags, permalink, image_url, created_at`

// stockStatuses is the fixed stock status universe of the content store.
var stockStatuses = []string{"instock", "outofstock", "onbackorder"}

// Repository reads the content store's catalog tables. It serves three roles:
// slug to display-name resolution for the clause builder, the known option
// universe for facet reconciliation, and the native product listing used when
// the search engine is unavailable. It also feeds full reindex walks.
type Repository struct {
	pool database.DBTX
}

// NewRepository creates a PostgreSQL-backed content store repository.
func NewRepository(pool database.DBTX) *Repository {
	return &Repository{pool: pool}
}

// ResolveTermName resolves a taxonomy term slug to its display name.
func (r *Repository) ResolveTermName(ctx context.Context, taxonomy, slug string) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx,
		`SELECT name FROM catalog_terms WHERE taxonomy = $1 AND slug = $2`,
		taxonomy, slug,
	).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("resolve term %s/%s: %w", taxonomy, slug, err)
	}
	return name, nil
}

// KnownOptions returns the full filter option universe: category names under
// "categories", the fixed stock statuses, and attribute term names keyed by
// attribute label.
func (r *Repository) KnownOptions(ctx context.Context) (map[string][]string, error) {
	out := map[string][]string{
		"stock_status": stockStatuses,
	}

	rows, err := r.pool.Query(ctx,
		`SELECT taxonomy, name FROM catalog_terms ORDER BY taxonomy, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list catalog terms: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taxonomy, name string
		if err := rows.Scan(&taxonomy, &name); err != nil {
			return nil, fmt.Errorf("scan catalog term: %w", err)
		}
		if taxonomy == "product_cat" {
			out["categories"] = append(out["categories"], name)
			continue
		}
		out[taxonomy] = append(out[taxonomy], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog terms: %w", err)
	}

	return out, nil
}

// ListProducts runs a native filtered listing over the catalog table. It is
// the degraded path for engine downtime: no facet counts, coarse text match,
// but the page the user asked for still renders.
func (r *Repository) ListProducts(ctx context.Context, state *domain.FilterState) (*domain.ResultPage, error) {
	where, args := buildListingFilter(state)

	var total int
	countQuery := `SELECT COUNT(*) FROM catalog_products` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count fallback listing: %w", err)
	}

	page := state.Page
	if page < 1 {
		page = 1
	}
	perPage := state.PerPage
	if perPage < 1 {
		perPage = 1
	}

	listQuery := fmt.Sprintf(`SELECT %s FROM catalog_products%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		productColumns, where, listingOrder(state.Sort), len(args)+1, len(args)+2)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query fallback listing: %w", err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0, perPage)
	for rows.Next() {
		var d domain.Document
		if err := scanProductRow(rows, &d); err != nil {
			return nil, fmt.Errorf("scan fallback product: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fallback products: %w", err)
	}

	refs := make([]domain.DocumentRef, 0, len(docs))
	for i, d := range docs {
		refs = append(refs, domain.DocumentRef{ID: d.ID, Rank: (page-1)*perPage + i + 1})
	}

	maxPages := 0
	if total > 0 {
		maxPages = (total + perPage - 1) / perPage
	}

	return &domain.ResultPage{
		DocumentRefs:   refs,
		Documents:      docs,
		TotalFound:     total,
		Page:           page,
		PerPage:        perPage,
		MaxPages:       maxPages,
		AppliedFilters: *state,
	}, nil
}

// ListForIndex returns one page of catalog products for reindex walks,
// ordered by ID for a stable cursorless walk.
func (r *Repository) ListForIndex(ctx context.Context, offset, limit int) ([]domain.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM catalog_products ORDER BY id LIMIT $1 OFFSET $2`, productColumns)

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list products for index: %w", err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0, limit)
	for rows.Next() {
		var d domain.Document
		if err := scanProductRow(rows, &d); err != nil {
			return nil, fmt.Errorf("scan product for index: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products for index: %w", err)
	}

	return docs, nil
}

// GetProduct fetches one catalog product by ID.
func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM catalog_products WHERE id = $1`, productColumns)

	var d domain.Document
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID,
		&d.Name,
		&d.Description,
		&d.ShortDescription,
		&d.SKU,
		&d.Price,
		&d.RegularPrice,
		&d.SalePrice,
		&d.OnSale,
		&d.StockStatus,
		&d.Rating,
		&d.Categories,
		&d.Attributes,
		&d.Tags,
		&d.Permalink,
		&d.ImageURL,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return &d, nil
}

// buildListingFilter renders the WHERE clause for the native listing. The
// state arriving here is already normalized: category and attribute values
// are display names, matching the text[] columns.
func buildListingFilter(state *domain.FilterState) (string, []any) {
	conds := make([]string, 0, 8)
	args := make([]any, 0, 8)

	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	text := strings.TrimSpace(state.FreeText)
	if text != "" && text != "*" {
		add(`(name ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%[1]d || '%%')`, text)
	}
	if state.PriceMin != nil && *state.PriceMin > 0 {
		add(`price >= $%d`, *state.PriceMin)
	}
	if state.PriceMax != nil && *state.PriceMax > 0 {
		add(`price <= $%d`, *state.PriceMax)
	}
	if len(state.Categories) > 0 {
		add(`categories && $%d::text[]`, state.Categories)
	}
	if state.InStockOnly {
		conds = append(conds, `stock_status = 'instock'`)
	}
	if state.OnSaleOnly {
		conds = append(conds, `on_sale = true`)
	}
	if state.MinRating != nil && *state.MinRating > 0 {
		add(`rating >= $%d`, *state.MinRating)
	}
	labels := make([]string, 0, len(state.AttributeSelections))
	for label := range state.AttributeSelections {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		values := state.AttributeSelections[label]
		if len(values) == 0 {
			continue
		}
		flattened := make([]string, 0, len(values))
		for _, v := range values {
			flattened = append(flattened, label+": "+v)
		}
		add(`attributes && $%d::text[]`, flattened)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// listingOrder maps a sort key to the native listing's ORDER BY expression.
func listingOrder(sort string) string {
	switch sort {
	case domain.SortPriceAsc:
		return "price ASC, id"
	case domain.SortPriceDesc:
		return "price DESC, id"
	case domain.SortNewest:
		return "created_at DESC, id"
	case domain.SortRatingDesc:
		return "rating DESC, id"
	default:
		return "id"
	}
}

func scanProductRow(rows pgx.Rows, d *domain.Document) error {
	return rows.Scan(
		&d.ID,
		&d.Name,
		&d.Description,
		&d.ShortDescription,
		&d.SKU,
		&d.Price,
		&d.RegularPrice,
		&d.SalePrice,
		&d.OnSale,
		&d.StockStatus,
		&d.Rating,
		&d.Categories,
		&d.Attributes,
		&d.Tags,
		&d.Permalink,
		&d.ImageURL,
		&d.CreatedAt,
	)
}
