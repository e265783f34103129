package result

import (
	"errors"
	"fmt"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
	"github.com/slimsayari/woocommerce-typesense-search/internal/gateway"
)

// Mapper shapes raw engine responses into UI-ready result pages. It is
// stateless; a single instance serves all requests.
type Mapper struct{}

// NewMapper creates a result mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// Map turns an engine response into a ResultPage without facets (facet
// reconciliation fills those in separately). Hits keep engine order; the
// mapper never re-sorts. A nil or zero-hit response is a valid empty page,
// never an error.
//
// A gateway failure must be handled by the caller before Map is reached; the
// mapper only ever sees successful responses.
func (m *Mapper) Map(resp *gateway.SearchResponse, page, perPage int) *domain.ResultPage {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}

	out := &domain.ResultPage{
		DocumentRefs: []domain.DocumentRef{},
		Documents:    []domain.Document{},
		Page:         page,
		PerPage:      perPage,
	}

	if resp == nil {
		return out
	}

	out.TotalFound = resp.Found
	out.MaxPages = maxPages(resp.Found, perPage)

	base := (page - 1) * perPage
	for i, hit := range resp.Hits {
		out.DocumentRefs = append(out.DocumentRefs, domain.DocumentRef{
			ID:   hit.Document.ID,
			Rank: base + i + 1,
		})
		out.Documents = append(out.Documents, hit.Document)
	}

	return out
}

// MapError wraps a gateway failure as a typed engine-unavailable error so
// orchestrators can distinguish "search is broken" from "nothing matched".
func (m *Mapper) MapError(err error) error {
	if errors.Is(err, gateway.ErrEngineUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", gateway.ErrEngineUnavailable, err)
}

// maxPages is ceil(total/perPage); zero hits give zero pages.
func maxPages(total, perPage int) int {
	if total <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
