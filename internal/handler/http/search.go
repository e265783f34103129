package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
	"github.com/slimsayari/woocommerce-typesense-search/internal/filter"
	"github.com/slimsayari/woocommerce-typesense-search/internal/gateway"
	"github.com/slimsayari/woocommerce-typesense-search/internal/search"
	"github.com/slimsayari/woocommerce-typesense-search/pkg/httputil"
	"github.com/slimsayari/woocommerce-typesense-search/pkg/validator"
)

// SearchHandler handles HTTP requests for the public search endpoints.
type SearchHandler struct {
	service *search.Service
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *search.Service, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		logger:  logger,
	}
}

// searchResponse is the JSON payload shared by the search-style endpoints.
type searchResponse struct {
	Products []domain.Document             `json:"products"`
	Total    int                           `json:"total"`
	Page     int                           `json:"page"`
	PerPage  int                           `json:"per_page"`
	MaxPages int                           `json:"max_pages"`
	Facets   map[string]domain.FacetResult `json:"facets,omitempty"`
	Fallback bool                          `json:"fallback"`
}

func toSearchResponse(page *domain.ResultPage) searchResponse {
	return searchResponse{
		Products: page.Documents,
		Total:    page.TotalFound,
		Page:     page.Page,
		PerPage:  page.PerPage,
		MaxPages: page.MaxPages,
		Facets:   page.Facets,
		Fallback: page.Fallback,
	}
}

// stateFromQueryParams assembles a FilterState from REST query parameters.
// Every coercion goes through the shared filter helpers so this entry point
// stays equivalent to the AJAX and listing ones.
func stateFromQueryParams(params url.Values) *domain.FilterState {
	state := &domain.FilterState{
		FreeText:    params.Get("q"),
		Categories:  filter.CSVParam(params.Get("categories")),
		PriceMin:    filter.DecimalParam(params.Get("min_price")),
		PriceMax:    filter.DecimalParam(params.Get("max_price")),
		InStockOnly: filter.BoolParam(params.Get("in_stock")),
		OnSaleOnly:  filter.BoolParam(params.Get("on_sale")),
		MinRating:   filter.DecimalParam(params.Get("min_rating")),
		Sort:        filter.SortParam(params.Get("sort_by")),
		Page:        filter.PageParam(params.Get("page")),
		PerPage:     filter.PerPageParam(params.Get("per_page")),
	}

	if attrs := filter.AttributeSelectionsParam(params["attr"]); len(attrs) > 0 {
		state.AttributeSelections = attrs
	}

	return state
}

// Search handles GET /api/v1/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	state := stateFromQueryParams(r.URL.Query())

	page, err := h.service.Search(r.Context(), state)
	if err != nil {
		writeSearchError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toSearchResponse(page)})
}

// Autocomplete handles GET /api/v1/search/autocomplete.
func (h *SearchHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{
			Data: search.Suggestions{Products: []domain.Document{}, Posts: []domain.Document{}},
		})
		return
	}

	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 20 {
			limit = l
		}
	}

	suggestions, err := h.service.Autocomplete(r.Context(), term, limit)
	if err != nil {
		if errors.Is(err, gateway.ErrEngineUnavailable) {
			// Suggestions are decoration; a dead engine means an empty list,
			// not a broken search box.
			h.logger.WarnContext(r.Context(), "autocomplete unavailable",
				slog.String("error", err.Error()),
			)
			httputil.WriteJSON(w, http.StatusOK, httputil.Response{
				Data: search.Suggestions{Products: []domain.Document{}, Posts: []domain.Document{}},
			})
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: suggestions})
}

// ImageSearchRequest is the JSON body for POST /api/v1/search/image.
type ImageSearchRequest struct {
	ImageURL string `json:"image_url" validate:"required,url"`
	Page     int    `json:"page"`
	PerPage  int    `json:"per_page"`
}

// ImageSearch handles POST /api/v1/search/image.
func (h *SearchHandler) ImageSearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req ImageSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	state := &domain.FilterState{
		Sort:    domain.SortRelevance,
		Page:    clampPage(req.Page),
		PerPage: clampPerPage(req.PerPage),
	}

	page, err := h.service.SearchByImage(r.Context(), req.ImageURL, state)
	if err != nil {
		writeSearchError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toSearchResponse(page)})
}

// IntentSearchRequest is the JSON body for POST /api/v1/search/intent.
type IntentSearchRequest struct {
	Phrase  string `json:"phrase" validate:"required,min=2"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
}

// IntentSearch handles POST /api/v1/search/intent.
func (h *SearchHandler) IntentSearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req IntentSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	state := &domain.FilterState{
		Sort:    domain.SortRelevance,
		Page:    clampPage(req.Page),
		PerPage: clampPerPage(req.PerPage),
	}

	page, err := h.service.SearchByIntent(r.Context(), req.Phrase, state)
	if err != nil {
		writeSearchError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: toSearchResponse(page)})
}

// writeSearchError maps pipeline failures to transport responses. An
// unavailable engine with no fallback wired is a 503, never a raw 500.
func writeSearchError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	if errors.Is(err, gateway.ErrEngineUnavailable) {
		logger.ErrorContext(r.Context(), "search degraded, no fallback available",
			slog.String("error", err.Error()),
		)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "SERVICE_UNAVAILABLE", Message: "search is temporarily unavailable"},
		})
		return
	}
	httputil.WriteError(w, r, err, logger)
}

func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func clampPerPage(perPage int) int {
	if perPage < 1 || perPage > 100 {
		return filter.DefaultPerPage
	}
	return perPage
}
