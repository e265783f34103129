package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
	"github.com/slimsayari/woocommerce-typesense-search/internal/index"
	"github.com/slimsayari/woocommerce-typesense-search/pkg/httputil"
	"github.com/slimsayari/woocommerce-typesense-search/pkg/validator"
)

// IndexHandler handles the admin-facing index management endpoints.
type IndexHandler struct {
	indexer *index.Indexer
	logger  *slog.Logger
}

// NewIndexHandler creates a new index HTTP handler.
func NewIndexHandler(idx *index.Indexer, logger *slog.Logger) *IndexHandler {
	return &IndexHandler{
		indexer: idx,
		logger:  logger,
	}
}

// BulkDocument is one product document in a bulk import request.
type BulkDocument struct {
	ID               string   `json:"id" validate:"required"`
	Name             string   `json:"name" validate:"required,min=1"`
	Description      string   `json:"description"`
	ShortDescription string   `json:"short_description"`
	SKU              string   `json:"sku"`
	Price            float64  `json:"price"`
	RegularPrice     float64  `json:"regular_price"`
	SalePrice        float64  `json:"sale_price"`
	OnSale           bool     `json:"on_sale"`
	StockStatus      string   `json:"stock_status"`
	Rating           float64  `json:"rating"`
	Categories       []string `json:"categories"`
	Tags             []string `json:"tags"`
	Attributes       []string `json:"attributes"`
	Permalink        string   `json:"permalink"`
	ImageURL         string   `json:"image_url"`
	CreatedAt        int64    `json:"created_at"`
}

// BulkImportRequest is the JSON request body for bulk importing products.
type BulkImportRequest struct {
	Products []BulkDocument `json:"products" validate:"required,min=1,max=500,dive"`
}

// Upsert handles POST /api/v1/index/products/{id}.
func (h *IndexHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "product id is required"},
		})
		return
	}

	if err := h.indexer.UpsertProduct(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "status": "indexed"}})
}

// Delete handles DELETE /api/v1/index/products/{id}.
func (h *IndexHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "product id is required"},
		})
		return
	}

	if err := h.indexer.DeleteProduct(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "status": "deleted"}})
}

// Bulk handles POST /api/v1/index/bulk.
func (h *IndexHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20) // 10MB limit for bulk endpoint

	var req BulkImportRequest
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

	docs := make([]domain.Document, 0, len(req.Products))
	for _, p := range req.Products {
		docs = append(docs, domain.Document{
			ID:               p.ID,
			Name:             p.Name,
			Description:      p.Description,
			ShortDescription: p.ShortDescription,
			SKU:              p.SKU,
			Price:            p.Price,
			RegularPrice:     p.RegularPrice,
			SalePrice:        p.SalePrice,
			OnSale:           p.OnSale,
			StockStatus:      p.StockStatus,
			Rating:           p.Rating,
			Categories:       p.Categories,
			Tags:             p.Tags,
			Attributes:       p.Attributes,
			Permalink:        p.Permalink,
			ImageURL:         p.ImageURL,
			CreatedAt:        p.CreatedAt,
		})
	}

	imported, err := h.indexer.BulkImport(r.Context(), docs)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"indexed": imported, "status": "ok"}})
}

// Reindex handles POST /api/v1/index/reindex. The walk runs in the background
// because a full catalog can take minutes; the request only kicks it off.
func (h *IndexHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx := context.Background()
		count, err := h.indexer.Reindex(ctx)
		if err != nil {
			h.logger.ErrorContext(ctx, "background reindex failed", "error", err)
			return
		}
		h.logger.InfoContext(ctx, "background reindex finished", slog.Int("indexed", count))
	}()

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: map[string]string{"status": "reindex started"}})
}
