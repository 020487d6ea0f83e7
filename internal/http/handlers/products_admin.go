package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Kevin-ecometrics/vortice/internal/utils"
	"github.com/Kevin-ecometrics/vortice/pkg/response"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

func (h *Handler) ListProductsAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.DB.Query(ctx,
		`select `+productColumns+` from products order by category, name`)
	if err != nil {
		h.Logger.Error("product list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load products")
		return
	}
	defer rows.Close()

	products := make([]productRow, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load products")
			return
		}
		products = append(products, p)
	}

	response.Success(w, products)
}

type productUpsertRequest struct {
	Name            string   `json:"name"`
	Description     *string  `json:"description"`
	Price           *float64 `json:"price"`
	Category        string   `json:"category"`
	PreparationTime *int32   `json:"preparationTime"`
	IsAvailable     *bool    `json:"isAvailable"`
	IsFavorite      *bool    `json:"isFavorite"`
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req productUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" || req.Category == "" || req.Price == nil || *req.Price < 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name, category and a non-negative price are required")
		return
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}
	favorite := false
	if req.IsFavorite != nil {
		favorite = *req.IsFavorite
	}

	row := h.DB.QueryRow(ctx,
		`insert into products (name, description, price, category, preparation_time, is_available, is_favorite)
		 values ($1, $2, $3, $4, $5, $6, $7)
		 returning `+productColumns,
		req.Name, req.Description, utils.RoundMoney(*req.Price), req.Category, req.PreparationTime, available, favorite)
	p, err := scanProduct(row)
	if err != nil {
		h.Logger.Error("product create failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create product")
		return
	}

	response.Created(w, p)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, err := readPathInt64(r, "productId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Product ID is required")
		return
	}

	var req productUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.Price != nil && *req.Price < 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Price cannot be negative")
		return
	}

	var price *float64
	if req.Price != nil {
		rounded := utils.RoundMoney(*req.Price)
		price = &rounded
	}
	var name *string
	if trimmed := strings.TrimSpace(req.Name); trimmed != "" {
		name = &trimmed
	}
	var category *string
	if trimmed := strings.TrimSpace(req.Category); trimmed != "" {
		category = &trimmed
	}

	row := h.DB.QueryRow(ctx,
		`update products
		 set name = coalesce($2, name),
		     description = coalesce($3, description),
		     price = coalesce($4, price),
		     category = coalesce($5, category),
		     preparation_time = coalesce($6, preparation_time),
		     is_available = coalesce($7, is_available),
		     is_favorite = coalesce($8, is_favorite),
		     updated_at = now()
		 where id = $1
		 returning `+productColumns,
		productID, name, req.Description, price, category, req.PreparationTime, req.IsAvailable, req.IsFavorite)
	p, err := scanProduct(row)
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Product not found")
		return
	}

	response.Success(w, p)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, err := readPathInt64(r, "productId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Product ID is required")
		return
	}

	var imageURL pgtype.Text
	if err := h.DB.QueryRow(ctx, `select image_url from products where id = $1`, productID).Scan(&imageURL); err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Product not found")
		return
	}

	if _, err := h.DB.Exec(ctx, `delete from products where id = $1`, productID); err != nil {
		h.Logger.Error("product delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete product")
		return
	}

	if h.Store != nil && imageURL.Valid {
		if err := h.Store.DeleteURL(ctx, imageURL.String); err != nil {
			h.Logger.Warn("stale product image not removed", zap.Int64("productId", productID), zapError(err))
		}
	}

	response.Success(w, map[string]any{"deleted": true})
}

type productRatingRequest struct {
	Rating float64 `json:"rating"`
}

func (h *Handler) RateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, err := readPathInt64(r, "productId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Product ID is required")
		return
	}

	var req productRatingRequest
	if err := decodeJSON(r, &req); err != nil || req.Rating < 0 || req.Rating > 5 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Rating must be between 0 and 5")
		return
	}

	row := h.DB.QueryRow(ctx,
		`update products set rating = $2, updated_at = now() where id = $1 returning `+productColumns,
		productID, req.Rating)
	p, err := scanProduct(row)
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Product not found")
		return
	}

	response.Success(w, p)
}

// UploadProductImage replaces a product photo. Images are normalized to a
// square JPEG before upload so menu tiles stay uniform.
func (h *Handler) UploadProductImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Store == nil {
		response.Error(w, http.StatusServiceUnavailable, "OBJECT_STORE_DISABLED", "Image uploads are not configured")
		return
	}

	productID, err := readPathInt64(r, "productId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Product ID is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxFileSizeBytes)
	if err := r.ParseMultipartForm(h.Config.MaxFileSizeBytes); err != nil {
		response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Image exceeds the upload limit")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "An image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Failed to read image")
		return
	}
	if !utils.ValidateImageContentType(utils.DetectContentType(data)) {
		response.Error(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_IMAGE", "Unsupported image format")
		return
	}

	encoded, _, err := utils.EncodeJpegCoverSquare(data, 800, 82)
	if err != nil {
		response.Error(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_IMAGE", "Failed to decode image")
		return
	}

	var oldURL pgtype.Text
	if err := h.DB.QueryRow(ctx, `select image_url from products where id = $1`, productID).Scan(&oldURL); err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Product not found")
		return
	}

	key := fmt.Sprintf("products/%d/%s.jpg", productID, uuid.NewString())
	publicURL, err := h.Store.PutObject(ctx, key, encoded, "image/jpeg", "")
	if err != nil {
		h.Logger.Error("product image upload failed", zap.Int64("productId", productID), zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store image")
		return
	}

	if _, err := h.DB.Exec(ctx,
		`update products set image_url = $2, updated_at = now() where id = $1`,
		productID, publicURL); err != nil {
		h.Logger.Error("product image url update failed", zap.Int64("productId", productID), zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store image")
		return
	}

	if oldURL.Valid && oldURL.String != "" {
		if err := h.Store.DeleteURL(ctx, oldURL.String); err != nil {
			h.Logger.Warn("old product image not removed", zap.Int64("productId", productID), zapError(err))
		}
	}

	response.Success(w, map[string]any{"imageUrl": publicURL})
}
