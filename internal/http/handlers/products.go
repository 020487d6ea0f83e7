package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/Kevin-ecometrics/vortice/internal/utils"
	"github.com/Kevin-ecometrics/vortice/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
)

type productRow struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description"`
	Price           float64   `json:"price"`
	Category        string    `json:"category"`
	ImageURL        *string   `json:"imageUrl"`
	IsAvailable     bool      `json:"isAvailable"`
	IsFavorite      bool      `json:"isFavorite"`
	Rating          float64   `json:"rating"`
	PreparationTime *int32    `json:"preparationTime"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

const productColumns = `id, name, description, price, category, image_url,
	is_available, is_favorite, rating, preparation_time, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (productRow, error) {
	var p productRow
	var (
		description pgtype.Text
		imageURL    pgtype.Text
		prepTime    pgtype.Int4
		price       pgtype.Numeric
		rating      pgtype.Numeric
	)
	err := row.Scan(&p.ID, &p.Name, &description, &price, &p.Category, &imageURL,
		&p.IsAvailable, &p.IsFavorite, &rating, &prepTime, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.Description = textPtr(description)
	p.ImageURL = textPtr(imageURL)
	p.PreparationTime = int4Ptr(prepTime)
	p.Price = utils.NumericToFloat64(price)
	p.Rating = utils.NumericToFloat64(rating)
	return p, nil
}

// Menu returns the products diners can order. Category and favorites filters
// come from the query string; unavailable products are never listed here.
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := `select ` + productColumns + ` from products where is_available = true`
	args := []any{}

	if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
		args = append(args, category)
		query += ` and category = $1`
	}
	if r.URL.Query().Get("favorites") == "true" {
		query += ` and is_favorite = true`
	}
	query += ` order by category, name`

	rows, err := h.DB.Query(ctx, query, args...)
	if err != nil {
		h.Logger.Error("menu query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load menu")
		return
	}
	defer rows.Close()

	products := make([]productRow, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			h.Logger.Error("menu scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load menu")
			return
		}
		products = append(products, p)
	}

	response.Success(w, products)
}

func (h *Handler) MenuCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.DB.Query(ctx,
		`select distinct category from products where is_available = true order by category`)
	if err != nil {
		h.Logger.Error("categories query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load categories")
		return
	}
	defer rows.Close()

	categories := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load categories")
			return
		}
		categories = append(categories, c)
	}

	response.Success(w, categories)
}
