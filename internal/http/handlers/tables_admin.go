package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Kevin-ecometrics/vortice/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
	qrcode "github.com/skip2/go-qrcode"
)

type tableRow struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	Capacity  int       `json:"capacity"`
	Location  *string   `json:"location"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var tableStatuses = map[string]bool{
	"available":   true,
	"occupied":    true,
	"reserved":    true,
	"disabled":    true,
	"maintenance": true,
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.DB.Query(ctx,
		`select id, number, capacity, location, status, created_at, updated_at from tables order by number`)
	if err != nil {
		h.Logger.Error("table list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load tables")
		return
	}
	defer rows.Close()

	tables := make([]tableRow, 0)
	for rows.Next() {
		var t tableRow
		var location pgtype.Text
		if err := rows.Scan(&t.ID, &t.Number, &t.Capacity, &location, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			h.Logger.Error("table scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load tables")
			return
		}
		t.Location = textPtr(location)
		tables = append(tables, t)
	}

	response.Success(w, tables)
}

type tableUpsertRequest struct {
	Number   int     `json:"number"`
	Capacity int     `json:"capacity"`
	Location *string `json:"location"`
	Status   *string `json:"status"`
}

func (h *Handler) CreateTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tableUpsertRequest
	if err := decodeJSON(r, &req); err != nil || req.Number <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "A positive table number is required")
		return
	}
	if req.Capacity <= 0 {
		req.Capacity = 4
	}

	var t tableRow
	var location pgtype.Text
	err := h.DB.QueryRow(ctx,
		`insert into tables (number, capacity, location)
		 values ($1, $2, $3)
		 on conflict (number) do nothing
		 returning id, number, capacity, location, status, created_at, updated_at`,
		req.Number, req.Capacity, req.Location).
		Scan(&t.ID, &t.Number, &t.Capacity, &location, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		response.Error(w, http.StatusConflict, "TABLE_EXISTS", "A table with that number already exists")
		return
	}
	t.Location = textPtr(location)

	response.Created(w, t)
}

func (h *Handler) UpdateTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	var req tableUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.Status != nil && !tableStatuses[strings.TrimSpace(*req.Status)] {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown table status")
		return
	}

	var t tableRow
	var location pgtype.Text
	err = h.DB.QueryRow(ctx,
		`update tables
		 set number = coalesce(nullif($2, 0), number),
		     capacity = coalesce(nullif($3, 0), capacity),
		     location = coalesce($4, location),
		     status = coalesce($5, status),
		     updated_at = now()
		 where id = $1
		 returning id, number, capacity, location, status, created_at, updated_at`,
		tableID, req.Number, req.Capacity, req.Location, req.Status).
		Scan(&t.ID, &t.Number, &t.Capacity, &location, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return
	}
	t.Location = textPtr(location)

	response.Success(w, t)
}

func (h *Handler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	var activeOrders int
	if err := h.DB.QueryRow(ctx,
		`select count(*) from orders where table_id = $1 and status in ('pending', 'sent', 'completed')`,
		tableID).Scan(&activeOrders); err != nil {
		h.Logger.Error("table delete check failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete table")
		return
	}
	if activeOrders > 0 {
		response.Error(w, http.StatusConflict, "TABLE_IN_USE", "Table still has open orders")
		return
	}

	tag, err := h.DB.Exec(ctx, `delete from tables where id = $1`, tableID)
	if err != nil {
		h.Logger.Error("table delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete table")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return
	}

	response.Success(w, map[string]any{"deleted": true})
}

// tableQRURL is the link printed on the physical table card. Scanning it
// opens the menu already scoped to that table.
func tableQRURL(baseURL string, tableNumber int) string {
	return fmt.Sprintf("%s/customer?table=%d", strings.TrimRight(baseURL, "/"), tableNumber)
}

func (h *Handler) TableQRLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	var number int
	if err := h.DB.QueryRow(ctx, `select number from tables where id = $1`, tableID).Scan(&number); err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return
	}

	response.Success(w, map[string]any{
		"tableId": tableID,
		"number":  number,
		"url":     tableQRURL(h.Config.BaseURL, number),
	})
}

func (h *Handler) TableQRImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	var number int
	if err := h.DB.QueryRow(ctx, `select number from tables where id = $1`, tableID).Scan(&number); err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return
	}

	qr, err := qrcode.New(tableQRURL(h.Config.BaseURL, number), qrcode.Medium)
	if err != nil {
		h.Logger.Error("qr encode failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate QR code")
		return
	}
	png, err := qr.PNG(300)
	if err != nil {
		h.Logger.Error("qr render failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"table-%d.png\"", number))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
