package handlers

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Kevin-ecometrics/vortice/internal/utils"
	"github.com/Kevin-ecometrics/vortice/pkg/response"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

type sessionTable struct {
	ID       int64   `json:"id"`
	Number   int     `json:"number"`
	Capacity int     `json:"capacity"`
	Location *string `json:"location"`
	Status   string  `json:"status"`
}

type sessionItem struct {
	ID          string    `json:"id"`
	ProductID   int64     `json:"productId"`
	ProductName string    `json:"productName"`
	Price       float64   `json:"price"`
	Quantity    int       `json:"quantity"`
	Notes       *string   `json:"notes"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

type sessionOrder struct {
	ID           string        `json:"id"`
	TableID      int64         `json:"tableId"`
	CustomerName string        `json:"customerName"`
	Status       string        `json:"status"`
	Total        float64       `json:"total"`
	CreatedAt    time.Time     `json:"createdAt"`
	Items        []sessionItem `json:"items"`
}

type sessionPayload struct {
	Table       sessionTable   `json:"table"`
	Order       *sessionOrder  `json:"order"`
	Diners      []string       `json:"diners"`
	TableOrders []sessionOrder `json:"tableOrders"`
}

func (h *Handler) fetchTableByNumber(ctx context.Context, number int) (sessionTable, error) {
	var t sessionTable
	var location pgtype.Text
	err := h.DB.QueryRow(ctx,
		`select id, number, capacity, location, status from tables where number = $1`,
		number).Scan(&t.ID, &t.Number, &t.Capacity, &location, &t.Status)
	t.Location = textPtr(location)
	return t, err
}

func (h *Handler) fetchOrderWithItems(ctx context.Context, orderID string) (sessionOrder, error) {
	var o sessionOrder
	var total pgtype.Numeric
	err := h.DB.QueryRow(ctx,
		`select id, table_id, customer_name, status, total_amount, created_at from orders where id = $1`,
		orderID).Scan(&o.ID, &o.TableID, &o.CustomerName, &o.Status, &total, &o.CreatedAt)
	if err != nil {
		return o, err
	}
	o.Total = utils.NumericToFloat64(total)
	o.Items = make([]sessionItem, 0)

	rows, err := h.DB.Query(ctx,
		`select id, product_id, product_name, price, quantity, notes, status, created_at
		 from order_items where order_id = $1 order by created_at`, orderID)
	if err != nil {
		return o, err
	}
	defer rows.Close()

	for rows.Next() {
		var item sessionItem
		var price pgtype.Numeric
		var notes pgtype.Text
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductName, &price, &item.Quantity, &notes, &item.Status, &item.CreatedAt); err != nil {
			return o, err
		}
		item.Price = utils.NumericToFloat64(price)
		item.Notes = textPtr(notes)
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

// reconcileOrderTotal recomputes the stored total from the item rows and
// repairs it if a concurrent write left it stale.
func (h *Handler) reconcileOrderTotal(ctx context.Context, order *sessionOrder) {
	lines := make([]cartLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, cartLine{Price: item.Price, Quantity: item.Quantity})
	}
	computed := computeOrderTotal(lines)
	if math.Abs(computed-order.Total) < 0.005 {
		return
	}
	if _, err := h.DB.Exec(ctx,
		`update orders set total_amount = $2, updated_at = now() where id = $1`,
		order.ID, computed); err != nil {
		h.Logger.Error("order total repair failed", zap.String("orderId", order.ID), zapError(err))
		return
	}
	order.Total = computed
}

func (h *Handler) fetchDiners(ctx context.Context, tableID int64) ([]string, error) {
	rows, err := h.DB.Query(ctx,
		`select distinct customer_name from orders
		 where table_id = $1 and status in ('pending', 'sent', 'completed')
		 order by customer_name`, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	diners := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		diners = append(diners, name)
	}
	return diners, rows.Err()
}

func (h *Handler) fetchTableOrderIDs(ctx context.Context, tableID int64, statuses []string) ([]string, error) {
	rows, err := h.DB.Query(ctx,
		`select id from orders where table_id = $1 and status = any($2) order by created_at`,
		tableID, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type startSessionRequest struct {
	TableNumber  int    `json:"tableNumber"`
	CustomerName string `json:"customerName"`
}

// StartSession seats a diner: the table goes occupied on first arrival and
// the diner gets a pending order to build their cart in. Re-joining with the
// same name resumes the existing cart.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.TableNumber <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table number is required")
		return
	}
	if req.CustomerName == "" {
		req.CustomerName = "Guest-" + uuid.NewString()[:8]
	}

	table, err := h.fetchTableByNumber(ctx, req.TableNumber)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return
	}
	if err != nil {
		h.Logger.Error("table lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start session")
		return
	}
	if table.Status == "disabled" || table.Status == "maintenance" {
		response.Error(w, http.StatusConflict, "TABLE_UNAVAILABLE", "This table is not accepting orders")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start session")
		return
	}
	defer tx.Rollback(ctx)

	if table.Status == "available" {
		if _, err := tx.Exec(ctx,
			`update tables set status = 'occupied', updated_at = now() where id = $1 and status = 'available'`,
			table.ID); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start session")
			return
		}
		table.Status = "occupied"
	}

	var orderID string
	err = tx.QueryRow(ctx,
		`select id from orders where table_id = $1 and customer_name = $2 and status = 'pending'
		 order by created_at desc limit 1`,
		table.ID, req.CustomerName).Scan(&orderID)
	if err == pgx.ErrNoRows {
		err = tx.QueryRow(ctx,
			`insert into orders (table_id, customer_name) values ($1, $2) returning id`,
			table.ID, req.CustomerName).Scan(&orderID)
	}
	if err != nil {
		h.Logger.Error("session order open failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start session")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start session")
		return
	}

	payload, err := h.buildSessionPayload(ctx, table, req.CustomerName)
	if err != nil {
		h.Logger.Error("session payload failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start session")
		return
	}

	response.Created(w, payload)
}

// LoadSession restores a diner's view after a reload: their cart, who else is
// seated, and every order already sent to the kitchen for the table.
func (h *Handler) LoadSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	number, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("table")))
	if err != nil || number <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "A table query parameter is required")
		return
	}
	customerName := strings.TrimSpace(r.URL.Query().Get("name"))

	table, err := h.fetchTableByNumber(ctx, number)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return
	}
	if err != nil {
		h.Logger.Error("table lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load session")
		return
	}

	payload, err := h.buildSessionPayload(ctx, table, customerName)
	if err != nil {
		h.Logger.Error("session payload failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load session")
		return
	}

	response.Success(w, payload)
}

func (h *Handler) buildSessionPayload(ctx context.Context, table sessionTable, customerName string) (sessionPayload, error) {
	payload := sessionPayload{
		Table:       table,
		Diners:      []string{},
		TableOrders: []sessionOrder{},
	}

	var orderID string
	var err error
	if customerName != "" {
		err = h.DB.QueryRow(ctx,
			`select id from orders where table_id = $1 and customer_name = $2 and status = 'pending'
			 order by created_at desc limit 1`,
			table.ID, customerName).Scan(&orderID)
	} else {
		// No name given: fall back to the newest open cart at the table.
		err = h.DB.QueryRow(ctx,
			`select id from orders where table_id = $1 and status = 'pending'
			 order by created_at desc limit 1`,
			table.ID).Scan(&orderID)
	}
	if err != nil && err != pgx.ErrNoRows {
		return payload, err
	}
	if err == nil {
		order, err := h.fetchOrderWithItems(ctx, orderID)
		if err != nil {
			return payload, err
		}
		h.reconcileOrderTotal(ctx, &order)
		payload.Order = &order
	}

	diners, err := h.fetchDiners(ctx, table.ID)
	if err != nil {
		return payload, err
	}
	payload.Diners = diners

	sentIDs, err := h.fetchTableOrderIDs(ctx, table.ID, []string{"sent", "completed"})
	if err != nil {
		return payload, err
	}
	for _, id := range sentIDs {
		order, err := h.fetchOrderWithItems(ctx, id)
		if err != nil {
			return payload, err
		}
		payload.TableOrders = append(payload.TableOrders, order)
	}

	return payload, nil
}

type dinerRow struct {
	OrderID string `json:"orderId"`
	Name    string `json:"name"`
}

// TableDiners lists the open carts at a table, oldest first, so a shared
// device can switch between the people seated there.
func (h *Handler) TableDiners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	rows, err := h.DB.Query(ctx,
		`select id, customer_name from orders
		 where table_id = $1 and status = 'pending'
		 order by created_at`, tableID)
	if err != nil {
		h.Logger.Error("diners query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load diners")
		return
	}
	defer rows.Close()

	diners := make([]dinerRow, 0)
	for rows.Next() {
		var d dinerRow
		if err := rows.Scan(&d.OrderID, &d.Name); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load diners")
			return
		}
		diners = append(diners, d)
	}

	response.Success(w, diners)
}

// TableHistory returns every order the table has accumulated this sitting,
// carts included, with their items.
func (h *Handler) TableHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	ids, err := h.fetchTableOrderIDs(ctx, tableID, []string{"pending", "sent", "completed", "paid"})
	if err != nil {
		h.Logger.Error("table history query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load table history")
		return
	}

	orders := make([]sessionOrder, 0, len(ids))
	for _, id := range ids {
		order, err := h.fetchOrderWithItems(ctx, id)
		if err != nil {
			h.Logger.Error("table history order fetch failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load table history")
			return
		}
		orders = append(orders, order)
	}

	response.Success(w, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := readPathUUID(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order ID is required")
		return
	}

	order, err := h.fetchOrderWithItems(ctx, orderID)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
		return
	}
	if err != nil {
		h.Logger.Error("order fetch failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}
	h.reconcileOrderTotal(ctx, &order)

	response.Success(w, order)
}
