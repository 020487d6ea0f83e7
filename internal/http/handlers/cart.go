package handlers

import (
	"context"
	"net/http"

	"github.com/Kevin-ecometrics/vortice/internal/queue"
	"github.com/Kevin-ecometrics/vortice/internal/utils"
	"github.com/Kevin-ecometrics/vortice/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

type cartLine struct {
	Price    float64
	Quantity int
}

func lineContribution(price float64, quantity int) float64 {
	return utils.RoundMoney(price * float64(quantity))
}

func computeOrderTotal(lines []cartLine) float64 {
	var total float64
	for _, line := range lines {
		total += line.Price * float64(line.Quantity)
	}
	return utils.RoundMoney(total)
}

// orderForCartWrite loads the order header and rejects carts that already
// left for the kitchen.
func (h *Handler) orderForCartWrite(w http.ResponseWriter, r *http.Request) (orderID string, tableID int64, customerName string, ok bool) {
	ctx := r.Context()

	orderID, err := readPathUUID(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order ID is required")
		return "", 0, "", false
	}

	var status string
	err = h.DB.QueryRow(ctx,
		`select table_id, customer_name, status from orders where id = $1`,
		orderID).Scan(&tableID, &customerName, &status)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
		return "", 0, "", false
	}
	if err != nil {
		h.Logger.Error("order lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return "", 0, "", false
	}
	if status != "pending" {
		response.Error(w, http.StatusConflict, "ORDER_NOT_EDITABLE", "This order was already sent to the kitchen")
		return "", 0, "", false
	}
	return orderID, tableID, customerName, true
}

// recomputeStoredTotal reloads every item row and writes the exact total.
func (h *Handler) recomputeStoredTotal(ctx context.Context, orderID string) error {
	rows, err := h.DB.Query(ctx,
		`select price, quantity from order_items where order_id = $1`, orderID)
	if err != nil {
		return err
	}
	defer rows.Close()

	lines := make([]cartLine, 0)
	for rows.Next() {
		var price pgtype.Numeric
		var quantity int
		if err := rows.Scan(&price, &quantity); err != nil {
			return err
		}
		lines = append(lines, cartLine{Price: utils.NumericToFloat64(price), Quantity: quantity})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = h.DB.Exec(ctx,
		`update orders set total_amount = $2, updated_at = now() where id = $1`,
		orderID, computeOrderTotal(lines))
	return err
}

type addItemRequest struct {
	ProductID int64   `json:"productId"`
	Quantity  int     `json:"quantity"`
	Notes     *string `json:"notes"`
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, _, _, ok := h.orderForCartWrite(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil || req.ProductID <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Product ID is required")
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	var (
		productName string
		price       pgtype.Numeric
		available   bool
	)
	err := h.DB.QueryRow(ctx,
		`select name, price, is_available from products where id = $1`,
		req.ProductID).Scan(&productName, &price, &available)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Product not found")
		return
	}
	if err != nil {
		h.Logger.Error("product lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
		return
	}
	if !available {
		response.Error(w, http.StatusConflict, "PRODUCT_UNAVAILABLE", "This product is currently unavailable")
		return
	}

	unitPrice := utils.NumericToFloat64(price)

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
		return
	}
	defer tx.Rollback(ctx)

	var itemID string
	err = tx.QueryRow(ctx,
		`insert into order_items (order_id, product_id, product_name, price, quantity, notes)
		 values ($1, $2, $3, $4, $5, $6) returning id`,
		orderID, req.ProductID, productName, unitPrice, req.Quantity, req.Notes).Scan(&itemID)
	if err != nil {
		h.Logger.Error("item insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
		return
	}

	if _, err := tx.Exec(ctx,
		`update orders set total_amount = total_amount + $2, updated_at = now() where id = $1`,
		orderID, lineContribution(unitPrice, req.Quantity)); err != nil {
		h.Logger.Error("total bump failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
		return
	}

	h.notifyOrderChanged(ctx, orderID)

	order, err := h.fetchOrderWithItems(ctx, orderID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}
	response.Created(w, order)
}

type updateItemRequest struct {
	Quantity *int    `json:"quantity"`
	Notes    *string `json:"notes"`
}

// UpdateItem changes quantity or notes on a cart line. Quantity below one
// removes the line; omitted notes keep the existing ones. The stored total is
// recomputed from the full item set rather than patched.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, _, _, ok := h.orderForCartWrite(w, r)
	if !ok {
		return
	}

	itemID, err := readPathUUID(r, "itemId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Item ID is required")
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	var exists bool
	if err := h.DB.QueryRow(ctx,
		`select exists (select 1 from order_items where id = $1 and order_id = $2)`,
		itemID, orderID).Scan(&exists); err != nil || !exists {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Item not found")
		return
	}

	if req.Quantity != nil && *req.Quantity < 1 {
		if _, err := h.DB.Exec(ctx, `delete from order_items where id = $1`, itemID); err != nil {
			h.Logger.Error("item delete failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update item")
			return
		}
	} else {
		if _, err := h.DB.Exec(ctx,
			`update order_items
			 set quantity = coalesce($2, quantity),
			     notes = coalesce($3, notes),
			     updated_at = now()
			 where id = $1`,
			itemID, req.Quantity, req.Notes); err != nil {
			h.Logger.Error("item update failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update item")
			return
		}
	}

	if err := h.recomputeStoredTotal(ctx, orderID); err != nil {
		h.Logger.Error("total recompute failed", zapError(err))
	}

	h.notifyOrderChanged(ctx, orderID)

	order, err := h.fetchOrderWithItems(ctx, orderID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}
	response.Success(w, order)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, _, _, ok := h.orderForCartWrite(w, r)
	if !ok {
		return
	}

	itemID, err := readPathUUID(r, "itemId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Item ID is required")
		return
	}

	var price pgtype.Numeric
	var quantity int
	err = h.DB.QueryRow(ctx,
		`select price, quantity from order_items where id = $1 and order_id = $2`,
		itemID, orderID).Scan(&price, &quantity)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Item not found")
		return
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove item")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove item")
		return
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `delete from order_items where id = $1`, itemID); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove item")
		return
	}
	if _, err := tx.Exec(ctx,
		`update orders
		 set total_amount = greatest(total_amount - $2, 0), updated_at = now()
		 where id = $1`,
		orderID, lineContribution(utils.NumericToFloat64(price), quantity)); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove item")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove item")
		return
	}

	h.notifyOrderChanged(ctx, orderID)

	order, err := h.fetchOrderWithItems(ctx, orderID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}
	response.Success(w, order)
}

// SendToKitchen closes the cart: the order goes to 'sent', the waiter board
// gets a new_order notification, and the diner immediately receives a fresh
// pending order so they can keep adding rounds.
func (h *Handler) SendToKitchen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, tableID, customerName, ok := h.orderForCartWrite(w, r)
	if !ok {
		return
	}

	var tableNumber int
	if err := h.DB.QueryRow(ctx, `select number from tables where id = $1`, tableID).Scan(&tableNumber); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to send order")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to send order")
		return
	}
	defer tx.Rollback(ctx)

	var itemCount int
	if err := tx.QueryRow(ctx,
		`select count(*) from order_items where order_id = $1`, orderID).Scan(&itemCount); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to send order")
		return
	}
	if itemCount == 0 {
		response.Error(w, http.StatusConflict, "EMPTY_ORDER", "Add at least one item before sending the order")
		return
	}

	tag, err := tx.Exec(ctx,
		`update orders set status = 'sent', updated_at = now() where id = $1 and status = 'pending'`,
		orderID)
	if err != nil || tag.RowsAffected() == 0 {
		response.Error(w, http.StatusConflict, "ORDER_NOT_EDITABLE", "This order was already sent to the kitchen")
		return
	}

	var notificationID string
	err = tx.QueryRow(ctx,
		`insert into waiter_notifications (table_id, order_id, type, message)
		 values ($1, $2, 'new_order', $3) returning id`,
		tableID, orderID, waiterMessageFor("new_order", tableNumber, customerName, "")).Scan(&notificationID)
	if err != nil {
		h.Logger.Error("notification insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to send order")
		return
	}

	var nextOrderID string
	err = tx.QueryRow(ctx,
		`insert into orders (table_id, customer_name) values ($1, $2) returning id`,
		tableID, customerName).Scan(&nextOrderID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to send order")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to send order")
		return
	}

	h.notifyOrderChanged(ctx, orderID)
	h.notifyWaiterBoard(ctx, tableID)

	if err := queue.PublishTableEvent(ctx, h.Queue, queue.TableEvent{
		Type:           queue.EventOrderSent,
		TableID:        tableID,
		TableNumber:    tableNumber,
		OrderID:        &orderID,
		CustomerName:   customerName,
		NotificationID: &notificationID,
	}); err != nil {
		h.Logger.Warn("order sent event not published", zap.String("orderId", orderID), zapError(err))
	}
	if err := queue.PublishTableEvent(ctx, h.Queue, queue.TableEvent{
		Type:           queue.EventNotificationCreated,
		TableID:        tableID,
		TableNumber:    tableNumber,
		NotificationID: &notificationID,
	}); err != nil {
		h.Logger.Warn("notification event not published", zap.String("notificationId", notificationID), zapError(err))
	}

	order, err := h.fetchOrderWithItems(ctx, orderID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}

	response.Success(w, map[string]any{
		"order":       order,
		"nextOrderId": nextOrderID,
	})
}
