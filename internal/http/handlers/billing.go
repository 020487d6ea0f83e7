package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/Kevin-ecometrics/vortice/internal/queue"
	"github.com/Kevin-ecometrics/vortice/internal/utils"
	"github.com/Kevin-ecometrics/vortice/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// Item statuses only move forward; the kitchen never un-serves a dish.
var itemStatusRank = map[string]int{
	"ordered":   0,
	"preparing": 1,
	"ready":     2,
	"served":    3,
}

func canAdvanceItemStatus(from, to string) bool {
	fromRank, okFrom := itemStatusRank[from]
	toRank, okTo := itemStatusRank[to]
	return okFrom && okTo && toRank > fromRank
}

type chargeItem struct {
	ProductName string
	Price       float64
	Quantity    int
	Notes       *string
}

type chargeOrder struct {
	ID           string
	CustomerName string
	Items        []chargeItem
}

func aggregateCharge(orders []chargeOrder) (total float64, orderCount int, itemCount int) {
	for _, order := range orders {
		for _, item := range order.Items {
			total += item.Price * float64(item.Quantity)
			itemCount += item.Quantity
		}
	}
	return utils.RoundMoney(total), len(orders), itemCount
}

type waiterTableView struct {
	Table  tableRow       `json:"table"`
	Orders []sessionOrder `json:"orders"`
}

// WaiterTables lists every table with its kitchen-bound orders so the floor
// staff can see the whole room at a glance.
func (h *Handler) WaiterTables(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.DB.Query(ctx,
		`select id, number, capacity, location, status, created_at, updated_at from tables order by number`)
	if err != nil {
		h.Logger.Error("waiter tables query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load tables")
		return
	}
	defer rows.Close()

	views := make([]waiterTableView, 0)
	for rows.Next() {
		var t tableRow
		var location pgtype.Text
		if err := rows.Scan(&t.ID, &t.Number, &t.Capacity, &location, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load tables")
			return
		}
		t.Location = textPtr(location)
		views = append(views, waiterTableView{Table: t, Orders: []sessionOrder{}})
	}
	if err := rows.Err(); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load tables")
		return
	}

	for i := range views {
		ids, err := h.fetchTableOrderIDs(ctx, views[i].Table.ID, []string{"sent", "completed"})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load tables")
			return
		}
		for _, id := range ids {
			order, err := h.fetchOrderWithItems(ctx, id)
			if err != nil {
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load tables")
				return
			}
			views[i].Orders = append(views[i].Orders, order)
		}
	}

	response.Success(w, views)
}

type itemStatusRequest struct {
	Status string `json:"status"`
}

// UpdateItemStatus advances one dish through the kitchen pipeline.
func (h *Handler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	itemID, err := readPathUUID(r, "itemId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Item ID is required")
		return
	}

	var req itemStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if _, known := itemStatusRank[req.Status]; !known {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown item status")
		return
	}

	var currentStatus, orderID string
	err = h.DB.QueryRow(ctx,
		`select status, order_id from order_items where id = $1`, itemID).Scan(&currentStatus, &orderID)
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Item not found")
		return
	}

	// Statuses only move forward; a stale backward request is dropped, not
	// rejected, so two waiters tapping the same item never see an error.
	if !canAdvanceItemStatus(currentStatus, req.Status) {
		response.Success(w, map[string]any{"id": itemID, "status": currentStatus, "ignored": true})
		return
	}

	if _, err := h.DB.Exec(ctx,
		`update order_items set status = $2, updated_at = now() where id = $1`,
		itemID, req.Status); err != nil {
		h.Logger.Error("item status update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update item status")
		return
	}

	h.notifyOrderChanged(ctx, orderID)

	response.Success(w, map[string]any{"id": itemID, "status": req.Status})
}

// CompleteOrder marks a kitchen order as fully served.
func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := readPathUUID(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order ID is required")
		return
	}

	tag, err := h.DB.Exec(ctx,
		`update orders set status = 'completed', updated_at = now() where id = $1 and status = 'sent'`,
		orderID)
	if err != nil {
		h.Logger.Error("order complete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to complete order")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusConflict, "INVALID_STATUS_TRANSITION", "Only sent orders can be completed")
		return
	}

	h.notifyOrderChanged(ctx, orderID)

	response.Success(w, map[string]any{"id": orderID, "status": "completed"})
}

type chargeRequest struct {
	PaymentMethod string `json:"paymentMethod"`
}

// Close-out sweep statements. Items go first and are scoped by table, not by
// the snapshotted orders: a diner who just sent a round always has a fresh
// pending cart, and its rows must be gone before the orders delete runs.
const (
	chargeCleanupItemsSQL = `delete from order_items
	 where order_id in (select id from orders where table_id = $1)`
	chargeCleanupOrdersSQL = `delete from orders where table_id = $1`
)

// ChargeTable settles a table: the sent and completed orders are snapshotted
// into sales history, then working rows are cleared and the table is freed.
// The snapshot commits first; if the cleanup is interrupted the table shows
// as charged but still occupied, which staff resolve by charging again.
func (h *Handler) ChargeTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	var req chargeRequest
	if err := decodeJSON(r, &req); err != nil || (req.PaymentMethod != "cash" && req.PaymentMethod != "terminal") {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Payment method must be cash or terminal")
		return
	}

	tableNumber, ok := h.tableNumberFor(ctx, tableID)
	if !ok {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return
	}

	orders, err := h.fetchChargeableOrders(ctx, tableID)
	if err != nil {
		h.Logger.Error("chargeable orders query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to charge table")
		return
	}
	if len(orders) == 0 {
		response.Error(w, http.StatusConflict, "NO_ORDERS", "There is nothing to charge on this table")
		return
	}

	total, orderCount, itemCount := aggregateCharge(orders)
	customerNames := make([]string, 0, len(orders))
	seen := map[string]bool{}
	for _, order := range orders {
		if !seen[order.CustomerName] {
			seen[order.CustomerName] = true
			customerNames = append(customerNames, order.CustomerName)
		}
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to charge table")
		return
	}
	defer tx.Rollback(ctx)

	var saleID string
	err = tx.QueryRow(ctx,
		`insert into sales_history (table_id, table_number, customer_name, total_amount, order_count, item_count, payment_method)
		 values ($1, $2, $3, $4, $5, $6, $7) returning id`,
		tableID, tableNumber, strings.Join(customerNames, ", "), total, orderCount, itemCount, req.PaymentMethod).Scan(&saleID)
	if err != nil {
		h.Logger.Error("sale insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to charge table")
		return
	}

	for _, order := range orders {
		for _, item := range order.Items {
			if _, err := tx.Exec(ctx,
				`insert into sales_items (sale_id, product_name, price, quantity, subtotal, notes)
				 values ($1, $2, $3, $4, $5, $6)`,
				saleID, item.ProductName, item.Price, item.Quantity,
				lineContribution(item.Price, item.Quantity), item.Notes); err != nil {
				h.Logger.Error("sale item insert failed", zapError(err))
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to charge table")
				return
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to charge table")
		return
	}

	// Cleanup runs outside the snapshot transaction. Each step is safe to
	// repeat if a crash leaves it half done. The item sweep covers every
	// order at the table, open carts included: the orders delete below
	// clears them all, and a leftover item row would block it.
	if _, err := h.DB.Exec(ctx, `delete from waiter_notifications where table_id = $1`, tableID); err != nil {
		h.Logger.Error("notification cleanup failed", zap.Int64("tableId", tableID), zapError(err))
	}
	if _, err := h.DB.Exec(ctx, chargeCleanupItemsSQL, tableID); err != nil {
		h.Logger.Error("order item cleanup failed", zap.Int64("tableId", tableID), zapError(err))
	}
	if _, err := h.DB.Exec(ctx, chargeCleanupOrdersSQL, tableID); err != nil {
		h.Logger.Error("order cleanup failed", zap.Int64("tableId", tableID), zapError(err))
	}
	if _, err := h.DB.Exec(ctx,
		`update tables set status = 'available', updated_at = now() where id = $1`, tableID); err != nil {
		h.Logger.Error("table release failed", zap.Int64("tableId", tableID), zapError(err))
	}

	// Inserted last and already completed so customer screens reset without
	// lighting up the waiter board again.
	if _, err := h.DB.Exec(ctx,
		`insert into waiter_notifications (table_id, type, message, status)
		 values ($1, 'table_freed', $2, 'completed')`,
		tableID, waiterMessageFor("table_freed", tableNumber, "", "")); err != nil {
		h.Logger.Warn("table freed notification failed", zap.Int64("tableId", tableID), zapError(err))
	}

	h.notifyWaiterBoard(ctx, tableID)

	if err := queue.PublishTableEvent(ctx, h.Queue, queue.TableEvent{
		Type:        queue.EventTableCharged,
		TableID:     tableID,
		TableNumber: tableNumber,
		SaleID:      &saleID,
	}); err != nil {
		h.Logger.Warn("table charged event not published", zap.String("saleId", saleID), zapError(err))
	}

	response.Success(w, map[string]any{
		"saleId":        saleID,
		"tableId":       tableID,
		"tableNumber":   tableNumber,
		"total":         total,
		"orderCount":    orderCount,
		"itemCount":     itemCount,
		"paymentMethod": req.PaymentMethod,
	})
}

func (h *Handler) fetchChargeableOrders(ctx context.Context, tableID int64) ([]chargeOrder, error) {
	rows, err := h.DB.Query(ctx,
		`select id, customer_name from orders
		 where table_id = $1 and status in ('sent', 'completed')
		 order by created_at`, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]chargeOrder, 0)
	for rows.Next() {
		var order chargeOrder
		if err := rows.Scan(&order.ID, &order.CustomerName); err != nil {
			return nil, err
		}
		order.Items = make([]chargeItem, 0)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		itemRows, err := h.DB.Query(ctx,
			`select product_name, price, quantity, notes from order_items where order_id = $1 order by created_at`,
			orders[i].ID)
		if err != nil {
			return nil, err
		}
		for itemRows.Next() {
			var item chargeItem
			var price pgtype.Numeric
			var notes pgtype.Text
			if err := itemRows.Scan(&item.ProductName, &price, &item.Quantity, &notes); err != nil {
				itemRows.Close()
				return nil, err
			}
			item.Price = utils.NumericToFloat64(price)
			item.Notes = textPtr(notes)
			orders[i].Items = append(orders[i].Items, item)
		}
		itemRows.Close()
		if err := itemRows.Err(); err != nil {
			return nil, err
		}
	}

	return orders, nil
}
