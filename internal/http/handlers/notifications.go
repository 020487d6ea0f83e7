package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Kevin-ecometrics/vortice/internal/queue"
	"github.com/Kevin-ecometrics/vortice/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// waiterMessageFor renders the line shown on the waiter board for each
// notification type.
func waiterMessageFor(notifType string, tableNumber int, customerName string, paymentMethod string) string {
	name := strings.TrimSpace(customerName)
	switch notifType {
	case "new_order":
		if name != "" {
			return fmt.Sprintf("Table %d: new order from %s", tableNumber, name)
		}
		return fmt.Sprintf("Table %d: new order", tableNumber)
	case "assistance":
		if name != "" {
			return fmt.Sprintf("Table %d: %s needs assistance", tableNumber, name)
		}
		return fmt.Sprintf("Table %d needs assistance", tableNumber)
	case "bill_request":
		switch paymentMethod {
		case "cash":
			return fmt.Sprintf("Table %d: bill requested, paying with cash", tableNumber)
		case "terminal":
			return fmt.Sprintf("Table %d: bill requested, paying by card terminal", tableNumber)
		default:
			return fmt.Sprintf("Table %d: bill requested", tableNumber)
		}
	case "order_updated":
		return fmt.Sprintf("Table %d: order updated", tableNumber)
	case "table_freed":
		return fmt.Sprintf("Table %d is now available", tableNumber)
	default:
		return fmt.Sprintf("Table %d", tableNumber)
	}
}

type notificationRow struct {
	ID            string    `json:"id"`
	TableID       int64     `json:"tableId"`
	TableNumber   int       `json:"tableNumber"`
	OrderID       *string   `json:"orderId"`
	Type          string    `json:"type"`
	Message       string    `json:"message"`
	Status        string    `json:"status"`
	PaymentMethod *string   `json:"paymentMethod"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func scanNotification(row interface{ Scan(...any) error }) (notificationRow, error) {
	var n notificationRow
	var orderID pgtype.Text
	var paymentMethod pgtype.Text
	err := row.Scan(&n.ID, &n.TableID, &n.TableNumber, &orderID, &n.Type, &n.Message,
		&n.Status, &paymentMethod, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return n, err
	}
	n.OrderID = textPtr(orderID)
	n.PaymentMethod = textPtr(paymentMethod)
	return n, nil
}

const notificationColumns = `w.id, w.table_id, t.number, w.order_id::text, w.type, w.message,
	w.status, w.payment_method, w.created_at, w.updated_at`

func (h *Handler) tableNumberFor(ctx context.Context, tableID int64) (int, bool) {
	var number int
	if err := h.DB.QueryRow(ctx, `select number from tables where id = $1`, tableID).Scan(&number); err != nil {
		return 0, false
	}
	return number, true
}

type billRequest struct {
	PaymentMethod string `json:"paymentMethod"`
	CustomerName  string `json:"customerName"`
}

// RequestBill files a bill_request for the table. A table only ever has one
// open bill request; repeating the call returns the existing one.
func (h *Handler) RequestBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	var req billRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.PaymentMethod != "cash" && req.PaymentMethod != "terminal" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Payment method must be cash or terminal")
		return
	}

	tableNumber, ok := h.tableNumberFor(ctx, tableID)
	if !ok {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return
	}

	row := h.DB.QueryRow(ctx,
		`select `+notificationColumns+`
		 from waiter_notifications w join tables t on t.id = w.table_id
		 where w.table_id = $1 and w.type = 'bill_request' and w.status in ('pending', 'acknowledged')
		 order by w.created_at desc limit 1`, tableID)
	if existing, err := scanNotification(row); err == nil {
		response.Success(w, existing)
		return
	}

	message := waiterMessageFor("bill_request", tableNumber, req.CustomerName, req.PaymentMethod)
	insertRow := h.DB.QueryRow(ctx,
		`with inserted as (
		     insert into waiter_notifications (table_id, type, message, payment_method)
		     values ($1, 'bill_request', $2, $3)
		     returning *
		 )
		 select w.id, w.table_id, t.number, w.order_id::text, w.type, w.message,
		        w.status, w.payment_method, w.created_at, w.updated_at
		 from inserted w join tables t on t.id = w.table_id`,
		tableID, message, req.PaymentMethod)
	created, err := scanNotification(insertRow)
	if err != nil {
		h.Logger.Error("bill request insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to request the bill")
		return
	}

	h.notifyWaiterBoard(ctx, tableID)
	h.publishNotificationEvent(ctx, tableID, tableNumber, created.ID)

	response.Created(w, created)
}

type assistanceRequest struct {
	CustomerName string `json:"customerName"`
}

func (h *Handler) CallWaiter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	var req assistanceRequest
	_ = decodeJSON(r, &req)

	tableNumber, ok := h.tableNumberFor(ctx, tableID)
	if !ok {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return
	}

	message := waiterMessageFor("assistance", tableNumber, req.CustomerName, "")
	row := h.DB.QueryRow(ctx,
		`with inserted as (
		     insert into waiter_notifications (table_id, type, message)
		     values ($1, 'assistance', $2)
		     returning *
		 )
		 select w.id, w.table_id, t.number, w.order_id::text, w.type, w.message,
		        w.status, w.payment_method, w.created_at, w.updated_at
		 from inserted w join tables t on t.id = w.table_id`,
		tableID, message)
	created, err := scanNotification(row)
	if err != nil {
		h.Logger.Error("assistance insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to call the waiter")
		return
	}

	h.notifyWaiterBoard(ctx, tableID)
	h.publishNotificationEvent(ctx, tableID, tableNumber, created.ID)

	response.Created(w, created)
}

// BillStatus lets the payment screen poll whether the waiter settled the
// latest bill request for the table.
func (h *Handler) BillStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	row := h.DB.QueryRow(ctx,
		`select `+notificationColumns+`
		 from waiter_notifications w join tables t on t.id = w.table_id
		 where w.table_id = $1 and w.type = 'bill_request'
		 order by w.created_at desc limit 1`, tableID)
	notification, err := scanNotification(row)
	if err == pgx.ErrNoRows {
		// No request on file is a normal answer, not an error.
		response.Success(w, map[string]any{"hasPendingBill": false})
		return
	}
	if err != nil {
		h.Logger.Error("bill status query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load bill status")
		return
	}

	pending := notification.Status == "pending" || notification.Status == "acknowledged"
	response.Success(w, map[string]any{
		"hasPendingBill": pending,
		"notification":   notification,
	})
}

func (h *Handler) TableNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	rows, err := h.DB.Query(ctx,
		`select `+notificationColumns+`
		 from waiter_notifications w join tables t on t.id = w.table_id
		 where w.table_id = $1 and w.status = 'pending'
		 order by w.created_at`, tableID)
	if err != nil {
		h.Logger.Error("table notifications query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load notifications")
		return
	}
	defer rows.Close()

	notifications := make([]notificationRow, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load notifications")
			return
		}
		notifications = append(notifications, n)
	}

	response.Success(w, notifications)
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status == "" {
		status = "pending"
	}

	rows, err := h.DB.Query(ctx,
		`select `+notificationColumns+`
		 from waiter_notifications w join tables t on t.id = w.table_id
		 where w.status = $1
		 order by w.created_at`, status)
	if err != nil {
		h.Logger.Error("notifications query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load notifications")
		return
	}
	defer rows.Close()

	notifications := make([]notificationRow, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load notifications")
			return
		}
		notifications = append(notifications, n)
	}

	response.Success(w, notifications)
}

func (h *Handler) setNotificationStatus(w http.ResponseWriter, r *http.Request, status string) {
	ctx := r.Context()

	notificationID, err := readPathUUID(r, "notificationId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Notification ID is required")
		return
	}

	row := h.DB.QueryRow(ctx,
		`with updated as (
		     update waiter_notifications
		     set status = $2, updated_at = now()
		     where id = $1
		     returning *
		 )
		 select w.id, w.table_id, t.number, w.order_id::text, w.type, w.message,
		        w.status, w.payment_method, w.created_at, w.updated_at
		 from updated w join tables t on t.id = w.table_id`,
		notificationID, status)
	notification, err := scanNotification(row)
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Notification not found")
		return
	}

	h.notifyWaiterBoard(ctx, notification.TableID)

	response.Success(w, notification)
}

func (h *Handler) AcknowledgeNotification(w http.ResponseWriter, r *http.Request) {
	h.setNotificationStatus(w, r, "acknowledged")
}

func (h *Handler) CompleteNotification(w http.ResponseWriter, r *http.Request) {
	h.setNotificationStatus(w, r, "completed")
}

func (h *Handler) publishNotificationEvent(ctx context.Context, tableID int64, tableNumber int, notificationID string) {
	if err := queue.PublishTableEvent(ctx, h.Queue, queue.TableEvent{
		Type:           queue.EventNotificationCreated,
		TableID:        tableID,
		TableNumber:    tableNumber,
		NotificationID: &notificationID,
	}); err != nil {
		h.Logger.Warn("notification event not published", zap.String("notificationId", notificationID), zapError(err))
	}
}
