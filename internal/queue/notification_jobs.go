package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange   = "vortice.events"
	EventsQueue      = "vortice.notifications"
	EventsBindingKey = "table.#"

	NotificationJobsExchange = "vortice.notification_jobs"
	NotificationJobsQueue    = "vortice.notification_jobs.process"
	NotificationJobsDLQ      = "vortice.notification_jobs.dlq"
	NotificationJobsRK       = "process"
	NotificationJobsDeadRK   = "dead"
)

// Event types carried on the events exchange. Routing keys are
// "table.<id>.<type>" so consumers can bind a single table or table.#.
const (
	EventNotificationCreated = "notification.created"
	EventOrderSent           = "order.sent"
	EventTableCharged        = "table.charged"
)

type TableEvent struct {
	Type           string  `json:"type"`
	TableID        int64   `json:"tableId"`
	TableNumber    int     `json:"tableNumber"`
	NotificationID *string `json:"notificationId,omitempty"`
	OrderID        *string `json:"orderId,omitempty"`
	SaleID         *string `json:"saleId,omitempty"`
	CustomerName   string  `json:"customerName,omitempty"`
}

func EventRoutingKey(tableID int64, eventType string) string {
	return fmt.Sprintf("table.%d.%s", tableID, eventType)
}

func PublishTableEvent(ctx context.Context, qc *Client, evt TableEvent) error {
	if qc == nil {
		return nil
	}
	return qc.PublishJSON(ctx, EventsExchange, EventRoutingKey(evt.TableID, evt.Type), evt)
}

func EnsureEventsTopology(ctx context.Context, qc *Client) error {
	if qc == nil {
		return nil
	}
	if err := qc.DeclareExchange(EventsExchange, "topic"); err != nil {
		return err
	}
	if _, err := qc.DeclareQueue(EventsQueue, nil); err != nil {
		return err
	}
	return qc.Bind(EventsQueue, EventsExchange, EventsBindingKey)
}

func EnsureNotificationJobsTopology(ctx context.Context, qc *Client) error {
	if qc == nil {
		return nil
	}

	if err := qc.DeclareExchange(NotificationJobsExchange, "direct"); err != nil {
		return err
	}

	if _, err := qc.DeclareQueue(NotificationJobsDLQ, nil); err != nil {
		return err
	}
	if err := qc.Bind(NotificationJobsDLQ, NotificationJobsExchange, NotificationJobsDeadRK); err != nil {
		return err
	}

	_, err := qc.DeclareQueue(NotificationJobsQueue, amqp.Table{
		"x-dead-letter-exchange":    NotificationJobsExchange,
		"x-dead-letter-routing-key": NotificationJobsDeadRK,
	})
	if err != nil {
		return err
	}
	return qc.Bind(NotificationJobsQueue, NotificationJobsExchange, NotificationJobsRK)
}

// JobKindForEvent maps an event type to the worker job it produces. Empty
// means the event is informational only and no job is enqueued.
func JobKindForEvent(eventType string) string {
	switch strings.TrimSpace(eventType) {
	case EventNotificationCreated:
		return "push.waiter_notification"
	case EventOrderSent:
		return "print.kitchen_ticket"
	case EventTableCharged:
		return "report.table_charged"
	default:
		return ""
	}
}

// ProcessEventToJobs consumes one event from the events queue, enriches it
// from the database, and enqueues the matching worker job.
func ProcessEventToJobs(ctx context.Context, db *pgxpool.Pool, qc *Client, body []byte) error {
	if db == nil || qc == nil {
		return nil
	}

	var evt TableEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return err
	}

	kind := JobKindForEvent(evt.Type)
	if kind == "" {
		// unknown envelope, drop it
		return nil
	}

	payload := map[string]any{
		"tableId":     evt.TableID,
		"tableNumber": evt.TableNumber,
	}

	switch evt.Type {
	case EventNotificationCreated:
		if evt.NotificationID == nil {
			return nil
		}
		var (
			notifType    string
			message      string
			customerName *string
		)
		err := db.QueryRow(ctx,
			`select w.type, w.message, o.customer_name
			 from waiter_notifications w
			 left join orders o on o.id = w.order_id
			 where w.id = $1`,
			*evt.NotificationID).Scan(&notifType, &message, &customerName)
		if err != nil {
			return err
		}
		payload["notificationId"] = *evt.NotificationID
		payload["notificationType"] = notifType
		payload["message"] = message
		if customerName != nil {
			payload["customerName"] = *customerName
		}

	case EventOrderSent:
		if evt.OrderID == nil {
			return nil
		}
		var itemCount int64
		err := db.QueryRow(ctx,
			`select coalesce(sum(quantity), 0) from order_items where order_id = $1`,
			*evt.OrderID).Scan(&itemCount)
		if err != nil {
			return err
		}
		payload["orderId"] = *evt.OrderID
		payload["customerName"] = evt.CustomerName
		payload["itemCount"] = itemCount

	case EventTableCharged:
		if evt.SaleID == nil {
			return nil
		}
		var (
			total         float64
			orderCount    int
			itemCount     int
			paymentMethod string
		)
		err := db.QueryRow(ctx,
			`select total_amount, order_count, item_count, payment_method from sales_history where id = $1`,
			*evt.SaleID).Scan(&total, &orderCount, &itemCount, &paymentMethod)
		if err != nil {
			return err
		}
		payload["saleId"] = *evt.SaleID
		payload["total"] = total
		payload["orderCount"] = orderCount
		payload["itemCount"] = itemCount
		payload["paymentMethod"] = paymentMethod
	}

	job := map[string]any{
		"kind":      kind,
		"payload":   payload,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
		"attempt":   1,
	}
	return qc.PublishJSON(ctx, NotificationJobsExchange, NotificationJobsRK, job)
}
