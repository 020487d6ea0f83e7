package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func zapError(err error) zap.Field {
	return zap.Error(err)
}

func readPathString(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := readPathString(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	var out int64
	_, err := fmt.Sscan(value, &out)
	return out, err
}

func readPathUUID(r *http.Request, key string) (string, error) {
	value := strings.TrimSpace(readPathString(r, key))
	if value == "" {
		return "", errMissingParam
	}
	if _, err := uuid.Parse(value); err != nil {
		return "", err
	}
	return value, nil
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

var errMissingParam = errors.New("missing param")

// notifyOrderChanged wakes table websocket subscribers after an order or its
// items change. The payload is the order id; listeners resolve the table.
func (h *Handler) notifyOrderChanged(ctx context.Context, orderID string) {
	if _, err := h.DB.Exec(ctx, `select pg_notify('order_item_updates', $1)`, orderID); err != nil && h.Logger != nil {
		h.Logger.Warn("order notify failed", zap.String("orderId", orderID), zapError(err))
	}
}

// notifyWaiterBoard wakes waiter terminals and the bill watcher after a
// notification row changes. The payload is the table id.
func (h *Handler) notifyWaiterBoard(ctx context.Context, tableID int64) {
	if _, err := h.DB.Exec(ctx, `select pg_notify('waiter_notification_updates', $1::text)`, tableID); err != nil && h.Logger != nil {
		h.Logger.Warn("waiter notify failed", zap.Int64("tableId", tableID), zapError(err))
	}
}
