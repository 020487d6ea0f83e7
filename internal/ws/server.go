package ws

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Kevin-ecometrics/vortice/internal/auth"
	"github.com/Kevin-ecometrics/vortice/internal/config"
	"github.com/Kevin-ecometrics/vortice/internal/utils"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Postgres NOTIFY channels. Handlers emit pg_notify on these after writes.
const (
	orderItemsChannel    = "order_item_updates"
	notificationsChannel = "waiter_notification_updates"
)

type Server struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config

	tableRealtime  *tableRealtime
	waiterRealtime *waiterRealtime
	bills          *billWatcher
}

func New(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config) *Server {
	srv := &Server{DB: db, Logger: logger, Config: cfg}
	srv.tableRealtime = newTableRealtime(db, logger)
	srv.waiterRealtime = newWaiterRealtime(db, logger)
	srv.bills = newBillWatcher(db, logger, srv.tableRealtime, cfg.BillCheckInterval)
	return srv
}

type wsRealtimeClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsRealtimeClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(value)
}

type orderItemState struct {
	ID          string  `json:"id"`
	OrderID     string  `json:"orderId"`
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Notes       *string `json:"notes"`
	Status      string  `json:"status"`
}

type orderState struct {
	ID           string           `json:"id"`
	CustomerName string           `json:"customerName"`
	Status       string           `json:"status"`
	Total        float64          `json:"total"`
	CreatedAt    time.Time        `json:"createdAt"`
	Items        []orderItemState `json:"items"`
}

type notificationState struct {
	ID            string    `json:"id"`
	TableID       int64     `json:"tableId"`
	TableNumber   int       `json:"tableNumber"`
	Type          string    `json:"type"`
	Message       string    `json:"message"`
	Status        string    `json:"status"`
	PaymentMethod *string   `json:"paymentMethod"`
	CreatedAt     time.Time `json:"createdAt"`
}

// tableRealtime pushes order changes to the diners seated at one table.
// Keys are table ids; the LISTEN payload carries the changed order's id.
type tableRealtime struct {
	db     *pgxpool.Pool
	logger *zap.Logger

	started sync.Once
	mu      sync.RWMutex
	subs    map[string]map[*wsRealtimeClient]struct{}
}

func newTableRealtime(db *pgxpool.Pool, logger *zap.Logger) *tableRealtime {
	return &tableRealtime{
		db:     db,
		logger: logger,
		subs:   make(map[string]map[*wsRealtimeClient]struct{}),
	}
}

func (tr *tableRealtime) ensureStarted() {
	tr.started.Do(func() {
		go tr.listenLoop(context.Background())
	})
}

func (tr *tableRealtime) subscribe(tableID string, client *wsRealtimeClient) (unsubscribe func()) {
	key := strings.TrimSpace(tableID)
	if key == "" {
		return func() {}
	}

	tr.mu.Lock()
	if tr.subs[key] == nil {
		tr.subs[key] = make(map[*wsRealtimeClient]struct{})
	}
	tr.subs[key][client] = struct{}{}
	tr.mu.Unlock()

	return func() {
		tr.mu.Lock()
		clients := tr.subs[key]
		delete(clients, client)
		if len(clients) == 0 {
			delete(tr.subs, key)
		}
		tr.mu.Unlock()
	}
}

func (tr *tableRealtime) subscribedTables() []int64 {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	ids := make([]int64, 0, len(tr.subs))
	for key := range tr.subs {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (tr *tableRealtime) broadcast(tableID string, message any) {
	key := strings.TrimSpace(tableID)
	if key == "" {
		return
	}

	tr.mu.RLock()
	clientsMap := tr.subs[key]
	clients := make([]*wsRealtimeClient, 0, len(clientsMap))
	for c := range clientsMap {
		clients = append(clients, c)
	}
	tr.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			_ = c.conn.Close()
			tr.mu.Lock()
			if current := tr.subs[key]; current != nil {
				delete(current, c)
				if len(current) == 0 {
					delete(tr.subs, key)
				}
			}
			tr.mu.Unlock()
		}
	}
}

func (tr *tableRealtime) fetchTableOrders(ctx context.Context, tableID int64) ([]orderState, error) {
	ordersQuery := `
		select id, customer_name, status, total_amount, created_at
		from orders
		where table_id = $1 and status in ('pending', 'sent')
		order by created_at
	`
	rows, err := tr.db.Query(ctx, ordersQuery, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]orderState, 0)
	index := make(map[string]int)
	for rows.Next() {
		var o orderState
		var total pgtype.Numeric
		if err := rows.Scan(&o.ID, &o.CustomerName, &o.Status, &total, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Total = utils.NumericToFloat64(total)
		o.Items = make([]orderItemState, 0)
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	itemsQuery := `
		select i.id, i.order_id, i.product_id, i.product_name, i.price, i.quantity, i.notes, i.status
		from order_items i
		join orders o on o.id = i.order_id
		where o.table_id = $1 and o.status in ('pending', 'sent')
		order by i.created_at
	`
	itemRows, err := tr.db.Query(ctx, itemsQuery, tableID)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item orderItemState
		var price pgtype.Numeric
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &price, &item.Quantity, &item.Notes, &item.Status); err != nil {
			return nil, err
		}
		item.Price = utils.NumericToFloat64(price)
		if pos, ok := index[item.OrderID]; ok {
			orders[pos].Items = append(orders[pos].Items, item)
		}
	}
	return orders, itemRows.Err()
}

func (tr *tableRealtime) listenLoop(ctx context.Context) {
	backoff := time.Second
	for {
		conn, err := tr.db.Acquire(ctx)
		if err != nil {
			if tr.logger != nil {
				tr.logger.Warn("order items LISTEN acquire failed", zap.Error(err))
			}
			time.Sleep(backoff)
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		_, err = conn.Exec(ctx, `listen `+orderItemsChannel)
		if err != nil {
			conn.Release()
			if tr.logger != nil {
				tr.logger.Warn("order items LISTEN failed", zap.Error(err))
			}
			time.Sleep(backoff)
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		backoff = time.Second
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				break
			}
			orderID := strings.TrimSpace(n.Payload)
			if orderID == "" {
				continue
			}

			var tableID int64
			if err := tr.db.QueryRow(ctx, `select table_id from orders where id = $1`, orderID).Scan(&tableID); err != nil {
				continue
			}

			key := fmt.Sprint(tableID)
			orders, fetchErr := tr.fetchTableOrders(ctx, tableID)
			if fetchErr != nil {
				tr.broadcast(key, map[string]any{"type": "orders.refresh", "updatedAt": time.Now()})
				continue
			}
			tr.broadcast(key, map[string]any{"type": "orders.state", "data": orders})
		}

		conn.Release()
		time.Sleep(backoff)
		backoff = minDuration(backoff*2, 30*time.Second)
	}
}

// waiterRealtime is a single room: every connected waiter terminal sees all
// pending notifications. The LISTEN payload carries the affected table id.
type waiterRealtime struct {
	db     *pgxpool.Pool
	logger *zap.Logger

	started sync.Once
	mu      sync.RWMutex
	subs    map[*wsRealtimeClient]struct{}
}

func newWaiterRealtime(db *pgxpool.Pool, logger *zap.Logger) *waiterRealtime {
	return &waiterRealtime{
		db:     db,
		logger: logger,
		subs:   make(map[*wsRealtimeClient]struct{}),
	}
}

func (wr *waiterRealtime) ensureStarted() {
	wr.started.Do(func() {
		go wr.listenLoop(context.Background())
	})
}

func (wr *waiterRealtime) subscribe(client *wsRealtimeClient) (unsubscribe func()) {
	wr.mu.Lock()
	wr.subs[client] = struct{}{}
	wr.mu.Unlock()

	return func() {
		wr.mu.Lock()
		delete(wr.subs, client)
		wr.mu.Unlock()
	}
}

func (wr *waiterRealtime) broadcast(message any) {
	wr.mu.RLock()
	clients := make([]*wsRealtimeClient, 0, len(wr.subs))
	for c := range wr.subs {
		clients = append(clients, c)
	}
	wr.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			_ = c.conn.Close()
			wr.mu.Lock()
			delete(wr.subs, c)
			wr.mu.Unlock()
		}
	}
}

func (wr *waiterRealtime) fetchPendingNotifications(ctx context.Context) ([]notificationState, error) {
	query := `
		select w.id, w.table_id, t.number, w.type, w.message, w.status, w.payment_method, w.created_at
		from waiter_notifications w
		join tables t on t.id = w.table_id
		where w.status = 'pending'
		order by w.created_at
	`
	rows, err := wr.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]notificationState, 0)
	for rows.Next() {
		var n notificationState
		if err := rows.Scan(&n.ID, &n.TableID, &n.TableNumber, &n.Type, &n.Message, &n.Status, &n.PaymentMethod, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (wr *waiterRealtime) listenLoop(ctx context.Context) {
	backoff := time.Second
	for {
		conn, err := wr.db.Acquire(ctx)
		if err != nil {
			if wr.logger != nil {
				wr.logger.Warn("notifications LISTEN acquire failed", zap.Error(err))
			}
			time.Sleep(backoff)
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		_, err = conn.Exec(ctx, `listen `+notificationsChannel)
		if err != nil {
			conn.Release()
			if wr.logger != nil {
				wr.logger.Warn("notifications LISTEN failed", zap.Error(err))
			}
			time.Sleep(backoff)
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		backoff = time.Second
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				break
			}
			tableIDText := strings.TrimSpace(n.Payload)

			notifications, fetchErr := wr.fetchPendingNotifications(ctx)
			if fetchErr != nil {
				wr.broadcast(map[string]any{"type": "notifications.refresh", "tableId": tableIDText})
				continue
			}
			wr.broadcast(map[string]any{"type": "notifications.state", "data": notifications})
		}

		conn.Release()
		time.Sleep(backoff)
		backoff = minDuration(backoff*2, 30*time.Second)
	}
}

// billWatcher tells seated diners when their bill request was picked up and
// settled. It scans on a fixed interval and is poked by the notifications
// channel; scans never overlap, a poke during a scan is coalesced into the
// next tick.
type billWatcher struct {
	db       *pgxpool.Pool
	logger   *zap.Logger
	hub      *tableRealtime
	interval time.Duration

	started  sync.Once
	trigger  chan struct{}
	inFlight atomic.Bool
}

func newBillWatcher(db *pgxpool.Pool, logger *zap.Logger, hub *tableRealtime, interval time.Duration) *billWatcher {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &billWatcher{
		db:       db,
		logger:   logger,
		hub:      hub,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
}

func (bw *billWatcher) ensureStarted() {
	bw.started.Do(func() {
		go bw.run(context.Background())
		go bw.listenLoop(context.Background())
	})
}

func (bw *billWatcher) poke() {
	select {
	case bw.trigger <- struct{}{}:
	default:
	}
}

func (bw *billWatcher) tryBeginScan() bool {
	return bw.inFlight.CompareAndSwap(false, true)
}

func (bw *billWatcher) endScan() {
	bw.inFlight.Store(false)
}

func (bw *billWatcher) run(ctx context.Context) {
	ticker := time.NewTicker(bw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-bw.trigger:
		}

		if !bw.tryBeginScan() {
			continue
		}
		go func() {
			defer bw.endScan()
			bw.scan(ctx)
		}()
	}
}

func (bw *billWatcher) scan(ctx context.Context) {
	tables := bw.hub.subscribedTables()
	if len(tables) == 0 {
		return
	}

	// The newest of the two types wins: a table_freed row is inserted after a
	// charge wipes the bill_request, so the customer screen resets itself.
	query := `
		select distinct on (table_id) table_id, id, type, status, payment_method
		from waiter_notifications
		where type in ('bill_request', 'table_freed') and table_id = any($1)
		order by table_id, created_at desc
	`
	rows, err := bw.db.Query(ctx, query, tables)
	if err != nil {
		if bw.logger != nil {
			bw.logger.Warn("bill watcher scan failed", zap.Error(err))
		}
		return
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tableID       int64
			id            string
			notifType     string
			status        string
			paymentMethod *string
		)
		if err := rows.Scan(&tableID, &id, &notifType, &status, &paymentMethod); err != nil {
			return
		}
		if notifType == "table_freed" {
			bw.hub.broadcast(fmt.Sprint(tableID), map[string]any{
				"type":           "table.freed",
				"notificationId": id,
			})
			continue
		}
		bw.hub.broadcast(fmt.Sprint(tableID), map[string]any{
			"type":           "bill.status",
			"notificationId": id,
			"status":         status,
			"paymentMethod":  paymentMethod,
		})
	}
}

func (bw *billWatcher) listenLoop(ctx context.Context) {
	backoff := time.Second
	for {
		conn, err := bw.db.Acquire(ctx)
		if err != nil {
			time.Sleep(backoff)
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		_, err = conn.Exec(ctx, `listen `+notificationsChannel)
		if err != nil {
			conn.Release()
			time.Sleep(backoff)
			backoff = minDuration(backoff*2, 30*time.Second)
			continue
		}

		backoff = time.Second
		for {
			if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
				break
			}
			bw.poke()
		}

		conn.Release()
		time.Sleep(backoff)
		backoff = minDuration(backoff*2, 30*time.Second)
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// TableWS streams order changes for one table to its seated diners. Customers
// are anonymous, so the table id in the query string is the only scope.
func (s *Server) TableWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	tableID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("table")), 10, 64)
	if err != nil || tableID <= 0 {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "table query parameter required"})
		return
	}

	s.tableRealtime.ensureStarted()
	s.bills.ensureStarted()
	ctx := r.Context()
	client := &wsRealtimeClient{conn: conn}
	unsubscribe := s.tableRealtime.subscribe(fmt.Sprint(tableID), client)
	defer unsubscribe()

	// Initial snapshot so the client does not wait for the first change.
	if orders, fetchErr := s.tableRealtime.fetchTableOrders(ctx, tableID); fetchErr == nil {
		_ = client.writeJSON(map[string]any{"type": "orders.state", "data": orders})
	} else {
		_ = client.writeJSON(map[string]any{"type": "orders.refresh", "updatedAt": time.Now()})
	}

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	select {
	case <-clientClosed:
		return
	case <-ctx.Done():
		return
	}
}

// WaiterNotificationsWS streams the pending notification list to staff
// terminals. Auth rides in the query string because browsers cannot set
// headers on websocket upgrades.
func (s *Server) WaiterNotificationsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if parsed := auth.ParseBearerToken(token); parsed != "" {
		token = parsed
	}
	claims, err := auth.VerifyAccessToken(token, s.Config.JWTSecret)
	if err != nil || (claims.Role != auth.RoleWaiter && claims.Role != auth.RoleAdmin) {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	s.waiterRealtime.ensureStarted()
	ctx := r.Context()
	client := &wsRealtimeClient{conn: conn}
	unsubscribe := s.waiterRealtime.subscribe(client)
	defer unsubscribe()

	if notifications, fetchErr := s.waiterRealtime.fetchPendingNotifications(ctx); fetchErr == nil {
		_ = client.writeJSON(map[string]any{"type": "notifications.state", "data": notifications})
	} else {
		_ = client.writeJSON(map[string]any{"type": "notifications.refresh", "tableId": ""})
	}

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	select {
	case <-clientClosed:
		return
	case <-ctx.Done():
		return
	}
}
