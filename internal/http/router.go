package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Kevin-ecometrics/vortice/internal/config"
	"github.com/Kevin-ecometrics/vortice/internal/http/handlers"
	"github.com/Kevin-ecometrics/vortice/internal/middleware"
	"github.com/Kevin-ecometrics/vortice/internal/queue"
	"github.com/Kevin-ecometrics/vortice/internal/storage"
	"github.com/Kevin-ecometrics/vortice/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func NewRouter(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config, queueClient *queue.Client, store *storage.ObjectStore, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"Cache-Control",
				"Pragma",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	h := &handlers.Handler{DB: db, Logger: logger, Config: cfg, Queue: queueClient, Store: store}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/api/auth/login", h.Login)

	r.Route("/api/customer", func(r chi.Router) {
		r.Get("/menu", h.Menu)
		r.Get("/menu/categories", h.MenuCategories)

		r.Post("/session", h.StartSession)
		r.Get("/session", h.LoadSession)

		r.Get("/orders/{orderId}", h.GetOrder)
		r.Post("/orders/{orderId}/items", h.AddItem)
		r.Put("/orders/{orderId}/items/{itemId}", h.UpdateItem)
		r.Delete("/orders/{orderId}/items/{itemId}", h.RemoveItem)
		r.Post("/orders/{orderId}/send", h.SendToKitchen)

		r.Get("/tables/{tableId}/diners", h.TableDiners)
		r.Get("/tables/{tableId}/history", h.TableHistory)

		r.Post("/tables/{tableId}/bill", h.RequestBill)
		r.Get("/tables/{tableId}/bill", h.BillStatus)
		r.Post("/tables/{tableId}/assistance", h.CallWaiter)
		r.Get("/tables/{tableId}/notifications", h.TableNotifications)
		r.Post("/tables/{tableId}/invoice", h.RequestInvoice)
	})

	r.Route("/api/waiter", func(r chi.Router) {
		r.Use(middleware.StaffAuth(db, cfg.JWTSecret, false))

		r.Get("/tables", h.WaiterTables)
		r.Post("/tables/{tableId}/charge", h.ChargeTable)
		r.Get("/tables/{tableId}/ticket", h.BillTicketHTML)
		r.Get("/tables/{tableId}/ticket.pdf", h.BillTicketPDF)

		r.Get("/notifications", h.ListNotifications)
		r.Put("/notifications/{notificationId}/acknowledge", h.AcknowledgeNotification)
		r.Put("/notifications/{notificationId}/complete", h.CompleteNotification)

		r.Put("/items/{itemId}/status", h.UpdateItemStatus)
		r.Put("/orders/{orderId}/complete", h.CompleteOrder)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.StaffAuth(db, cfg.JWTSecret, true))

		r.Get("/tables", h.ListTables)
		r.Post("/tables", h.CreateTable)
		r.Put("/tables/{tableId}", h.UpdateTable)
		r.Delete("/tables/{tableId}", h.DeleteTable)
		r.Get("/tables/{tableId}/qr", h.TableQRImage)
		r.Get("/tables/{tableId}/qr-link", h.TableQRLink)

		r.Get("/products", h.ListProductsAdmin)
		r.Post("/products", h.CreateProduct)
		r.Put("/products/{productId}", h.UpdateProduct)
		r.Delete("/products/{productId}", h.DeleteProduct)
		r.Put("/products/{productId}/rating", h.RateProduct)
		r.Post("/products/{productId}/image", h.UploadProductImage)

		r.Get("/sales", h.ListSales)
		r.Get("/sales/report.pdf", h.SalesReportPDF)
		r.Get("/sales/{saleId}/items", h.SaleItems)
	})

	if wsServer != nil {
		r.Get("/ws/table", wsServer.TableWS)
		r.Get("/ws/waiter/notifications", wsServer.WaiterNotificationsWS)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
