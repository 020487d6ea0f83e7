package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Kevin-ecometrics/vortice/internal/utils"
	"github.com/Kevin-ecometrics/vortice/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phpdave11/gofpdf"
)

type saleRow struct {
	ID            string    `json:"id"`
	TableID       int64     `json:"tableId"`
	TableNumber   int       `json:"tableNumber"`
	CustomerName  *string   `json:"customerName"`
	Total         float64   `json:"total"`
	OrderCount    int       `json:"orderCount"`
	ItemCount     int       `json:"itemCount"`
	PaymentMethod *string   `json:"paymentMethod"`
	ClosedAt      time.Time `json:"closedAt"`
}

type saleItemRow struct {
	ID          string  `json:"id"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Subtotal    float64 `json:"subtotal"`
	Notes       *string `json:"notes"`
}

// salesWindow reads the optional from/to range. Dates are inclusive days in
// YYYY-MM-DD form; the default window is the last 30 days.
func salesWindow(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func (h *Handler) fetchSales(ctx context.Context, from, to time.Time) ([]saleRow, error) {
	rows, err := h.DB.Query(ctx,
		`select id, table_id, table_number, customer_name, total_amount, order_count, item_count, payment_method, closed_at
		 from sales_history
		 where closed_at >= $1 and closed_at < $2
		 order by closed_at desc`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]saleRow, 0)
	for rows.Next() {
		var s saleRow
		var customerName pgtype.Text
		var paymentMethod pgtype.Text
		var total pgtype.Numeric
		if err := rows.Scan(&s.ID, &s.TableID, &s.TableNumber, &customerName, &total,
			&s.OrderCount, &s.ItemCount, &paymentMethod, &s.ClosedAt); err != nil {
			return nil, err
		}
		s.CustomerName = textPtr(customerName)
		s.PaymentMethod = textPtr(paymentMethod)
		s.Total = utils.NumericToFloat64(total)
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	from, to, err := salesWindow(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Dates must be formatted YYYY-MM-DD")
		return
	}

	sales, err := h.fetchSales(r.Context(), from, to)
	if err != nil {
		h.Logger.Error("sales query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load sales")
		return
	}

	var total float64
	for _, sale := range sales {
		total += sale.Total
	}

	response.Success(w, map[string]any{
		"sales": sales,
		"total": utils.RoundMoney(total),
		"count": len(sales),
	})
}

func (h *Handler) SaleItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	saleID, err := readPathUUID(r, "saleId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Sale ID is required")
		return
	}

	rows, err := h.DB.Query(ctx,
		`select id, product_name, price, quantity, subtotal, notes from sales_items where sale_id = $1`,
		saleID)
	if err != nil {
		h.Logger.Error("sale items query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load sale items")
		return
	}
	defer rows.Close()

	items := make([]saleItemRow, 0)
	for rows.Next() {
		var item saleItemRow
		var price pgtype.Numeric
		var subtotal pgtype.Numeric
		var notes pgtype.Text
		if err := rows.Scan(&item.ID, &item.ProductName, &price, &item.Quantity, &subtotal, &notes); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load sale items")
			return
		}
		item.Price = utils.NumericToFloat64(price)
		item.Subtotal = utils.NumericToFloat64(subtotal)
		item.Notes = textPtr(notes)
		items = append(items, item)
	}

	response.Success(w, items)
}

func (h *Handler) SalesReportPDF(w http.ResponseWriter, r *http.Request) {
	from, to, err := salesWindow(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Dates must be formatted YYYY-MM-DD")
		return
	}

	sales, err := h.fetchSales(r.Context(), from, to)
	if err != nil {
		h.Logger.Error("sales query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build the report")
		return
	}

	buf, err := renderSalesReportPDF(sales, from, to)
	if err != nil {
		h.Logger.Error("sales report render failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build the report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=\"sales_report.pdf\"")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func renderSalesReportPDF(sales []saleRow, from, to time.Time) (*bytes.Buffer, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, "Vortice - Sales Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("%s to %s", from.Format("2006-01-02"), to.Format("2006-01-02")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(35, 6, "Closed", "1", 0, "L", false, 0, "")
	pdf.CellFormat(18, 6, "Table", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Orders", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Items", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "Payment", "1", 0, "C", false, 0, "")
	pdf.CellFormat(0, 6, "Total", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	var grandTotal float64
	byMethod := map[string]float64{}
	for _, sale := range sales {
		payment := ""
		if sale.PaymentMethod != nil {
			payment = *sale.PaymentMethod
		}
		grandTotal += sale.Total
		byMethod[payment] += sale.Total
		pdf.CellFormat(35, 6, sale.ClosedAt.Format("2006-01-02 15:04"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(18, 6, fmt.Sprintf("%d", sale.TableNumber), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", sale.OrderCount), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", sale.ItemCount), "1", 0, "C", false, 0, "")
		pdf.CellFormat(28, 6, payment, "1", 0, "C", false, 0, "")
		pdf.CellFormat(0, 6, money(sale.Total), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "", 10)
	for _, method := range []string{"cash", "terminal"} {
		if total, ok := byMethod[method]; ok {
			pdf.CellFormat(141, 6, "Total "+method, "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 6, money(utils.RoundMoney(total)), "", 1, "R", false, 0, "")
		}
	}
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(141, 7, fmt.Sprintf("Tables charged: %d", len(sales)), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 7, money(utils.RoundMoney(grandTotal)), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}
