package handlers

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/Kevin-ecometrics/vortice/internal/utils"
	"github.com/Kevin-ecometrics/vortice/pkg/response"

	"github.com/phpdave11/gofpdf"
)

// taxRate applies to the pre-tax subtotal on printed bills.
const taxRate = 0.08

func computeBillTotals(subtotal float64) (tax float64, total float64) {
	tax = utils.RoundMoney(subtotal * taxRate)
	total = utils.RoundMoney(subtotal + tax)
	return tax, total
}

type ticketLine struct {
	CustomerName string
	ProductName  string
	Quantity     int
	Price        string
	Subtotal     string
	Notes        string
}

type ticketTemplateData struct {
	TableNumber int
	GeneratedAt string
	Diners      []string
	Lines       []ticketLine
	Subtotal    string
	Tax         string
	Total       string
}

const ticketHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>Bill - Table {{.TableNumber}}</title>
  <style>
    body { font-family: 'Courier New', monospace; font-size: 12px; padding: 12px; color: #000; }
    .header { text-align: center; border-bottom: 1px dashed #000; padding-bottom: 8px; margin-bottom: 8px; }
    .restaurant { font-size: 16px; font-weight: bold; }
    .row { display: flex; justify-content: space-between; margin: 2px 0; }
    .section { border-top: 1px dashed #999; padding-top: 6px; margin-top: 6px; }
    .diner { font-weight: 600; margin-top: 6px; }
    .notes { margin-left: 12px; font-size: 10px; font-style: italic; color: #555; }
    .total { font-weight: bold; font-size: 14px; }
  </style>
</head>
<body>
  <div class="header">
    <div class="restaurant">Vortice</div>
    <div>Table {{.TableNumber}}</div>
    <div>{{.GeneratedAt}}</div>
  </div>
  {{range .Lines}}
    <div class="row">
      <div>{{.Quantity}} x {{.ProductName}}{{if .CustomerName}} ({{.CustomerName}}){{end}}</div>
      <div>{{.Subtotal}}</div>
    </div>
    {{if .Notes}}<div class="notes">{{.Notes}}</div>{{end}}
  {{end}}
  <div class="section">
    <div class="row"><div>Subtotal</div><div>{{.Subtotal}}</div></div>
    <div class="row"><div>Tax</div><div>{{.Tax}}</div></div>
    <div class="row total"><div>Total</div><div>{{.Total}}</div></div>
  </div>
</body>
</html>`

var ticketTemplate = template.Must(template.New("ticket").Parse(ticketHTMLTemplate))

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func (h *Handler) buildTicketData(ctx context.Context, tableID int64, tableNumber int) (ticketTemplateData, bool, error) {
	orders, err := h.fetchChargeableOrders(ctx, tableID)
	if err != nil {
		return ticketTemplateData{}, false, err
	}
	if len(orders) == 0 {
		return ticketTemplateData{}, false, nil
	}

	data := ticketTemplateData{
		TableNumber: tableNumber,
		GeneratedAt: time.Now().Format("2006-01-02 15:04"),
	}

	var subtotal float64
	seen := map[string]bool{}
	for _, order := range orders {
		if !seen[order.CustomerName] {
			seen[order.CustomerName] = true
			data.Diners = append(data.Diners, order.CustomerName)
		}
		for _, item := range order.Items {
			contribution := item.Price * float64(item.Quantity)
			subtotal += contribution
			line := ticketLine{
				CustomerName: order.CustomerName,
				ProductName:  item.ProductName,
				Quantity:     item.Quantity,
				Price:        money(item.Price),
				Subtotal:     money(utils.RoundMoney(contribution)),
			}
			if item.Notes != nil {
				line.Notes = *item.Notes
			}
			data.Lines = append(data.Lines, line)
		}
	}

	subtotal = utils.RoundMoney(subtotal)
	tax, total := computeBillTotals(subtotal)
	data.Subtotal = money(subtotal)
	data.Tax = money(tax)
	data.Total = money(total)
	return data, true, nil
}

func (h *Handler) ticketData(w http.ResponseWriter, r *http.Request) (ticketTemplateData, bool) {
	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return ticketTemplateData{}, false
	}

	tableNumber, ok := h.tableNumberFor(r.Context(), tableID)
	if !ok {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return ticketTemplateData{}, false
	}

	data, found, err := h.buildTicketData(r.Context(), tableID, tableNumber)
	if err != nil {
		h.Logger.Error("ticket build failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build the bill")
		return ticketTemplateData{}, false
	}
	if !found {
		response.Error(w, http.StatusConflict, "NO_ORDERS", "There is nothing to bill on this table")
		return ticketTemplateData{}, false
	}
	return data, true
}

func (h *Handler) BillTicketHTML(w http.ResponseWriter, r *http.Request) {
	data, ok := h.ticketData(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := ticketTemplate.Execute(&buf, data); err != nil {
		h.Logger.Error("ticket render failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render the bill")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) BillTicketPDF(w http.ResponseWriter, r *http.Request) {
	data, ok := h.ticketData(w, r)
	if !ok {
		return
	}

	buf, err := renderTicketPDF(data)
	if err != nil {
		h.Logger.Error("ticket pdf failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render the bill")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"bill_table_%d.pdf\"", data.TableNumber))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func renderTicketPDF(data ticketTemplateData) (*bytes.Buffer, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, "Vortice", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("Table %d", data.TableNumber), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, data.GeneratedAt, "", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Arial", "", 10)
	for _, line := range data.Lines {
		label := fmt.Sprintf("%d x %s", line.Quantity, line.ProductName)
		if line.CustomerName != "" {
			label += fmt.Sprintf(" (%s)", line.CustomerName)
		}
		pdf.CellFormat(140, 5, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, line.Subtotal, "", 1, "R", false, 0, "")
		if line.Notes != "" {
			pdf.SetFont("Arial", "I", 8)
			pdf.CellFormat(0, 4, "  "+line.Notes, "", 1, "L", false, 0, "")
			pdf.SetFont("Arial", "", 10)
		}
	}

	pdf.Ln(3)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(140, 5, "Subtotal", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 5, data.Subtotal, "", 1, "R", false, 0, "")
	pdf.CellFormat(140, 5, "Tax", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 5, data.Tax, "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(140, 6, "Total", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, data.Total, "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}
