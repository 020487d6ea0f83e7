package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/Kevin-ecometrics/vortice/internal/utils"
	"github.com/Kevin-ecometrics/vortice/pkg/response"

	"go.uber.org/zap"
)

// validInvoiceEmail accepts a bare address only; display names mean the
// field was pasted from somewhere it should not have been.
func validInvoiceEmail(email string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	return err == nil && addr.Name == ""
}

type invoiceRequest struct {
	CustomerName string `json:"customerName"`
	Email        string `json:"email"`
	TaxID        string `json:"taxId"`
}

type invoiceLine struct {
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Subtotal    float64 `json:"subtotal"`
}

type invoiceDiner struct {
	Name      string  `json:"name"`
	ItemCount int     `json:"itemCount"`
	Subtotal  float64 `json:"subtotal"`
}

type invoicePayload struct {
	TableNumber  int            `json:"tableNumber"`
	CustomerName string         `json:"customerName"`
	Email        string         `json:"email"`
	TaxID        string         `json:"taxId"`
	Diners       []invoiceDiner `json:"diners"`
	Lines        []invoiceLine  `json:"lines"`
	Subtotal     float64        `json:"subtotal"`
	Tax          float64        `json:"tax"`
	Total        float64        `json:"total"`
	RequestedAt  time.Time      `json:"requestedAt"`
}

func buildInvoicePayload(orders []chargeOrder, tableNumber int, req invoiceRequest) invoicePayload {
	payload := invoicePayload{
		TableNumber:  tableNumber,
		CustomerName: strings.TrimSpace(req.CustomerName),
		Email:        strings.TrimSpace(req.Email),
		TaxID:        strings.ToUpper(strings.TrimSpace(req.TaxID)),
		Diners:       make([]invoiceDiner, 0),
		Lines:        make([]invoiceLine, 0),
		RequestedAt:  time.Now().UTC(),
	}

	var subtotal float64
	dinerIndex := map[string]int{}
	for _, order := range orders {
		idx, ok := dinerIndex[order.CustomerName]
		if !ok {
			idx = len(payload.Diners)
			dinerIndex[order.CustomerName] = idx
			payload.Diners = append(payload.Diners, invoiceDiner{Name: order.CustomerName})
		}
		for _, item := range order.Items {
			contribution := item.Price * float64(item.Quantity)
			subtotal += contribution
			payload.Diners[idx].ItemCount += item.Quantity
			payload.Diners[idx].Subtotal = utils.RoundMoney(payload.Diners[idx].Subtotal + utils.RoundMoney(contribution))
			payload.Lines = append(payload.Lines, invoiceLine{
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				UnitPrice:   item.Price,
				Subtotal:    utils.RoundMoney(contribution),
			})
		}
	}

	payload.Subtotal = utils.RoundMoney(subtotal)
	payload.Tax, payload.Total = computeBillTotals(payload.Subtotal)
	return payload
}

// RequestInvoice forwards the table's consumption to the external invoicing
// service. The call is synchronous with a short timeout; a slow provider
// must not hold the table hostage.
func (h *Handler) RequestInvoice(w http.ResponseWriter, r *http.Request) {
	tableID, err := readPathInt64(r, "tableId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table ID is required")
		return
	}

	var req invoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.TaxID) == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email and tax ID are required")
		return
	}
	if !validInvoiceEmail(req.Email) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "A valid email address is required")
		return
	}

	if strings.TrimSpace(h.Config.InvoiceEndpoint) == "" {
		response.Error(w, http.StatusServiceUnavailable, "INVOICE_DISABLED", "Invoicing is not configured")
		return
	}

	tableNumber, ok := h.tableNumberFor(r.Context(), tableID)
	if !ok {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
		return
	}

	orders, err := h.fetchChargeableOrders(r.Context(), tableID)
	if err != nil {
		h.Logger.Error("invoice orders query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to request invoice")
		return
	}
	if len(orders) == 0 {
		response.Error(w, http.StatusConflict, "NO_ORDERS", "There is nothing to invoice on this table")
		return
	}

	payload := buildInvoicePayload(orders, tableNumber, req)
	body, err := json.Marshal(payload)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to request invoice")
		return
	}

	timeout := h.Config.InvoiceTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Config.InvoiceEndpoint, bytes.NewReader(body))
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to request invoice")
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		h.Logger.Warn("invoice provider unreachable", zap.Int64("tableId", tableID), zapError(err))
		response.Error(w, http.StatusBadGateway, "TRANSPORT_ERROR", "The invoicing service did not respond")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.Logger.Warn("invoice provider rejected request",
			zap.Int64("tableId", tableID), zap.Int("status", resp.StatusCode))
		response.Error(w, http.StatusBadGateway, "INVOICE_PROVIDER_ERROR",
			fmt.Sprintf("The invoicing service returned status %d", resp.StatusCode))
		return
	}

	response.Success(w, map[string]any{
		"submitted": true,
		"total":     payload.Total,
		"email":     payload.Email,
	})
}
