package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/consigdesk/consig-ai-platform/internal/sales"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

type salesRepository interface {
	List(ctx context.Context) ([]sales.Sale, error)
	Get(ctx context.Context, id string) (*sales.Sale, error)
	Create(ctx context.Context, s *sales.Sale) error
	Update(ctx context.Context, s *sales.Sale) error
	UpdateStatus(ctx context.Context, id string, status sales.SaleStatus) error
	Delete(ctx context.Context, id string) error
	Summarize(ctx context.Context) (*sales.Summary, error)
}

// AdminSalesHandler exposes the sales control board.
type AdminSalesHandler struct {
	repo   salesRepository
	logger *logging.Logger
}

func NewAdminSalesHandler(repo salesRepository, logger *logging.Logger) *AdminSalesHandler {
	if repo == nil {
		panic("handlers: sales repository is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminSalesHandler{repo: repo, logger: logger}
}

// ListSales returns every sale, newest first.
// GET /admin/sales
func (h *AdminSalesHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	out, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("sales list failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"sales": out, "total": len(out)})
}

// GetSummary returns the dashboard totals.
// GET /admin/sales/summary
func (h *AdminSalesHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.repo.Summarize(r.Context())
	if err != nil {
		h.logger.Error("sales summary failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, sum)
}

// CreateSale registers a closed operation.
// POST /admin/sales
func (h *AdminSalesHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var sale sales.Sale
	if err := json.NewDecoder(r.Body).Decode(&sale); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if sale.ClientName == "" || sale.Product == "" || sale.Value <= 0 {
		http.Error(w, "clientName, product and a positive value are required", http.StatusBadRequest)
		return
	}
	if sale.Status != "" && !sales.ValidStatus(sale.Status) {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	if err := h.repo.Create(r.Context(), &sale); err != nil {
		h.logger.Error("sale create failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sale)
}

// UpdateSale replaces a sale's editable fields.
// PUT /admin/sales/{saleID}
func (h *AdminSalesHandler) UpdateSale(w http.ResponseWriter, r *http.Request) {
	saleID := chi.URLParam(r, "saleID")
	var sale sales.Sale
	if err := json.NewDecoder(r.Body).Decode(&sale); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sale.ID = saleID
	if !sales.ValidStatus(sale.Status) {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	if err := h.repo.Update(r.Context(), &sale); err != nil {
		h.respondSalesError(w, err, "sale update failed")
		return
	}
	writeJSON(w, sale)
}

// UpdateStatusRequest moves a sale through the payment cycle.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateSaleStatus changes only the status.
// PATCH /admin/sales/{saleID}/status
func (h *AdminSalesHandler) UpdateSaleStatus(w http.ResponseWriter, r *http.Request) {
	saleID := chi.URLParam(r, "saleID")
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	status := sales.SaleStatus(req.Status)
	if !sales.ValidStatus(status) {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), saleID, status); err != nil {
		h.respondSalesError(w, err, "sale status update failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSale removes a sale record.
// DELETE /admin/sales/{saleID}
func (h *AdminSalesHandler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	saleID := chi.URLParam(r, "saleID")
	if err := h.repo.Delete(r.Context(), saleID); err != nil {
		h.respondSalesError(w, err, "sale delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminSalesHandler) respondSalesError(w http.ResponseWriter, err error, logMsg string) {
	if errors.Is(err, sales.ErrSaleNotFound) {
		http.Error(w, "sale not found", http.StatusNotFound)
		return
	}
	h.logger.Error(logMsg, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
