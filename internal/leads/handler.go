package leads

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

// Handler exposes lead CRUD plus the customer-base CSV import.
type Handler struct {
	repo     Repository
	importer *Importer
	logger   *logging.Logger
}

// NewHandler creates a lead handler.
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("leads: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:     repo,
		importer: NewImporter(repo),
		logger:   logger,
	}
}

// Create handles POST /leads.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode lead request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	lead, err := h.repo.Create(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrInvalidName) || errors.Is(err, ErrMissingPhone) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to create lead", "error", err)
		http.Error(w, "Failed to create lead", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, lead)
}

// List handles GET /leads.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list leads", "error", err)
		http.Error(w, "Failed to list leads", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, all)
}

// Get handles GET /leads/{leadID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	lead, err := h.repo.Get(r.Context(), leadID)
	if err != nil {
		if errors.Is(err, ErrLeadNotFound) {
			http.Error(w, "Lead not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get lead", "error", err, "lead_id", leadID)
		http.Error(w, "Failed to get lead", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, lead)
}

// Import handles POST /leads/import with a CSV body.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	result, err := h.importer.ImportCSV(r.Context(), r.Body)
	if err != nil {
		h.logger.Error("csv import failed", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logger.Info("customer base imported", "created", result.Created, "skipped", result.Skipped, "errors", len(result.Errors))
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
