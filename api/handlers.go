package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Skryldev/product-catalog/db"
	"github.com/Skryldev/product-catalog/models"
	"github.com/Skryldev/product-catalog/repo"
	"github.com/Skryldev/product-catalog/validation"
)

// Handler serves the product endpoints.
type Handler struct {
	repo  repo.ProductRepository
	ready *Readiness
}

type createdBody struct {
	Message string          `json:"message"`
	Product *models.Product `json:"product"`
}

type listBody struct {
	Message  string            `json:"message"`
	Products []*models.Product `json:"products"`
}

// Create handles POST /products.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	params, err := validation.DecodeCreate(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, err, "create")
		return
	}
	p, err := h.repo.Create(r.Context(), params)
	if err != nil {
		h.fail(w, r, err, "create")
		return
	}
	writeJSON(w, http.StatusCreated, createdBody{Message: "product created successfully", Product: p})
}

// List handles GET /products with an optional ?search= term.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	products, err := h.repo.List(r.Context(), search)
	if err != nil {
		h.fail(w, r, err, "list")
		return
	}
	if products == nil {
		products = []*models.Product{}
	}

	msg := "list of all products"
	if strings.TrimSpace(search) != "" {
		msg = fmt.Sprintf("list of products matching %q", search)
	}
	writeJSON(w, http.StatusOK, listBody{Message: msg, Products: products})
}

// Get handles GET /products/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "get")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Update handles PUT /products/{id}. Only the fields present in the body
// change.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	params, err := validation.DecodeUpdate(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, err, "update")
		return
	}
	params.ID = id
	if err := h.repo.Update(r.Context(), params); err != nil {
		h.fail(w, r, err, "update")
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "product updated successfully"})
}

// Delete handles DELETE /products/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err, "delete")
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "product deleted successfully"})
}

// Health is the liveness probe; it never touches the database.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the schema is initialised and storage answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if ok, reason := h.ready.Ready(); !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "reason": reason})
		return
	}
	n, err := h.repo.Count(r.Context())
	if err != nil {
		LoggerFrom(r.Context()).Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "reason": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "products": n})
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}

// fail maps an error from validation or the repository to a response.
// Only unexpected storage failures are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, action string) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, models.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "no valid fields provided for update")
	case db.IsCheckViolation(err):
		writeError(w, http.StatusBadRequest, "price must be greater than zero")
	case db.IsDuplicateKey(err):
		writeError(w, http.StatusConflict, "a product with this name already exists")
	case db.IsNotFound(err):
		writeError(w, http.StatusNotFound, "product not found")
	default:
		LoggerFrom(r.Context()).Error("product operation failed", "action", action, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to %s product: %v", action, err))
	}
}
