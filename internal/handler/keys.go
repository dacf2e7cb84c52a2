package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/tollgate/internal/auth"
	"github.com/faucetdb/tollgate/internal/model"
	"github.com/faucetdb/tollgate/internal/server/middleware"
	"github.com/faucetdb/tollgate/internal/service"
)

// KeyHandler serves the key administration API and the gate endpoint.
type KeyHandler struct {
	keys   *service.KeyService
	logger *slog.Logger
}

// NewKeyHandler creates a new KeyHandler.
func NewKeyHandler(keys *service.KeyService, logger *slog.Logger) *KeyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyHandler{keys: keys, logger: logger}
}

// Generate handles POST /api/v1/keys/{seconds}.
func (h *KeyHandler) Generate(w http.ResponseWriter, r *http.Request) {
	lifetime, err := parseSeconds(chi.URLParam(r, "seconds"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid lifetime: "+err.Error())
		return
	}

	k, err := h.keys.GenerateKey(r.Context(), lifetime)
	if err != nil {
		status, msg := classifyKeyError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("generate key failed", "error", err)
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusCreated, model.NewKeyResponse(k))
}

// List handles GET /api/v1/keys.
func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.NewKeyList(h.keys.ListKeys()))
}

// Get handles GET /api/v1/key/{key}. The key is returned whether or not it
// has expired.
func (h *KeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, err := auth.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	k, err := h.keys.LookupKey(r.Context(), key)
	if err != nil {
		status, msg := classifyKeyError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("lookup key failed", "error", err)
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, model.NewKeyResponse(k))
}

// Delete handles DELETE /api/v1/key/{key}.
func (h *KeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key, err := auth.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.keys.RemoveKey(r.Context(), key); err != nil {
		status, msg := classifyKeyError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("remove key failed", "error", err)
		}
		writeError(w, status, msg)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reload handles POST /api/v1/keys/reload.
func (h *KeyHandler) Reload(w http.ResponseWriter, r *http.Request) {
	n, err := h.keys.ReloadKeys(r.Context())
	if err != nil {
		h.logger.Error("reload keys failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to reload keys")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"loaded": n})
}

// Gate reports the key admitted by middleware.RequireKey.
func (h *KeyHandler) Gate(w http.ResponseWriter, r *http.Request) {
	k, ok := middleware.KeyFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Access key required")
		return
	}
	writeJSON(w, http.StatusOK, model.NewKeyResponse(k))
}
