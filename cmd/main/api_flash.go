package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/CTAG07/Nepenthes/pkg/flash"
)

// FlashAPI lets other services queue scripts for a session's next control
// panel page.
type FlashAPI struct {
	flashes *flash.Store
	logger  *slog.Logger
}

// NewFlashAPI creates a new instance of the FlashAPI.
func NewFlashAPI(flashes *flash.Store, logger *slog.Logger) *FlashAPI {
	return &FlashAPI{
		flashes: flashes,
		logger:  logger,
	}
}

// AddFlashRequest is the expected JSON body for queuing a flash.
type AddFlashRequest struct {
	SessionID string `json:"session_id"`
	// Kind is "js_resource" for a resource path or "js" for a script snippet.
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// RegisterRoutes sets up the routing for all /api/flashes endpoints.
func (a *FlashAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/flashes", a.handleAdd)
}

func (a *FlashAPI) handleAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "flashes:write") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'flashes:write' scope")
		return
	}

	var req AddFlashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || req.Value == "" {
		respondWithError(w, http.StatusBadRequest, "session_id and value are required")
		return
	}

	var err error
	switch flash.Kind(req.Kind) {
	case flash.KindJSResource:
		err = a.flashes.AddJSResource(r.Context(), req.SessionID, req.Value)
	case flash.KindJS:
		err = a.flashes.AddJS(r.Context(), req.SessionID, req.Value)
	default:
		respondWithError(w, http.StatusBadRequest, "kind must be 'js_resource' or 'js'")
		return
	}
	if err != nil {
		a.logger.Error("Failed to add flash", "kind", req.Kind, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save flash")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
