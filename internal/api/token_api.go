package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tinywideclouds/go-fcm-messaging/pkg/dispatch"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
)

type TokenAPI struct {
	Store  dispatch.TokenStore
	Logger *slog.Logger
}

func NewTokenAPI(store dispatch.TokenStore, logger *slog.Logger) *TokenAPI {
	return &TokenAPI{
		Store:  store,
		Logger: logger.With("component", "TokenAPI"),
	}
}

// --- LIST ---

// ListTokens returns every token record, or only one user's when the
// user_id query parameter is present.
func (api *TokenAPI) ListTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		records []dispatch.TokenRecord
		err     error
	)
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		userID, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			response.WriteJSONError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		records, err = api.Store.TokensForUser(ctx, userID)
	} else {
		records, err = api.Store.AllTokens(ctx)
	}
	if err != nil {
		api.Logger.Error("failed to list tokens", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	if records == nil {
		records = []dispatch.TokenRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// --- PRUNE ---

type PruneRequest struct {
	Tokens []string `json:"tokens"`
}

type PruneResponse struct {
	Removed bool `json:"removed"`
}

func (api *TokenAPI) PruneTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	removed, err := api.Store.DeleteTokens(ctx, req.Tokens)
	if err != nil {
		api.Logger.Error("failed to prune tokens", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	caller, _ := middleware.GetUserHandleFromContext(ctx)
	api.Logger.Info("PruneTokens: tokens pruned", "caller", caller, "requested", len(req.Tokens), "removed", removed)

	writeJSON(w, http.StatusOK, PruneResponse{Removed: removed})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
