package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-fcm-messaging/pkg/dispatch"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
)

type NotifyAPI struct {
	Notifier dispatch.Notifier
	Logger   *slog.Logger
}

func NewNotifyAPI(notifier dispatch.Notifier, logger *slog.Logger) *NotifyAPI {
	return &NotifyAPI{
		Notifier: notifier,
		Logger:   logger.With("component", "NotifyAPI"),
	}
}

// NotifyResponse is the JSON view of a dispatch.Result.
type NotifyResponse struct {
	Delivered bool                      `json:"delivered"`
	Failure   string                    `json:"failure,omitempty"`
	Cause     string                    `json:"cause,omitempty"`
	Report    *dispatch.MulticastReport `json:"report,omitempty"`
	Pruned    []string                  `json:"pruned,omitempty"`
}

// Notify accepts a NotifyRequest and answers 200 when delivered, 400 when the
// request or payload is invalid, and 502 when FCM refused the delivery.
func (api *NotifyAPI) Notify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dispatch.NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := req.ValidateTarget(); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "exactly one of token, tokens, user_id or broadcast is required")
		return
	}

	res, err := api.Notifier.Handle(ctx, req)
	if err != nil {
		if errors.Is(err, dispatch.ErrNoTarget) {
			response.WriteJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		api.Logger.Error("failed to resolve recipients", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	caller, _ := middleware.GetUserHandleFromContext(ctx)
	api.Logger.Debug("Notify: handled", "caller", caller, "delivered", res.Delivered, "failure", res.Kind)

	body := NotifyResponse{
		Delivered: res.Delivered,
		Cause:     res.Cause(),
		Report:    res.Report,
		Pruned:    res.Pruned,
	}
	if !res.Delivered {
		body.Failure = res.Kind.String()
	}

	switch {
	case res.Delivered:
		writeJSON(w, http.StatusOK, body)
	case res.Kind == dispatch.FailureInvalidInput:
		writeJSON(w, http.StatusBadRequest, body)
	default:
		writeJSON(w, http.StatusBadGateway, body)
	}
}
