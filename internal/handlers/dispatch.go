// Package handlers exposes the HTTP surface of the dispatch service: the
// single JSON dispatch endpoint plus health and metrics.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"drysense-push-go/internal/auth"
	"drysense-push-go/internal/models"
	"drysense-push-go/internal/push"
	"drysense-push-go/internal/store"
	"drysense-push-go/internal/sweep"
	"drysense-push-go/internal/vapid"
)

// Action is the closed set of operations the dispatch endpoint accepts.
// Anything outside this set is a 400 before any other processing.
type Action string

const (
	ActionGetVAPIDPublicKey    Action = "get_vapid_public_key"
	ActionSendToUser           Action = "send_to_user"
	ActionSendToEndpoint       Action = "send_to_endpoint"
	ActionSendLoggingReminders Action = "send_logging_reminders"
	ActionSendClimateAlerts    Action = "send_climate_alerts"
)

// ParseAction maps a request string onto the action set.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionGetVAPIDPublicKey,
		ActionSendToUser,
		ActionSendToEndpoint,
		ActionSendLoggingReminders,
		ActionSendClimateAlerts:
		return a, true
	}
	return "", false
}

type dispatchRequest struct {
	Action       string                      `json:"action"`
	UserID       string                      `json:"userId"`
	Endpoint     string                      `json:"endpoint"`
	Notification *models.NotificationPayload `json:"notification"`
}

// Handler wires the dispatch endpoint to its collaborators. App may be nil
// when the configured VAPID material failed to normalize; the public-key
// action then falls back to RawPublicKey so clients can still register.
type Handler struct {
	Store        store.Store
	Sender       sweep.Sender
	App          *vapid.ApplicationServer
	RawPublicKey string
	Verifier     *auth.Verifier
	CronSecret   string
	Sweeper      *sweep.Sweeper
	Logger       *slog.Logger
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Dispatch handles POST /api/dispatch.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	action, ok := ParseAction(req.Action)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid action")
		return
	}

	switch action {
	case ActionGetVAPIDPublicKey:
		h.vapidPublicKey(w)
	case ActionSendToUser:
		h.sendToUser(w, r, req)
	case ActionSendToEndpoint:
		h.sendToEndpoint(w, r, req)
	case ActionSendLoggingReminders:
		h.runSweep(w, r, h.Sweeper.Reminders)
	case ActionSendClimateAlerts:
		h.runSweep(w, r, h.Sweeper.Climate)
	}
}

func (h *Handler) vapidPublicKey(w http.ResponseWriter) {
	key := h.RawPublicKey
	if h.App != nil {
		key = h.App.VAPIDPublicKey()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"publicKey": key,
	})
}

func (h *Handler) sendToUser(w http.ResponseWriter, r *http.Request, req dispatchRequest) {
	subject, err := h.Verifier.SubjectFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	// Ownership is settled before any subscription lookup happens.
	if subject != req.UserID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if req.Notification == nil {
		writeError(w, http.StatusBadRequest, "notification is required")
		return
	}

	subs, err := h.Store.SubscriptionsByUser(r.Context(), req.UserID)
	if err != nil {
		h.logger().Error("subscription lookup failed", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "subscription lookup failed")
		return
	}

	var sent, failed int
	for _, sub := range subs {
		if err := h.send(r, sub, *req.Notification); err != nil {
			failed++
			continue
		}
		sent++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": failed == 0,
		"sent":    sent,
		"failed":  failed,
		"total":   len(subs),
	})
}

func (h *Handler) sendToEndpoint(w http.ResponseWriter, r *http.Request, req dispatchRequest) {
	subject, err := h.Verifier.SubjectFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}
	if req.Notification == nil {
		writeError(w, http.StatusBadRequest, "notification is required")
		return
	}

	sub, err := h.Store.SubscriptionByEndpoint(r.Context(), req.Endpoint)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	if err != nil {
		h.logger().Error("subscription lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "subscription lookup failed")
		return
	}
	if sub.UserID != subject {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	switch err := h.send(r, sub, *req.Notification); {
	case errors.Is(err, push.ErrSubscriptionGone):
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   "subscription_expired",
		})
	case err != nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// send pushes one payload and deactivates the subscription if the push
// service reports it gone.
func (h *Handler) send(r *http.Request, sub models.PushSubscription, payload models.NotificationPayload) error {
	err := h.Sender.Send(r.Context(), sub, payload)
	if errors.Is(err, push.ErrSubscriptionGone) {
		if derr := h.Store.DeactivateSubscription(r.Context(), sub.ID); derr != nil {
			h.logger().Error("deactivate failed", "subscription_id", sub.ID, "error", derr)
		}
	}
	return err
}

func (h *Handler) runSweep(w http.ResponseWriter, r *http.Request, run func(ctx context.Context) (sweep.Result, error)) {
	switch err := auth.CheckCronSecret(r, h.CronSecret); {
	case errors.Is(err, auth.ErrWeakCronSecret):
		h.logger().Error("refusing sweep", "error", err)
		writeError(w, http.StatusInternalServerError, "cron secret misconfigured")
		return
	case err != nil:
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	res, err := run(r.Context())
	if err != nil {
		h.logger().Error("sweep failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"sent":    res.Sent,
		"skipped": res.Skipped,
		"failed":  res.Failed,
		"total":   res.Total,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
	})
}
