package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlement/pkg/entitlement"
	"github.com/dmitrymomot/entitlement/pkg/logger"
)

// mountIntake registers POST /v1/events, which applies a subscription API
// call and answers 202 with the subscription id, and
// POST /v1/subscriptions/{id}/schedule, which replaces the pending phase
// event of one subscription.
func mountIntake(api *subscriptionAPI) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/v1/events", func(w http.ResponseWriter, req *http.Request) {
			var body eventRequest
			dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<16))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}

			res, err := api.Apply(req.Context(), body)
			if err != nil {
				failed(w, req, api, err)
				return
			}
			writeJSON(w, http.StatusAccepted, res)
		})

		r.Post("/v1/subscriptions/{id}/schedule", func(w http.ResponseWriter, req *http.Request) {
			id, err := uuid.Parse(chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			if err := api.Reschedule(req.Context(), id); err != nil {
				failed(w, req, api, err)
				return
			}
			writeJSON(w, http.StatusAccepted, appliedEvent{SubscriptionID: id, PhaseScheduled: true})
		})
	}
}

func failed(w http.ResponseWriter, req *http.Request, api *subscriptionAPI, err error) {
	status := intakeStatus(err)
	if status >= http.StatusInternalServerError {
		api.log.ErrorContext(req.Context(), "subscription request failed", logger.Error(err))
	}
	writeError(w, status, err)
}

func intakeStatus(err error) int {
	switch {
	case errors.Is(err, entitlement.ErrSubscriptionNotFound):
		return http.StatusNotFound
	case errors.Is(err, entitlement.ErrSubscriptionExists),
		errors.Is(err, entitlement.ErrTransitionOutOfOrder),
		errors.Is(err, errNotActive):
		return http.StatusConflict
	case errors.Is(err, entitlement.ErrUnknownAction),
		errors.Is(err, entitlement.ErrPlanNotFound),
		errors.Is(err, errPlanRequired),
		errors.Is(err, errIDRequired),
		errors.Is(err, errPlanNoPhases):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
