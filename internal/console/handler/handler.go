// Package handler exposes the console's local HTTP surface to the UI and
// to test harnesses. It adapts requests onto the controller; all state
// lives behind it.
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"driver-console/internal/console/service"
	"driver-console/internal/domain/billing"
	"driver-console/internal/domain/job"
	"driver-console/internal/domain/post"
	"driver-console/internal/domain/subscription"
	"driver-console/internal/domain/vehicle"
	"driver-console/internal/general/gateway"
	"driver-console/internal/general/logger"
)

// ConsoleHTTPHandler adapts HTTP requests to the console controller.
type ConsoleHTTPHandler struct {
	svc    *service.Controller
	logger *logger.Logger
}

func NewConsoleHTTPHandler(svc *service.Controller, log *logger.Logger) *ConsoleHTTPHandler {
	return &ConsoleHTTPHandler{svc: svc, logger: log}
}

// RegisterRoutes mounts the console endpoints on the provided mux.
func (handler *ConsoleHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/jobs/{id}/action", handler.handleJobAction)
	mux.HandleFunc("POST /v1/jobs", handler.handleCreateJob)

	mux.HandleFunc("POST /v1/approvals/{id}/approve", handler.handleApprove)
	mux.HandleFunc("POST /v1/approvals/{id}/reject", handler.handleReject)
	mux.HandleFunc("POST /v1/approvals/{id}/counter", handler.handleCounterOffer)

	mux.HandleFunc("POST /v1/posts/share", handler.handleCreateSharePost)
	mux.HandleFunc("POST /v1/posts/hire", handler.handleCreateHirePost)

	mux.HandleFunc("POST /v1/vehicles", handler.handleAddVehicle)

	mux.HandleFunc("GET /v1/state", handler.handleState)
	mux.HandleFunc("GET /v1/trip", handler.handleTrip)

	mux.HandleFunc("POST /v1/notifications/read-all", handler.handleMarkAllRead)

	mux.HandleFunc("POST /v1/subscription", handler.handleSelectSubscription)
	mux.HandleFunc("GET /v1/subscription", handler.handleSubscription)

	mux.HandleFunc("GET /healthz", handler.handleHealth)
}

// ----- Job lifecycle -----

func (handler *ConsoleHTTPHandler) handleJobAction(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "job id must be numeric", err)
		return
	}

	out, err := handler.svc.HandleJobAction(ctx, id)
	if err != nil {
		handler.dispatchError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, out)
}

func (handler *ConsoleHTTPHandler) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req job.Job
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := handler.svc.CreateManualJob(ctx, req)
	if err != nil {
		handler.dispatchError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, created)
}

// ----- Approvals -----

func (handler *ConsoleHTTPHandler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	id := r.PathValue("id")
	if err := handler.svc.Approve(ctx, id); err != nil {
		handler.dispatchError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, map[string]string{"status": "approved"})
}

func (handler *ConsoleHTTPHandler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	id := r.PathValue("id")
	if err := handler.svc.Reject(ctx, id); err != nil {
		handler.dispatchError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, map[string]string{"status": "rejected"})
}

type counterOfferRequest struct {
	Amount  float64 `json:"amount"`
	Message string  `json:"message"`
}

func (handler *ConsoleHTTPHandler) handleCounterOffer(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req counterOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Amount <= 0 {
		handler.httpError(ctx, w, http.StatusBadRequest, "amount must be positive", nil)
		return
	}

	id := r.PathValue("id")
	if err := handler.svc.CounterOffer(ctx, id, req.Amount, req.Message); err != nil {
		handler.dispatchError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, map[string]string{"status": "countered"})
}

// ----- Listings and fleet -----

func (handler *ConsoleHTTPHandler) handleCreateSharePost(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req post.SharePost
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := handler.svc.CreateSharePost(ctx, req)
	if err != nil {
		handler.dispatchError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, created)
}

func (handler *ConsoleHTTPHandler) handleCreateHirePost(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req post.HirePost
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := handler.svc.CreateHirePost(ctx, req)
	if err != nil {
		handler.dispatchError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, created)
}

func (handler *ConsoleHTTPHandler) handleAddVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req vehicle.Vehicle
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := handler.svc.AddVehicle(ctx, req)
	if err != nil {
		handler.dispatchError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, created)
}

// ----- Read surface -----

func (handler *ConsoleHTTPHandler) handleState(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	store := handler.svc.Store()

	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{
		"driverId":      handler.svc.DriverID(),
		"jobs":          store.Jobs(),
		"sharePosts":    store.SharePosts(),
		"hirePosts":     store.HirePosts(),
		"approvals":     store.Approvals(),
		"notifications": store.Notifications(),
		"transactions":  store.Transactions(),
		"vehicles":      store.Vehicles(),
		"earnings":      billing.Summarize(store.Transactions()),
	})
}

func (handler *ConsoleHTTPHandler) handleTrip(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	store := handler.svc.Store()

	cur, ok := store.CurrentTrip()
	if !ok {
		handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"active": false})
		return
	}

	resp := map[string]any{"active": true, "job": cur}
	if detail, has := store.TripDetail(); has && detail.JobID == cur.ID {
		resp["detail"] = detail
	}
	handler.jsonResponse(ctx, w, http.StatusOK, resp)
}

func (handler *ConsoleHTTPHandler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	updated := handler.svc.MarkAllNotificationsRead(ctx)
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]int{"updated": updated})
}

type subscriptionRequest struct {
	Duration string  `json:"duration"`
	Price    float64 `json:"price"`
	Discount float64 `json:"discount"`
}

func (handler *ConsoleHTTPHandler) handleSelectSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	duration, err := subscription.ParseDuration(req.Duration)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	cur, err := handler.svc.SelectSubscription(ctx, subscription.Plan{
		Duration: duration,
		Price:    req.Price,
		Discount: req.Discount,
	})
	if err != nil {
		handler.dispatchError(ctx, w, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusCreated, cur)
}

func (handler *ConsoleHTTPHandler) handleSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	cur, ok := handler.svc.Store().Subscription()
	if !ok {
		handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"active": false})
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"active": true, "subscription": cur})
}

func (handler *ConsoleHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// ----- general helpers -----

// dispatchError maps controller errors onto HTTP statuses.
func (handler *ConsoleHTTPHandler) dispatchError(ctx context.Context, w http.ResponseWriter, err error) {
	var apiErr *gateway.APIError

	switch {
	case errors.Is(err, service.ErrJobNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrActionInFlight):
		handler.httpError(ctx, w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, job.ErrTerminalStatus), errors.Is(err, job.ErrInvalidStatus):
		handler.httpError(ctx, w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, job.ErrInvalidKind), errors.Is(err, job.ErrMissingRoute), errors.Is(err, job.ErrNegativePayout),
		errors.Is(err, post.ErrMissingRoute), errors.Is(err, post.ErrMissingTitle),
		errors.Is(err, post.ErrNonPositiveRate), errors.Is(err, post.ErrNoSeats),
		errors.Is(err, vehicle.ErrMissingDriver), errors.Is(err, vehicle.ErrMissingPlate):
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &apiErr):
		handler.httpError(ctx, w, http.StatusBadGateway, apiErr.Message, err)
	default:
		handler.httpError(ctx, w, http.StatusInternalServerError, "internal error", err)
	}
}

func (handler *ConsoleHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *ConsoleHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *ConsoleHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
