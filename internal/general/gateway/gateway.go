// Package gateway is the typed client for the platform backend. Every
// call forwards the session bearer token; non-2xx responses surface as
// *APIError so callers can branch on the backend's verdict.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"driver-console/internal/domain/approval"
	"driver-console/internal/domain/billing"
	"driver-console/internal/domain/job"
	"driver-console/internal/domain/notification"
	"driver-console/internal/domain/post"
	"driver-console/internal/domain/vehicle"
	"driver-console/internal/general/auth"
	"driver-console/internal/general/logger"
	"driver-console/internal/general/metrics"
)

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  auth.TokenSource
	log     *logger.Logger
}

func New(baseURL string, timeout time.Duration, tokens auth.TokenSource, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		log:     log,
	}
}

// do runs one authenticated round trip. body and out may be nil. op is
// the fixed operation label for latency metrics; never derive it from
// the path, which embeds entity ids.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	tok, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("load bearer token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.GatewayLatency.WithLabelValues(op, "transport_error").Observe(time.Since(started).Seconds())
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	metrics.GatewayLatency.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Observe(time.Since(started).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.apiError(ctx, method, path, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// apiError drains the failed response into a typed error. The backend
// writes either {"error": ...} or {"message": ...}; fall back to the raw
// body when it does neither.
func (c *Client) apiError(ctx context.Context, method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Error != "" {
			msg = parsed.Error
		} else {
			msg = parsed.Message
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	c.log.Debug(ctx, "backend_call_failed", fmt.Sprintf("%s %s -> %d", method, path, resp.StatusCode), nil)
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// ----- Negotiation -----

func (c *Client) DriverPendingApprovals(ctx context.Context) ([]approval.Request, error) {
	var out []approval.Request
	if err := c.do(ctx, "pending_approvals", http.MethodGet, "/api/v1/driver/approvals", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ApproveResult carries the price the backend settled on. Zero when the
// request was rejected or the backend omits it.
type ApproveResult struct {
	AcceptedPrice float64 `json:"acceptedPrice"`
	JobID         int64   `json:"jobId"`
}

func (c *Client) ApproveRequest(ctx context.Context, id string, approved bool) (ApproveResult, error) {
	body := map[string]bool{"approved": approved}
	var out ApproveResult
	err := c.do(ctx, "approve_respond", http.MethodPost, "/api/v1/driver/approvals/"+id+"/respond", body, &out)
	return out, err
}

func (c *Client) MakeDriverCounterOffer(ctx context.Context, id string, counterPrice float64, message string) error {
	body := map[string]any{
		"counterPrice": counterPrice,
		"message":      message,
	}
	return c.do(ctx, "counter_offer", http.MethodPost, "/api/v1/driver/approvals/"+id+"/counter-offer", body, nil)
}

// ----- Job lifecycle -----

func (c *Client) UpdateRideStatus(ctx context.Context, id int64, status job.Status) error {
	body := map[string]string{"status": status.String()}
	return c.do(ctx, "update_ride_status", http.MethodPatch, fmt.Sprintf("/api/v1/rides/%d/status", id), body, nil)
}

func (c *Client) ConfirmHandover(ctx context.Context, id int64) error {
	return c.do(ctx, "confirm_handover", http.MethodPost, fmt.Sprintf("/api/v1/rides/%d/confirm-handover", id), nil, nil)
}

func (c *Client) CreateManualJob(ctx context.Context, j job.Job) (job.Job, error) {
	var out job.Job
	err := c.do(ctx, "create_job", http.MethodPost, "/api/v1/driver/jobs", j, &out)
	return out, err
}

func (c *Client) ContractedJobs(ctx context.Context) ([]job.Job, error) {
	var out []job.Job
	if err := c.do(ctx, "list_jobs", http.MethodGet, "/api/v1/driver/jobs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ----- Listings -----

func (c *Client) AddDriverSharePost(ctx context.Context, p post.SharePost) (post.SharePost, error) {
	var out post.SharePost
	err := c.do(ctx, "add_share_post", http.MethodPost, "/api/v1/driver/share-posts", p, &out)
	return out, err
}

func (c *Client) AddDriverHirePost(ctx context.Context, p post.HirePost) (post.HirePost, error) {
	var out post.HirePost
	err := c.do(ctx, "add_hire_post", http.MethodPost, "/api/v1/driver/hire-posts", p, &out)
	return out, err
}

func (c *Client) SharePosts(ctx context.Context) ([]post.SharePost, error) {
	var out []post.SharePost
	if err := c.do(ctx, "list_share_posts", http.MethodGet, "/api/v1/driver/share-posts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) HirePosts(ctx context.Context) ([]post.HirePost, error) {
	var out []post.HirePost
	if err := c.do(ctx, "list_hire_posts", http.MethodGet, "/api/v1/driver/hire-posts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ----- Fleet, ledger, notifications -----

func (c *Client) AddVehicle(ctx context.Context, v vehicle.Vehicle) (vehicle.Vehicle, error) {
	var out vehicle.Vehicle
	err := c.do(ctx, "add_vehicle", http.MethodPost, "/api/v1/driver/vehicles", v, &out)
	return out, err
}

func (c *Client) Vehicles(ctx context.Context) ([]vehicle.Vehicle, error) {
	var out []vehicle.Vehicle
	if err := c.do(ctx, "list_vehicles", http.MethodGet, "/api/v1/driver/vehicles", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Transactions(ctx context.Context) ([]billing.Transaction, error) {
	var out []billing.Transaction
	if err := c.do(ctx, "list_transactions", http.MethodGet, "/api/v1/driver/transactions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Notifications(ctx context.Context) ([]notification.Notification, error) {
	var out []notification.Notification
	if err := c.do(ctx, "list_notifications", http.MethodGet, "/api/v1/driver/notifications", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
