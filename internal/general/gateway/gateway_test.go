package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"driver-console/internal/domain/job"
	"driver-console/internal/general/auth"
	"driver-console/internal/general/logger"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second, auth.StaticTokenSource("tok-123"), logger.New("gateway-test"))
}

func TestDoSendsBearerToken(t *testing.T) {
	var gotAuth string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	})

	if _, err := c.ContractedJobs(context.Background()); err != nil {
		t.Fatalf("ContractedJobs: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestCounterOfferPayload(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})

	err := c.MakeDriverCounterOffer(context.Background(), "R9", 40000, "final offer")
	if err != nil {
		t.Fatalf("MakeDriverCounterOffer: %v", err)
	}
	if gotPath != "/api/v1/driver/approvals/R9/counter-offer" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["counterPrice"] != float64(40000) || gotBody["message"] != "final offer" {
		t.Errorf("body = %v", gotBody)
	}
	if len(gotBody) != 2 {
		t.Errorf("body should carry exactly counterPrice and message, got %v", gotBody)
	}
}

func TestUpdateRideStatusBody(t *testing.T) {
	var gotMethod string
	var gotBody map[string]string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	})

	if err := c.UpdateRideStatus(context.Background(), 7, job.StatusInbound); err != nil {
		t.Fatalf("UpdateRideStatus: %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %s", gotMethod)
	}
	if gotBody["status"] != "Inbound" {
		t.Errorf("status = %q, want display casing", gotBody["status"])
	}
}

func TestNon2xxBecomesAPIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"handover already confirmed"}`))
	})

	err := c.ConfirmHandover(context.Background(), 2)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %T (%v), want *APIError", err, err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Message != "handover already confirmed" {
		t.Errorf("APIError = %+v", apiErr)
	}
}
