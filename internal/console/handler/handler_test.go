package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"driver-console/internal/console/poll"
	"driver-console/internal/console/service"
	"driver-console/internal/console/state"
	"driver-console/internal/domain/approval"
	"driver-console/internal/domain/billing"
	"driver-console/internal/domain/geo"
	"driver-console/internal/domain/job"
	"driver-console/internal/domain/notification"
	"driver-console/internal/domain/post"
	"driver-console/internal/domain/vehicle"
	"driver-console/internal/general/config"
	"driver-console/internal/general/events"
	"driver-console/internal/general/gateway"
	"driver-console/internal/general/logger"
)

// quietGateway accepts everything; routes under test exercise the
// controller, not the backend.
type quietGateway struct{}

func (quietGateway) DriverPendingApprovals(ctx context.Context) ([]approval.Request, error) {
	return nil, nil
}

func (quietGateway) ApproveRequest(ctx context.Context, id string, approved bool) (gateway.ApproveResult, error) {
	return gateway.ApproveResult{}, nil
}

func (quietGateway) MakeDriverCounterOffer(ctx context.Context, id string, counterPrice float64, message string) error {
	return nil
}

func (quietGateway) UpdateRideStatus(ctx context.Context, id int64, status job.Status) error {
	return nil
}

func (quietGateway) ConfirmHandover(ctx context.Context, id int64) error { return nil }

func (quietGateway) CreateManualJob(ctx context.Context, j job.Job) (job.Job, error) {
	j.ID = 100
	return j, nil
}

func (quietGateway) ContractedJobs(ctx context.Context) ([]job.Job, error) { return nil, nil }

func (quietGateway) AddDriverSharePost(ctx context.Context, p post.SharePost) (post.SharePost, error) {
	p.ID = "srv-1"
	return p, nil
}

func (quietGateway) AddDriverHirePost(ctx context.Context, p post.HirePost) (post.HirePost, error) {
	p.ID = "srv-h1"
	return p, nil
}

func (quietGateway) SharePosts(ctx context.Context) ([]post.SharePost, error) { return nil, nil }
func (quietGateway) HirePosts(ctx context.Context) ([]post.HirePost, error)   { return nil, nil }

func (quietGateway) AddVehicle(ctx context.Context, v vehicle.Vehicle) (vehicle.Vehicle, error) {
	v.ID = "v-1"
	return v, nil
}

func (quietGateway) Vehicles(ctx context.Context) ([]vehicle.Vehicle, error) { return nil, nil }

func (quietGateway) Transactions(ctx context.Context) ([]billing.Transaction, error) {
	return nil, nil
}

func (quietGateway) Notifications(ctx context.Context) ([]notification.Notification, error) {
	return nil, nil
}

type nullGeocoder struct{}

func (nullGeocoder) Geocode(ctx context.Context, address string) (geo.Point, error) {
	return geo.Point{Lat: 51.1, Lng: 71.4}, nil
}

type nullChannel struct{}

func (nullChannel) Connect(ctx context.Context, userID, role string) error { return nil }
func (nullChannel) On(event string, h events.Handler)                      {}
func (nullChannel) Off(event string)                                       {}
func (nullChannel) Disconnect()                                            {}

func testServer(t *testing.T) (*httptest.Server, *state.Store) {
	t.Helper()

	log := logger.New("handler-test")
	store := state.NewStore()
	sched := poll.NewScheduler(log)
	t.Cleanup(sched.StopAll)

	cfg := &config.Config{}
	cfg.Polling.ApprovalsSeconds = 3
	cfg.Polling.JobsSeconds = 5
	cfg.Polling.PostsSeconds = 10
	cfg.Polling.TransactionsSeconds = 12
	cfg.Polling.NotificationsSeconds = 15
	cfg.Polling.AnalyticsSeconds = 20

	svc := service.NewController(log, store, quietGateway{}, nullGeocoder{}, nullChannel{}, sched, "d-1", cfg)

	mux := http.NewServeMux()
	NewConsoleHTTPHandler(svc, log).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func TestJobActionRoute(t *testing.T) {
	srv, store := testServer(t)
	store.UpsertJob(job.Job{ID: 1, Kind: job.KindShare, Status: job.StatusScheduled, Origin: "A", Destination: "B", SyncState: job.SyncSynced})

	resp, err := http.Post(srv.URL+"/v1/jobs/1/action", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out struct {
		Status string `json:"status"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Status != "Inbound" {
		t.Errorf("status = %q, want Inbound", out.Status)
	}
}

func TestJobActionUnknownJobIs404(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Post(srv.URL+"/v1/jobs/99/action", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestJobActionNonNumericIdIs400(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Post(srv.URL+"/v1/jobs/abc/action", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCounterOfferRouteValidation(t *testing.T) {
	srv, store := testServer(t)
	store.AddApproval(approval.Request{ID: "R9", DriverID: "d-1"})

	resp, err := http.Post(srv.URL+"/v1/approvals/R9/counter", "application/json",
		strings.NewReader(`{"amount":0,"message":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("zero amount: status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/v1/approvals/R9/counter", "application/json",
		strings.NewReader(`{"amount":40000,"message":"final offer"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid counter: status = %d", resp.StatusCode)
	}

	if got := store.Approvals(); len(got) != 0 {
		t.Errorf("approvals = %+v, want removed", got)
	}
}

func TestSharePostRouteCreates(t *testing.T) {
	srv, store := testServer(t)

	resp, err := http.Post(srv.URL+"/v1/posts/share", "application/json",
		strings.NewReader(`{"origin":"Astana","destination":"Karaganda","price":2000,"seats":3}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := store.SharePosts(); len(got) != 1 || got[0].ID != "srv-1" {
		t.Errorf("posts = %+v", got)
	}
}

func TestSharePostRouteRejectsInvalidBody(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Post(srv.URL+"/v1/posts/share", "application/json",
		strings.NewReader(`{"origin":"Astana","destination":"Karaganda","price":2000,"seats":0}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for zero seats", resp.StatusCode)
	}
}

func TestTripRoute(t *testing.T) {
	srv, store := testServer(t)

	resp, _ := http.Get(srv.URL + "/v1/trip")
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body["active"] != false {
		t.Errorf("empty store: body = %v", body)
	}

	store.UpsertJob(job.Job{ID: 5, Kind: job.KindShare, Status: job.StatusInbound, Origin: "A", Destination: "B", SyncState: job.SyncSynced})

	resp, _ = http.Get(srv.URL + "/v1/trip")
	body = nil
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body["active"] != true {
		t.Errorf("active trip: body = %v", body)
	}
}

func TestMarkAllReadRoute(t *testing.T) {
	srv, store := testServer(t)
	store.AddNotification(notification.Notification{ID: "n1", Unread: true})

	resp, err := http.Post(srv.URL+"/v1/notifications/read-all", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]int
	json.NewDecoder(resp.Body).Decode(&out)
	if out["updated"] != 1 {
		t.Errorf("updated = %d", out["updated"])
	}
	if store.Notifications()[0].Unread {
		t.Error("notification still unread")
	}
}

func TestSubscriptionRoutes(t *testing.T) {
	srv, _ := testServer(t)

	resp, _ := http.Get(srv.URL + "/v1/subscription")
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body["active"] != false {
		t.Errorf("no plan selected: body = %v", body)
	}

	resp, err := http.Post(srv.URL+"/v1/subscription", "application/json",
		strings.NewReader(`{"duration":"3m","price":9000}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("select plan: status = %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/v1/subscription", "application/json",
		strings.NewReader(`{"duration":"2w","price":9000}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bogus duration: status = %d, want 400", resp.StatusCode)
	}

	resp, _ = http.Get(srv.URL + "/v1/subscription")
	body = nil
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body["active"] != true {
		t.Errorf("after selection: body = %v", body)
	}
}

func TestStateRoute(t *testing.T) {
	srv, store := testServer(t)
	store.UpsertJob(job.Job{ID: 1, Kind: job.KindShare, Status: job.StatusScheduled, Origin: "A", Destination: "B", SyncState: job.SyncSynced})

	resp, err := http.Get(srv.URL + "/v1/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		DriverID string    `json:"driverId"`
		Jobs     []job.Job `json:"jobs"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.DriverID != "d-1" || len(body.Jobs) != 1 {
		t.Errorf("state = %+v", body)
	}
}
