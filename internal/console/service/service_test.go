package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"driver-console/internal/console/poll"
	"driver-console/internal/console/state"
	"driver-console/internal/domain/approval"
	"driver-console/internal/domain/billing"
	"driver-console/internal/domain/geo"
	"driver-console/internal/domain/job"
	"driver-console/internal/domain/notification"
	"driver-console/internal/domain/post"
	"driver-console/internal/domain/subscription"
	"driver-console/internal/domain/vehicle"
	"driver-console/internal/general/config"
	"driver-console/internal/general/contracts"
	"driver-console/internal/general/events"
	"driver-console/internal/general/gateway"
	"driver-console/internal/general/logger"
)

// ----- Fakes -----

type counterCall struct {
	id      string
	price   float64
	message string
}

type fakeGateway struct {
	mu sync.Mutex

	jobs          []job.Job
	approvals     []approval.Request
	sharePosts    []post.SharePost
	hirePosts     []post.HirePost
	transactions  []billing.Transaction
	notifications []notification.Notification
	vehicles      []vehicle.Vehicle

	updateErr      error
	updateCalls    []job.Status
	updateBlock    chan struct{} // when non-nil, UpdateRideStatus waits on it
	handoverErr    error
	approveErr     error
	approveResult  gateway.ApproveResult
	counterErr     error
	counterCalls   []counterCall
	sharePostErr   error
	sharePostReply post.SharePost
	hirePostErr    error
	hirePostReply  post.HirePost
	manualJobErr   error
	vehicleErr     error
}

func (f *fakeGateway) DriverPendingApprovals(ctx context.Context) ([]approval.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]approval.Request(nil), f.approvals...), nil
}

func (f *fakeGateway) ApproveRequest(ctx context.Context, id string, approved bool) (gateway.ApproveResult, error) {
	return f.approveResult, f.approveErr
}

func (f *fakeGateway) MakeDriverCounterOffer(ctx context.Context, id string, counterPrice float64, message string) error {
	f.mu.Lock()
	f.counterCalls = append(f.counterCalls, counterCall{id: id, price: counterPrice, message: message})
	f.mu.Unlock()
	return f.counterErr
}

func (f *fakeGateway) UpdateRideStatus(ctx context.Context, id int64, status job.Status) error {
	f.mu.Lock()
	block := f.updateBlock
	f.updateCalls = append(f.updateCalls, status)
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return f.updateErr
}

func (f *fakeGateway) ConfirmHandover(ctx context.Context, id int64) error {
	return f.handoverErr
}

func (f *fakeGateway) CreateManualJob(ctx context.Context, j job.Job) (job.Job, error) {
	if f.manualJobErr != nil {
		return job.Job{}, f.manualJobErr
	}
	j.ID = 777
	return j, nil
}

func (f *fakeGateway) ContractedJobs(ctx context.Context) ([]job.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]job.Job(nil), f.jobs...), nil
}

func (f *fakeGateway) AddDriverSharePost(ctx context.Context, p post.SharePost) (post.SharePost, error) {
	if f.sharePostErr != nil {
		return post.SharePost{}, f.sharePostErr
	}
	reply := f.sharePostReply
	if reply.ID == "" {
		reply = p
		reply.ID = "srv-1"
	}
	return reply, nil
}

func (f *fakeGateway) AddDriverHirePost(ctx context.Context, p post.HirePost) (post.HirePost, error) {
	if f.hirePostErr != nil {
		return post.HirePost{}, f.hirePostErr
	}
	reply := f.hirePostReply
	if reply.ID == "" {
		reply = p
		reply.ID = "srv-h1"
	}
	return reply, nil
}

func (f *fakeGateway) SharePosts(ctx context.Context) ([]post.SharePost, error) {
	return append([]post.SharePost(nil), f.sharePosts...), nil
}

func (f *fakeGateway) HirePosts(ctx context.Context) ([]post.HirePost, error) {
	return append([]post.HirePost(nil), f.hirePosts...), nil
}

func (f *fakeGateway) AddVehicle(ctx context.Context, v vehicle.Vehicle) (vehicle.Vehicle, error) {
	if f.vehicleErr != nil {
		return vehicle.Vehicle{}, f.vehicleErr
	}
	v.ID = "v-1"
	return v, nil
}

func (f *fakeGateway) Vehicles(ctx context.Context) ([]vehicle.Vehicle, error) {
	return append([]vehicle.Vehicle(nil), f.vehicles...), nil
}

func (f *fakeGateway) Transactions(ctx context.Context) ([]billing.Transaction, error) {
	return append([]billing.Transaction(nil), f.transactions...), nil
}

func (f *fakeGateway) Notifications(ctx context.Context) ([]notification.Notification, error) {
	return append([]notification.Notification(nil), f.notifications...), nil
}

type fakeGeocoder struct {
	err error
}

func (g *fakeGeocoder) Geocode(ctx context.Context, address string) (geo.Point, error) {
	if g.err != nil {
		return geo.Point{}, g.err
	}
	if address == "Astana" {
		return geo.Point{Lat: 51.1605, Lng: 71.4704}, nil
	}
	return geo.Point{Lat: 49.8047, Lng: 73.1094}, nil
}

type fakeChannel struct {
	mu        sync.Mutex
	handlers  map[string]events.Handler
	connected bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string]events.Handler)}
}

func (f *fakeChannel) Connect(ctx context.Context, userID, role string) error {
	f.connected = true
	return nil
}

func (f *fakeChannel) On(event string, h events.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = h
}

func (f *fakeChannel) Off(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, event)
}

func (f *fakeChannel) Disconnect() { f.connected = false }

func (f *fakeChannel) emit(event string, payload any) {
	f.mu.Lock()
	h := f.handlers[event]
	f.mu.Unlock()
	if h != nil {
		h(context.Background(), payload)
	}
}

func testController(t *testing.T, gw *fakeGateway) (*Controller, *state.Store, *fakeChannel) {
	t.Helper()

	log := logger.New("service-test")
	store := state.NewStore()
	ch := newFakeChannel()
	sched := poll.NewScheduler(log)
	t.Cleanup(sched.StopAll)

	cfg := &config.Config{}
	cfg.Polling.ApprovalsSeconds = 3
	cfg.Polling.JobsSeconds = 5
	cfg.Polling.PostsSeconds = 10
	cfg.Polling.TransactionsSeconds = 12
	cfg.Polling.NotificationsSeconds = 15
	cfg.Polling.AnalyticsSeconds = 20

	c := NewController(log, store, gw, &fakeGeocoder{}, ch, sched, "d-1", cfg)
	return c, store, ch
}

func contractsApproval(id, driverID string) contracts.ApprovalEvent {
	return contracts.ApprovalEvent{ID: id, DriverID: driverID, RelatedType: "share", ProposedPrice: 38000}
}

func contractsNotification(title, msg string) contracts.NotificationEvent {
	return contracts.NotificationEvent{Title: title, Message: msg}
}

// ----- Scenarios -----

func TestShareTripEndToEnd(t *testing.T) {
	gw := &fakeGateway{}
	c, store, _ := testController(t, gw)
	ctx := context.Background()

	store.UpsertJob(job.Job{ID: 1, Kind: job.KindShare, Status: job.StatusScheduled, Origin: "Astana", Destination: "Karaganda", SyncState: job.SyncSynced})

	out, err := c.HandleJobAction(ctx, 1)
	if err != nil || out.Status != job.StatusInbound {
		t.Fatalf("Scheduled -> %v (err %v), want Inbound", out.Status, err)
	}

	cur, ok := store.CurrentTrip()
	if !ok || cur.ID != 1 {
		t.Fatal("job not promoted to current trip")
	}
	detail, has := store.TripDetail()
	if !has || detail.JobID != 1 || detail.DistanceKM == 0 {
		t.Errorf("trip detail = %+v has=%v, want geocoded route with distance", detail, has)
	}

	out, err = c.HandleJobAction(ctx, 1)
	if err != nil || out.Status != job.StatusArrived {
		t.Fatalf("Inbound -> %v (err %v), want Arrived", out.Status, err)
	}

	persisted := len(gw.updateCalls)

	// guarded: waiting for the passenger to board
	for i := 0; i < 3; i++ {
		out, err = c.HandleJobAction(ctx, 1)
		if err != nil {
			t.Fatalf("guarded action errored: %v", err)
		}
		if out.Info == "" || out.Status != job.StatusArrived {
			t.Fatalf("guarded action: %+v, want informational no-op", out)
		}
	}
	if len(gw.updateCalls) != persisted {
		t.Error("guarded action must not hit the persistence path")
	}

	// passenger boards (arrives via poll snapshot in production)
	j, _ := store.JobByID(1)
	j.Status = job.StatusBoarded
	store.UpsertJob(j)

	if _, ok := store.CurrentTrip(); ok {
		t.Error("Boarded must not project to the trip view")
	}

	out, _ = c.HandleJobAction(ctx, 1)
	if out.Status != job.StatusInProgress {
		t.Fatalf("Boarded -> %v, want In Progress", out.Status)
	}
	out, _ = c.HandleJobAction(ctx, 1)
	if out.Status != job.StatusPaymentDue {
		t.Fatalf("In Progress -> %v, want Payment Due", out.Status)
	}

	// payment settles server-side
	gw.mu.Lock()
	gw.jobs = []job.Job{{ID: 1, Kind: job.KindShare, Status: job.StatusCompleted, Origin: "Astana", Destination: "Karaganda"}}
	gw.mu.Unlock()
	if err := c.refreshJobs(ctx); err != nil {
		t.Fatalf("refreshJobs: %v", err)
	}

	if _, ok := store.CurrentTrip(); ok {
		t.Error("completed job still projects to the trip view")
	}
	if _, has := store.TripDetail(); has {
		t.Error("trip detail not cleared after completion")
	}
}

func TestHireHandoverFailureLeavesJobUntouched(t *testing.T) {
	gw := &fakeGateway{handoverErr: errors.New("client not present")}
	c, store, _ := testController(t, gw)

	store.UpsertJob(job.Job{ID: 2, Kind: job.KindHire, Status: job.StatusScheduled, SyncState: job.SyncSynced})

	_, err := c.HandleJobAction(context.Background(), 2)
	if err == nil {
		t.Fatal("handover failure must surface as an error")
	}

	j, ok := store.JobByID(2)
	if !ok || j.Status != job.StatusScheduled {
		t.Errorf("job = %+v ok=%v, want untouched Scheduled entry", j, ok)
	}
}

func TestHireHandoverSuccessRemovesJob(t *testing.T) {
	gw := &fakeGateway{}
	c, store, _ := testController(t, gw)

	store.UpsertJob(job.Job{ID: 2, Kind: job.KindHire, Status: job.StatusScheduled, SyncState: job.SyncSynced})

	out, err := c.HandleJobAction(context.Background(), 2)
	if err != nil || !out.Removed {
		t.Fatalf("outcome = %+v err=%v, want removal", out, err)
	}
	if _, ok := store.JobByID(2); ok {
		t.Error("handed-over job still in active list")
	}
}

func TestHireGuardedStatesAreInformational(t *testing.T) {
	gw := &fakeGateway{}
	c, store, _ := testController(t, gw)
	ctx := context.Background()

	for _, status := range []job.Status{job.StatusHandoverPending, job.StatusActive} {
		store.UpsertJob(job.Job{ID: 3, Kind: job.KindHire, Status: status, SyncState: job.SyncSynced})

		out, err := c.HandleJobAction(ctx, 3)
		if err != nil || out.Info == "" {
			t.Errorf("status %v: outcome %+v err %v, want informational no-op", status, out, err)
		}
	}
	if len(gw.updateCalls) != 0 {
		t.Error("guarded hire states must not persist anything")
	}
}

func TestFailedPersistMarksSyncFailed(t *testing.T) {
	gw := &fakeGateway{updateErr: errors.New("backend down")}
	c, store, _ := testController(t, gw)

	store.UpsertJob(job.Job{ID: 1, Kind: job.KindShare, Status: job.StatusBoarded, Origin: "Astana", Destination: "Karaganda", SyncState: job.SyncSynced})

	out, err := c.HandleJobAction(context.Background(), 1)
	if err != nil {
		t.Fatalf("optimistic action must not bubble persistence errors: %v", err)
	}
	if out.Status != job.StatusInProgress || out.Sync != job.SyncFailed {
		t.Errorf("outcome = %+v, want advanced status marked SyncFailed", out)
	}

	j, _ := store.JobByID(1)
	if j.Status != job.StatusInProgress || j.SyncState != job.SyncFailed {
		t.Errorf("stored job = %+v", j)
	}
}

func TestFailedStatusWriteReplayedOnPoll(t *testing.T) {
	gw := &fakeGateway{updateErr: errors.New("backend down")}
	c, store, _ := testController(t, gw)
	ctx := context.Background()

	store.UpsertJob(job.Job{ID: 1, Kind: job.KindShare, Status: job.StatusBoarded, Origin: "Astana", Destination: "Karaganda", SyncState: job.SyncSynced})
	if out, _ := c.HandleJobAction(ctx, 1); out.Sync != job.SyncFailed {
		t.Fatalf("outcome = %+v, want SyncFailed", out)
	}

	// backend recovers; the next poll tick replays the held status
	gw.updateErr = nil
	gw.mu.Lock()
	gw.jobs = []job.Job{{ID: 1, Kind: job.KindShare, Status: job.StatusInProgress, Origin: "Astana", Destination: "Karaganda"}}
	gw.mu.Unlock()

	if err := c.refreshJobs(ctx); err != nil {
		t.Fatalf("refreshJobs: %v", err)
	}

	gw.mu.Lock()
	calls := append([]job.Status(nil), gw.updateCalls...)
	gw.mu.Unlock()
	if len(calls) != 2 || calls[1] != job.StatusInProgress {
		t.Errorf("update calls = %v, want the held In Progress replayed", calls)
	}

	j, _ := store.JobByID(1)
	if j.Status != job.StatusInProgress || j.SyncState != job.SyncSynced {
		t.Errorf("job = %+v, want resynced", j)
	}
}

func TestServerCompletionLandsDespiteFailedWrite(t *testing.T) {
	gw := &fakeGateway{updateErr: errors.New("backend down")}
	c, store, _ := testController(t, gw)
	ctx := context.Background()

	store.UpsertJob(job.Job{ID: 1, Kind: job.KindShare, Status: job.StatusInProgress, Origin: "Astana", Destination: "Karaganda", SyncState: job.SyncSynced})
	if out, _ := c.HandleJobAction(ctx, 1); out.Status != job.StatusPaymentDue || out.Sync != job.SyncFailed {
		t.Fatalf("outcome = %+v, want Payment Due held locally", out)
	}

	// the rider pays and the ride completes server-side while the backend
	// keeps rejecting our status write
	gw.mu.Lock()
	gw.jobs = []job.Job{{ID: 1, Kind: job.KindShare, Status: job.StatusCompleted, Origin: "Astana", Destination: "Karaganda"}}
	gw.mu.Unlock()

	for i := 0; i < 5; i++ {
		if err := c.refreshJobs(ctx); err != nil {
			t.Fatalf("refreshJobs: %v", err)
		}
	}

	j, _ := store.JobByID(1)
	if j.Status != job.StatusCompleted || j.SyncState != job.SyncSynced {
		t.Errorf("job = %+v, want the server completion applied", j)
	}
	if _, ok := store.CurrentTrip(); ok {
		t.Error("completed job still projects to the trip view")
	}
}

func TestManualJobFallbackAndResync(t *testing.T) {
	gw := &fakeGateway{manualJobErr: errors.New("backend down")}
	c, store, _ := testController(t, gw)
	ctx := context.Background()

	created, err := c.CreateManualJob(ctx, job.Job{Kind: job.KindShare, Origin: "Astana", Destination: "Karaganda", Payout: 5000})
	if err != nil {
		t.Fatalf("fallback path must not error: %v", err)
	}
	if created.ID == 0 || created.SyncState != job.SyncPending {
		t.Errorf("created = %+v, want locally-generated pending record", created)
	}

	// backend recovers; next poll tick replays the pending record
	gw.manualJobErr = nil
	c.retryUnsyncedJobs(ctx)

	jobs := store.Jobs()
	if len(jobs) != 1 || jobs[0].ID != 777 || jobs[0].SyncState != job.SyncSynced {
		t.Errorf("jobs after resync = %+v", jobs)
	}
}

func TestManualJobValidation(t *testing.T) {
	gw := &fakeGateway{}
	c, _, _ := testController(t, gw)
	ctx := context.Background()

	if _, err := c.CreateManualJob(ctx, job.Job{Kind: "bus", Origin: "A", Destination: "B"}); !errors.Is(err, job.ErrInvalidKind) {
		t.Errorf("bad kind: err = %v", err)
	}
	if _, err := c.CreateManualJob(ctx, job.Job{Origin: " ", Destination: "B"}); !errors.Is(err, job.ErrMissingRoute) {
		t.Errorf("missing route: err = %v", err)
	}
	if _, err := c.CreateManualJob(ctx, job.Job{Origin: "A", Destination: "B", Payout: -1}); !errors.Is(err, job.ErrNegativePayout) {
		t.Errorf("negative payout: err = %v", err)
	}

	created, err := c.CreateManualJob(ctx, job.Job{Kind: "Hire", Origin: "A", Destination: "B", Payout: 5000})
	if err != nil || created.Kind != job.KindHire || created.Status != job.StatusScheduled {
		t.Errorf("created = %+v err=%v, want normalized hire job", created, err)
	}
}

func TestSnapshotDiscardsMalformedRows(t *testing.T) {
	gw := &fakeGateway{}
	c, store, _ := testController(t, gw)

	gw.mu.Lock()
	gw.jobs = []job.Job{
		{ID: 1, Kind: job.KindShare, Status: "scheduled", Origin: "Astana", Destination: "Karaganda"},
		{ID: 0, Kind: job.KindShare, Status: job.StatusScheduled, Origin: "A", Destination: "B"},
		{ID: 3, Kind: "bus", Status: job.StatusScheduled, Origin: "A", Destination: "B"},
		{ID: 4, Kind: job.KindShare, Status: "Teleporting", Origin: "A", Destination: "B"},
		{ID: 5, Kind: job.KindShare, Status: job.StatusHandoverPending, Origin: "A", Destination: "B"},
	}
	gw.mu.Unlock()

	if err := c.refreshJobs(context.Background()); err != nil {
		t.Fatalf("refreshJobs: %v", err)
	}

	jobs := store.Jobs()
	if len(jobs) != 1 || jobs[0].ID != 1 || jobs[0].Status != job.StatusScheduled {
		t.Errorf("jobs = %+v, want only the normalized valid row", jobs)
	}
}

func TestDoubleSubmitGuard(t *testing.T) {
	block := make(chan struct{})
	gw := &fakeGateway{updateBlock: block}
	c, store, _ := testController(t, gw)

	store.UpsertJob(job.Job{ID: 1, Kind: job.KindShare, Status: job.StatusScheduled, Origin: "A", Destination: "B", SyncState: job.SyncSynced})

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.HandleJobAction(context.Background(), 1)
	}()

	// wait for the first action to reach the gateway
	deadline := time.After(2 * time.Second)
	for {
		gw.mu.Lock()
		n := len(gw.updateCalls)
		gw.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first action never reached the gateway")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := c.HandleJobAction(context.Background(), 1); !errors.Is(err, ErrActionInFlight) {
		t.Errorf("second submit: got %v, want ErrActionInFlight", err)
	}

	close(block)
	<-done
}

func TestApprovalRemovedExactlyOnceEvenOnFailure(t *testing.T) {
	gw := &fakeGateway{approveErr: errors.New("request expired")}
	c, store, _ := testController(t, gw)

	store.AddApproval(approval.Request{ID: "R9", DriverID: "d-1", RelatedType: approval.RelatedShare, ProposedPrice: 38000})

	if err := c.Approve(context.Background(), "R9"); err == nil {
		t.Fatal("backend failure must surface")
	}
	if got := store.Approvals(); len(got) != 0 {
		t.Errorf("approvals = %+v, want optimistic removal despite failure", got)
	}
	if len(store.Jobs()) != 0 {
		t.Error("failed approval must not create a job")
	}
}

func TestApproveCreatesScheduledJobWithPriceFallback(t *testing.T) {
	gw := &fakeGateway{approveResult: gateway.ApproveResult{JobID: 41}}
	c, store, _ := testController(t, gw)

	store.AddApproval(approval.Request{
		ID: "R4", DriverID: "d-1", RelatedType: approval.RelatedShare,
		ProposerName: "Aigerim", Origin: "Astana", Destination: "Karaganda", ProposedPrice: 38000,
	})

	if err := c.Approve(context.Background(), "R4"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	j, ok := store.JobByID(41)
	if !ok {
		t.Fatal("approved request did not become a job")
	}
	if j.Status != job.StatusScheduled || j.Payout != 38000 || j.Negotiation != job.NegotiationApproved {
		t.Errorf("job = %+v", j)
	}
}

func TestCounterOfferExactPayloadAndRemoval(t *testing.T) {
	gw := &fakeGateway{}
	c, store, _ := testController(t, gw)

	store.AddApproval(approval.Request{ID: "R9", DriverID: "d-1", ProposedPrice: 38000})

	if err := c.CounterOffer(context.Background(), "R9", 40000, "final offer"); err != nil {
		t.Fatalf("CounterOffer: %v", err)
	}

	if len(gw.counterCalls) != 1 {
		t.Fatalf("counter calls = %d", len(gw.counterCalls))
	}
	call := gw.counterCalls[0]
	if call.id != "R9" || call.price != 40000 || call.message != "final offer" {
		t.Errorf("call = %+v", call)
	}
	if got := store.Approvals(); len(got) != 0 {
		t.Errorf("approvals = %+v, want removed after successful counter", got)
	}
}

func TestCounterOfferFailureKeepsRequestPending(t *testing.T) {
	gw := &fakeGateway{counterErr: errors.New("too low")}
	c, store, _ := testController(t, gw)

	store.AddApproval(approval.Request{ID: "R9", DriverID: "d-1"})

	if err := c.CounterOffer(context.Background(), "R9", 100, "lowball"); err == nil {
		t.Fatal("expected backend error")
	}
	if got := store.Approvals(); len(got) != 1 {
		t.Errorf("approvals = %+v, want request still pending", got)
	}
}

func TestListingFallbackAndResync(t *testing.T) {
	gw := &fakeGateway{sharePostErr: errors.New("backend down")}
	c, store, _ := testController(t, gw)
	ctx := context.Background()

	created, err := c.CreateSharePost(ctx, post.SharePost{Origin: "Astana", Destination: "Karaganda", Price: 2000, Seats: 3})
	if err != nil {
		t.Fatalf("fallback path must not error: %v", err)
	}
	if created.ID == "" || created.SyncState != post.SyncPending {
		t.Errorf("created = %+v, want locally-generated pending record", created)
	}

	posts := store.SharePosts()
	if len(posts) != 1 || posts[0].SyncState != post.SyncPending {
		t.Fatalf("store posts = %+v", posts)
	}

	// backend recovers; next poll tick replays the pending record
	gw.sharePostErr = nil
	gw.sharePostReply = post.SharePost{ID: "srv-7", Origin: "Astana", Destination: "Karaganda", Price: 2000, Seats: 3}
	c.retryPendingPosts(ctx)

	posts = store.SharePosts()
	if len(posts) != 1 || posts[0].ID != "srv-7" || posts[0].SyncState != post.SyncSynced {
		t.Errorf("posts after resync = %+v", posts)
	}
}

func TestPushedApprovalFilteredByDriverIdentity(t *testing.T) {
	gw := &fakeGateway{}
	c, store, ch := testController(t, gw)
	c.bindEvents()

	ch.emit("new_ride_request", contractsApproval("R1", "d-1"))
	ch.emit("new_ride_request", contractsApproval("R2", "other-driver"))

	got := store.Approvals()
	if len(got) != 1 || got[0].ID != "R1" {
		t.Errorf("approvals = %+v, want only the session driver's request", got)
	}
}

func TestSubscriptionPaymentSimulation(t *testing.T) {
	gw := &fakeGateway{}
	c, store, _ := testController(t, gw)
	c.paymentDelay = 10 * time.Millisecond

	cur, err := c.SelectSubscription(context.Background(), subscription.Plan{Duration: subscription.ThreeMonths, Price: 9000})
	if err != nil {
		t.Fatalf("SelectSubscription: %v", err)
	}
	if cur.IsPaid {
		t.Error("window must open unpaid")
	}

	deadline := time.After(2 * time.Second)
	for {
		if got, ok := store.Subscription(); ok && got.IsPaid {
			break
		}
		select {
		case <-deadline:
			t.Fatal("simulated payment never settled")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	found := false
	for _, n := range store.Notifications() {
		if n.Title == "Subscription active" && n.Unread {
			found = true
		}
	}
	if !found {
		t.Error("settlement notification missing")
	}
}

func TestPushedNotificationIsAppendedUnread(t *testing.T) {
	gw := &fakeGateway{}
	c, store, ch := testController(t, gw)
	c.bindEvents()

	ch.emit("notification", contractsNotification("Trip paid", "38 000 KZT received"))

	got := store.Notifications()
	if len(got) != 1 || !got[0].Unread || got[0].Title != "Trip paid" {
		t.Errorf("notifications = %+v", got)
	}
}
