// Package service hosts the console controller: the job lifecycle state
// machine plus the wiring that keeps the local cache fed from polls and
// pushed events.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"driver-console/internal/console/poll"
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

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrActionInFlight = errors.New("an action for this entity is already in flight")
)

// Gateway is the backend surface the controller consumes. *gateway.Client
// satisfies it; tests substitute fakes.
type Gateway interface {
	DriverPendingApprovals(ctx context.Context) ([]approval.Request, error)
	ApproveRequest(ctx context.Context, id string, approved bool) (gateway.ApproveResult, error)
	MakeDriverCounterOffer(ctx context.Context, id string, counterPrice float64, message string) error
	UpdateRideStatus(ctx context.Context, id int64, status job.Status) error
	ConfirmHandover(ctx context.Context, id int64) error
	CreateManualJob(ctx context.Context, j job.Job) (job.Job, error)
	ContractedJobs(ctx context.Context) ([]job.Job, error)
	AddDriverSharePost(ctx context.Context, p post.SharePost) (post.SharePost, error)
	AddDriverHirePost(ctx context.Context, p post.HirePost) (post.HirePost, error)
	SharePosts(ctx context.Context) ([]post.SharePost, error)
	HirePosts(ctx context.Context) ([]post.HirePost, error)
	AddVehicle(ctx context.Context, v vehicle.Vehicle) (vehicle.Vehicle, error)
	Vehicles(ctx context.Context) ([]vehicle.Vehicle, error)
	Transactions(ctx context.Context) ([]billing.Transaction, error)
	Notifications(ctx context.Context) ([]notification.Notification, error)
}

// Geocoder resolves addresses for the trip projection. Failures are soft.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (geo.Point, error)
}

type Controller struct {
	log      *logger.Logger
	store    *state.Store
	gw       Gateway
	geo      Geocoder
	channel  events.Channel
	sched    *poll.Scheduler
	driverID string
	polling  config.Config // only Polling is read

	// simulated payment settlement lag; no payment backend in this slice
	paymentDelay time.Duration

	inflightMu sync.Mutex
	inflight   map[string]struct{}

	stopOnce sync.Once
	started  bool
}

func NewController(
	log *logger.Logger,
	store *state.Store,
	gw Gateway,
	geocoder Geocoder,
	channel events.Channel,
	sched *poll.Scheduler,
	driverID string,
	cfg *config.Config,
) *Controller {
	return &Controller{
		log:          log,
		store:        store,
		gw:           gw,
		geo:          geocoder,
		channel:      channel,
		sched:        sched,
		driverID:     driverID,
		polling:      *cfg,
		paymentDelay: 3 * time.Second,
		inflight:     make(map[string]struct{}),
	}
}

// Start performs the initial fetches, binds the event handlers, connects
// the push channel, and arms the polling keys. Initial fetch failures are
// soft; polling will converge.
func (c *Controller) Start(ctx context.Context) error {
	if c.started {
		return errors.New("controller already started")
	}
	c.started = true

	for name, refresh := range c.refreshers() {
		if err := refresh(ctx); err != nil {
			c.log.Error(ctx, "initial_fetch_failed", "Initial fetch failed; polling will retry", err, map[string]any{"resource": name})
		}
	}

	c.bindEvents()
	if err := c.channel.Connect(ctx, c.driverID, "DRIVER"); err != nil {
		// push channel is an accelerator, not a dependency
		c.log.Error(ctx, "event_channel_connect_failed", "Event channel unavailable; relying on polling", err, nil)
	}

	p := c.polling.Polling
	c.sched.Start(ctx, "approvals", time.Duration(p.ApprovalsSeconds)*time.Second, c.refreshApprovals)
	c.sched.Start(ctx, "jobs", time.Duration(p.JobsSeconds)*time.Second, c.refreshJobs)
	c.sched.Start(ctx, "posts", time.Duration(p.PostsSeconds)*time.Second, c.refreshPosts)
	c.sched.Start(ctx, "transactions", time.Duration(p.TransactionsSeconds)*time.Second, c.refreshTransactions)
	c.sched.Start(ctx, "notifications", time.Duration(p.NotificationsSeconds)*time.Second, c.refreshNotifications)
	c.sched.Start(ctx, "analytics", time.Duration(p.AnalyticsSeconds)*time.Second, c.refreshFleet)

	c.log.Info(ctx, "controller_started", "Console controller started", map[string]any{"driver_id": c.driverID})
	return nil
}

// Stop tears down timers and the push channel. Safe to call repeatedly.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.sched.StopAll()
		c.channel.Disconnect()
	})
}

// Store exposes the cache to the HTTP layer.
func (c *Controller) Store() *state.Store {
	return c.store
}

// DriverID returns the identity the controller acts for.
func (c *Controller) DriverID() string {
	return c.driverID
}

// ----- In-flight guards -----

// begin claims the per-entity action slot. Callers must release via end.
func (c *Controller) begin(key string) bool {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()

	if _, busy := c.inflight[key]; busy {
		return false
	}
	c.inflight[key] = struct{}{}
	return true
}

func (c *Controller) end(key string) {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()
	delete(c.inflight, key)
}

func jobKey(id int64) string       { return fmt.Sprintf("job:%d", id) }
func approvalKey(id string) string { return "approval:" + id }
