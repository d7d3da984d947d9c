package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"driver-console/internal/console/state"
	"driver-console/internal/domain/approval"
	"driver-console/internal/domain/geo"
	"driver-console/internal/domain/job"
	"driver-console/internal/domain/notification"
	"driver-console/internal/domain/post"
	"driver-console/internal/domain/subscription"
	"driver-console/internal/domain/vehicle"
	"driver-console/internal/general/metrics"
)

// ActionOutcome reports what one lifecycle action did.
type ActionOutcome struct {
	JobID   int64         `json:"jobId"`
	Status  job.Status    `json:"status,omitempty"`
	Sync    job.SyncState `json:"syncState,omitempty"`
	Info    string        `json:"info,omitempty"`    // set for guarded no-ops
	Removed bool          `json:"removed,omitempty"` // hire handover completed
}

// HandleJobAction advances a job one step through its lifecycle. The
// local cache is updated optimistically; persistence is best effort and a
// failed write marks the job SyncFailed instead of rolling it back.
func (c *Controller) HandleJobAction(ctx context.Context, jobID int64) (ActionOutcome, error) {
	key := jobKey(jobID)
	if !c.begin(key) {
		return ActionOutcome{}, ErrActionInFlight
	}
	defer c.end(key)

	j, ok := c.store.JobByID(jobID)
	if !ok {
		return ActionOutcome{}, ErrJobNotFound
	}

	ctx = c.log.WithJobID(ctx, strconv.FormatInt(j.ID, 10))

	// hire jobs leave Scheduled through the handover side channel, not
	// the status ladder
	if j.Kind == job.KindHire && j.Status == job.StatusScheduled {
		return c.confirmHandover(ctx, j)
	}

	next, err := job.Next(j.Kind, j.Status)
	switch {
	case errors.Is(err, job.ErrAwaitingCounterparty):
		// guarded state: informational, never persisted
		metrics.JobActions.WithLabelValues(j.Kind.String(), "guarded").Inc()
		return ActionOutcome{JobID: j.ID, Status: j.Status, Info: job.WaitMessage(j.Kind, j.Status)}, nil
	case err != nil:
		metrics.JobActions.WithLabelValues(j.Kind.String(), "rejected").Inc()
		return ActionOutcome{}, err
	}

	// optimistic apply
	j.Status = next
	j.SyncState = job.SyncPending
	j.UpdatedAt = time.Now().UTC()
	c.store.UpsertJob(j)

	if next == job.StatusInbound || (j.Kind == job.KindShare && next == job.StatusInProgress) {
		c.projectTrip(ctx, j)
	}

	// best-effort persist; the optimistic state stands either way
	if err := c.gw.UpdateRideStatus(ctx, j.ID, next); err != nil {
		c.store.SetJobSync(j.ID, job.SyncFailed)
		metrics.JobActions.WithLabelValues(j.Kind.String(), "sync_failed").Inc()
		c.log.Error(ctx, "job_status_persist_failed", "Status persisted locally only", err, map[string]any{
			"job_id": j.ID,
			"status": next.String(),
		})
		return ActionOutcome{JobID: j.ID, Status: next, Sync: job.SyncFailed}, nil
	}

	c.store.SetJobSync(j.ID, job.SyncSynced)
	metrics.JobActions.WithLabelValues(j.Kind.String(), "ok").Inc()
	c.log.Info(ctx, "job_action_applied", "Job advanced", map[string]any{
		"job_id": j.ID,
		"status": next.String(),
	})
	return ActionOutcome{JobID: j.ID, Status: next, Sync: job.SyncSynced}, nil
}

// confirmHandover runs the hire-side handover exchange. Success removes
// the job from the active list; failure leaves it untouched.
func (c *Controller) confirmHandover(ctx context.Context, j job.Job) (ActionOutcome, error) {
	if err := c.gw.ConfirmHandover(ctx, j.ID); err != nil {
		metrics.JobActions.WithLabelValues(j.Kind.String(), "handover_failed").Inc()
		c.log.Error(ctx, "handover_confirm_failed", "Handover not confirmed; job unchanged", err, map[string]any{"job_id": j.ID})
		return ActionOutcome{}, err
	}

	c.store.RemoveJob(j.ID)
	metrics.JobActions.WithLabelValues(j.Kind.String(), "handover_ok").Inc()
	c.log.Info(ctx, "handover_confirmed", "Hire job handed over and closed out", map[string]any{"job_id": j.ID})
	return ActionOutcome{JobID: j.ID, Removed: true}, nil
}

// projectTrip geocodes the route and publishes trip detail. Soft failure:
// the projection proceeds without distance data.
func (c *Controller) projectTrip(ctx context.Context, j job.Job) {
	detail := state.TripDetail{JobID: j.ID}

	if pt, err := c.geo.Geocode(ctx, j.Origin); err == nil {
		p := pt
		detail.OriginPoint = &p
	} else {
		c.log.Debug(ctx, "trip_geocode_skipped", "Origin not geocoded", map[string]any{"address": j.Origin, "cause": err.Error()})
	}

	if pt, err := c.geo.Geocode(ctx, j.Destination); err == nil {
		p := pt
		detail.DestinationPoint = &p
	} else {
		c.log.Debug(ctx, "trip_geocode_skipped", "Destination not geocoded", map[string]any{"address": j.Destination, "cause": err.Error()})
	}

	if detail.OriginPoint != nil && detail.DestinationPoint != nil {
		detail.DistanceKM = geo.TripDistanceKM(*detail.OriginPoint, *detail.DestinationPoint)
	}

	c.store.SetTripDetail(detail)
}

// ----- Approvals -----

// Approve accepts a pending request. The entry leaves pendingApprovals
// exactly once regardless of the backend verdict; on success the settled
// job enters the active list as Scheduled.
func (c *Controller) Approve(ctx context.Context, id string) error {
	key := approvalKey(id)
	if !c.begin(key) {
		return ErrActionInFlight
	}
	defer c.end(key)

	req, known := c.findApproval(id)

	result, err := c.gw.ApproveRequest(ctx, id, true)

	c.store.RemoveApproval(id)

	if err != nil {
		c.log.Error(ctx, "approval_accept_failed", "Approve rejected by backend", err, map[string]any{"request_id": id})
		return err
	}

	if known {
		jobID := result.JobID
		if jobID == 0 {
			jobID = req.JobID
		}
		payout := result.AcceptedPrice
		if payout == 0 {
			payout = req.ProposedPrice
		}
		kind := job.KindShare
		if req.RelatedType == approval.RelatedHire {
			kind = job.KindHire
		}
		if jobID != 0 {
			c.store.UpsertJob(job.Job{
				ID:          jobID,
				Title:       req.ProposerName,
				Origin:      req.Origin,
				Destination: req.Destination,
				Payout:      payout,
				Kind:        kind,
				Status:      job.StatusScheduled,
				ClientName:  req.ProposerName,
				ClientID:    req.ProposerID,
				Negotiation: job.NegotiationApproved,
				SyncState:   job.SyncSynced,
			})
		}
	}

	c.log.Info(ctx, "approval_accepted", "Request approved", map[string]any{"request_id": id})
	return nil
}

// Reject declines a pending request; removal happens exactly once
// regardless of the backend verdict.
func (c *Controller) Reject(ctx context.Context, id string) error {
	key := approvalKey(id)
	if !c.begin(key) {
		return ErrActionInFlight
	}
	defer c.end(key)

	_, err := c.gw.ApproveRequest(ctx, id, false)

	c.store.RemoveApproval(id)

	if err != nil {
		c.log.Error(ctx, "approval_reject_failed", "Reject rejected by backend", err, map[string]any{"request_id": id})
		return err
	}

	c.log.Info(ctx, "approval_rejected", "Request declined", map[string]any{"request_id": id})
	return nil
}

// CounterOffer answers a pending request with a new price. Unlike
// approve/reject, the entry stays pending unless the backend accepts the
// counter.
func (c *Controller) CounterOffer(ctx context.Context, id string, amount float64, message string) error {
	key := approvalKey(id)
	if !c.begin(key) {
		return ErrActionInFlight
	}
	defer c.end(key)

	if err := c.gw.MakeDriverCounterOffer(ctx, id, amount, message); err != nil {
		c.log.Error(ctx, "counter_offer_failed", "Counter-offer not delivered", err, map[string]any{"request_id": id})
		return err
	}

	c.store.RemoveApproval(id)
	c.log.Info(ctx, "counter_offer_sent", "Counter-offer delivered", map[string]any{
		"request_id": id,
		"amount":     amount,
	})
	return nil
}

func (c *Controller) findApproval(id string) (approval.Request, bool) {
	for _, r := range c.store.Approvals() {
		if r.ID == id {
			return r, true
		}
	}
	return approval.Request{}, false
}

// ----- Listings -----

// CreateSharePost publishes a rideshare listing. A failed remote write
// falls back to a locally-generated record marked PendingSync; the post
// poll retries it until the backend accepts.
func (c *Controller) CreateSharePost(ctx context.Context, p post.SharePost) (post.SharePost, error) {
	p.ID = "" // backend assigns ids
	if err := p.Validate(); err != nil {
		return post.SharePost{}, err
	}

	confirmed, err := c.gw.AddDriverSharePost(ctx, p)
	if err == nil {
		confirmed.SyncState = post.SyncSynced
		c.store.UpsertSharePost(confirmed)
		return confirmed, nil
	}

	p.ID = uuid.NewString()
	p.SyncState = post.SyncPending
	p.UpdatedAt = time.Now().UTC()
	c.store.UpsertSharePost(p)
	c.log.Error(ctx, "share_post_persist_failed", "Listing stored locally pending retry", err, map[string]any{"local_id": p.ID})
	return p, nil
}

// CreateHirePost publishes a for-hire listing with the same fallback.
func (c *Controller) CreateHirePost(ctx context.Context, p post.HirePost) (post.HirePost, error) {
	p.ID = ""
	if err := p.Validate(); err != nil {
		return post.HirePost{}, err
	}

	confirmed, err := c.gw.AddDriverHirePost(ctx, p)
	if err == nil {
		confirmed.SyncState = post.SyncSynced
		c.store.UpsertHirePost(confirmed)
		return confirmed, nil
	}

	p.ID = uuid.NewString()
	p.SyncState = post.SyncPending
	p.UpdatedAt = time.Now().UTC()
	c.store.UpsertHirePost(p)
	c.log.Error(ctx, "hire_post_persist_failed", "Listing stored locally pending retry", err, map[string]any{"local_id": p.ID})
	return p, nil
}

// CreateManualJob books a job the driver arranged off-platform. A failed
// remote write falls back to a locally-generated record marked
// PendingSync; the jobs poll retries it until the backend accepts.
func (c *Controller) CreateManualJob(ctx context.Context, j job.Job) (job.Job, error) {
	if j.Kind == "" {
		j.Kind = job.KindShare
	} else {
		kind, err := job.ParseKind(string(j.Kind))
		if err != nil {
			return job.Job{}, err
		}
		j.Kind = kind
	}
	j.Status = job.StatusScheduled

	if strings.TrimSpace(j.Origin) == "" || strings.TrimSpace(j.Destination) == "" {
		return job.Job{}, job.ErrMissingRoute
	}
	if j.Payout < 0 {
		return job.Job{}, job.ErrNegativePayout
	}

	confirmed, err := c.gw.CreateManualJob(ctx, j)
	if err == nil {
		confirmed.SyncState = job.SyncSynced
		c.store.UpsertJob(confirmed)
		return confirmed, nil
	}

	j.ID = time.Now().UnixMilli()
	j.SyncState = job.SyncPending
	j.UpdatedAt = time.Now().UTC()
	c.store.UpsertJob(j)
	c.log.Error(ctx, "manual_job_persist_failed", "Job stored locally pending retry", err, map[string]any{"local_id": j.ID})
	return j, nil
}

// AddVehicle registers a vehicle with the fleet. No local fallback here;
// a phantom vehicle would be unusable anyway.
func (c *Controller) AddVehicle(ctx context.Context, v vehicle.Vehicle) (vehicle.Vehicle, error) {
	v.DriverID = c.driverID
	if err := v.Validate(); err != nil {
		return vehicle.Vehicle{}, err
	}

	confirmed, err := c.gw.AddVehicle(ctx, v)
	if err != nil {
		c.log.Error(ctx, "vehicle_add_failed", "Vehicle not registered", err, map[string]any{"plate": v.Plate})
		return vehicle.Vehicle{}, err
	}

	c.store.AddVehicle(confirmed)
	return confirmed, nil
}

// SelectSubscription opens a plan window starting now. There is no
// payment backend in this slice; settlement is simulated on a timer and
// lands as a notification.
func (c *Controller) SelectSubscription(ctx context.Context, plan subscription.Plan) (subscription.Current, error) {
	cur, err := subscription.NewCurrent(plan, time.Now())
	if err != nil {
		return subscription.Current{}, err
	}
	c.store.SetSubscription(cur)

	time.AfterFunc(c.paymentDelay, func() {
		if !c.store.MarkSubscriptionPaid() {
			return
		}
		c.store.AddNotification(notification.Notification{
			ID:      "sub-" + string(plan.Duration),
			Title:   "Subscription active",
			Message: "Your subscription is active, " + plan.Duration.Billing(),
			Time:    time.Now().UTC().Format(time.RFC3339),
			Unread:  true,
		})
	})

	c.log.Info(ctx, "subscription_selected", "Plan window opened", map[string]any{
		"duration": plan.Duration,
		"price":    plan.Price,
	})
	return cur, nil
}

// MarkAllNotificationsRead clears the unread flags. Local-only bulk
// mutation; the backend keeps no read state for the console.
func (c *Controller) MarkAllNotificationsRead(ctx context.Context) int {
	changed := c.store.MarkAllRead()
	if changed > 0 {
		c.log.Debug(ctx, "notifications_marked_read", "Cleared unread flags", map[string]any{"count": changed})
	}
	return changed
}
