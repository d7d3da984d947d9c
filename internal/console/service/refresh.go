package service

import (
	"context"

	"driver-console/internal/domain/approval"
	"driver-console/internal/domain/job"
	"driver-console/internal/domain/notification"
	"driver-console/internal/domain/post"
	"driver-console/internal/domain/vehicle"
	"driver-console/internal/general/contracts"
	"driver-console/internal/general/metrics"
)

// refreshers lists every poll thunk by resource name, for the initial
// fetch pass.
func (c *Controller) refreshers() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"approvals":     c.refreshApprovals,
		"jobs":          c.refreshJobs,
		"posts":         c.refreshPosts,
		"transactions":  c.refreshTransactions,
		"notifications": c.refreshNotifications,
		"fleet":         c.refreshFleet,
	}
}

func (c *Controller) refreshApprovals(ctx context.Context) error {
	before := c.store.Revision()
	list, err := c.gw.DriverPendingApprovals(ctx)
	if err != nil {
		return err
	}
	c.store.ReplaceApprovals(before, list)
	return nil
}

// refreshJobs replays unsynced local writes, then pulls the
// contracted-job snapshot and keeps the trip projection in step with it.
func (c *Controller) refreshJobs(ctx context.Context) error {
	c.retryUnsyncedJobs(ctx)

	before := c.store.Revision()
	list, err := c.gw.ContractedJobs(ctx)
	if err != nil {
		return err
	}
	c.store.ReplaceJobs(before, c.sanitizeJobs(ctx, list))

	cur, ok := c.store.CurrentTrip()
	if !ok {
		c.store.ClearTripDetail()
		return nil
	}
	if detail, has := c.store.TripDetail(); !has || detail.JobID != cur.ID {
		c.projectTrip(ctx, cur)
	}
	return nil
}

// retryUnsyncedJobs replays local job writes the backend has not
// confirmed: pending creates go back through CreateManualJob, failed
// status writes through UpdateRideStatus. Jobs with a driver action in
// flight are skipped; still-failing entries wait for the next tick.
func (c *Controller) retryUnsyncedJobs(ctx context.Context) {
	for _, j := range c.store.Jobs() {
		if j.SyncState == job.SyncSynced {
			continue
		}
		key := jobKey(j.ID)
		if !c.begin(key) {
			continue // a driver action owns this job right now
		}

		switch j.SyncState {
		case job.SyncPending:
			localID := j.ID
			retry := j
			retry.ID = 0
			retry.SyncState = ""
			confirmed, err := c.gw.CreateManualJob(ctx, retry)
			if err == nil {
				c.store.ResolveJob(localID, confirmed)
				c.log.Info(ctx, "manual_job_resynced", "Pending job accepted by backend", map[string]any{
					"local_id":  localID,
					"server_id": confirmed.ID,
				})
			}
		case job.SyncFailed:
			if err := c.gw.UpdateRideStatus(ctx, j.ID, j.Status); err == nil {
				c.store.SetJobSync(j.ID, job.SyncSynced)
				c.log.Info(ctx, "job_status_resynced", "Locally held status accepted by backend", map[string]any{
					"job_id": j.ID,
					"status": j.Status.String(),
				})
			}
		}

		c.end(key)
	}
}

// sanitizeJobs normalizes snapshot rows and drops the ones that do not
// hold the entity invariants. The backend echoes display-cased statuses;
// rows that do not parse are discarded rather than trusted.
func (c *Controller) sanitizeJobs(ctx context.Context, rows []job.Job) []job.Job {
	out := make([]job.Job, 0, len(rows))
	for _, r := range rows {
		status, serr := job.ParseStatus(string(r.Status))
		kind, kerr := job.ParseKind(string(r.Kind))
		if serr != nil || kerr != nil {
			c.log.Debug(ctx, "job_snapshot_row_discarded", "Malformed job in snapshot", map[string]any{
				"job_id": r.ID,
				"status": string(r.Status),
				"type":   string(r.Kind),
			})
			continue
		}
		r.Status, r.Kind = status, kind
		if err := r.Validate(); err != nil {
			c.log.Debug(ctx, "job_snapshot_row_discarded", "Malformed job in snapshot", map[string]any{
				"job_id": r.ID,
				"cause":  err.Error(),
			})
			continue
		}
		out = append(out, r)
	}
	return out
}

// refreshPosts retries unsynced listings first, then applies the server
// snapshots for both kinds.
func (c *Controller) refreshPosts(ctx context.Context) error {
	c.retryPendingPosts(ctx)

	before := c.store.Revision()
	shares, err := c.gw.SharePosts(ctx)
	if err != nil {
		return err
	}
	c.store.ReplaceSharePosts(before, shares)

	before = c.store.Revision()
	hires, err := c.gw.HirePosts(ctx)
	if err != nil {
		return err
	}
	c.store.ReplaceHirePosts(before, hires)
	return nil
}

// retryPendingPosts replays locally-created listings the backend has not
// accepted yet. Still-failing entries stay pending for the next tick.
func (c *Controller) retryPendingPosts(ctx context.Context) {
	for _, p := range c.store.SharePosts() {
		if p.SyncState != post.SyncPending {
			continue
		}
		localID := p.ID
		retry := p
		retry.ID = ""
		retry.SyncState = ""
		confirmed, err := c.gw.AddDriverSharePost(ctx, retry)
		if err != nil {
			continue
		}
		c.store.ResolveSharePost(localID, confirmed)
		c.log.Info(ctx, "share_post_resynced", "Pending listing accepted by backend", map[string]any{
			"local_id":  localID,
			"server_id": confirmed.ID,
		})
	}

	for _, p := range c.store.HirePosts() {
		if p.SyncState != post.SyncPending {
			continue
		}
		localID := p.ID
		retry := p
		retry.ID = ""
		retry.SyncState = ""
		confirmed, err := c.gw.AddDriverHirePost(ctx, retry)
		if err != nil {
			continue
		}
		c.store.ResolveHirePost(localID, confirmed)
		c.log.Info(ctx, "hire_post_resynced", "Pending listing accepted by backend", map[string]any{
			"local_id":  localID,
			"server_id": confirmed.ID,
		})
	}
}

func (c *Controller) refreshTransactions(ctx context.Context) error {
	list, err := c.gw.Transactions(ctx)
	if err != nil {
		return err
	}
	c.store.ReplaceTransactions(list)
	return nil
}

func (c *Controller) refreshNotifications(ctx context.Context) error {
	before := c.store.Revision()
	list, err := c.gw.Notifications(ctx)
	if err != nil {
		return err
	}
	c.store.ReplaceNotifications(before, list)
	return nil
}

func (c *Controller) refreshFleet(ctx context.Context) error {
	list, err := c.gw.Vehicles(ctx)
	if err != nil {
		return err
	}
	c.store.ReplaceVehicles(list)
	return nil
}

// ----- Event bindings -----

// bindEvents registers the push handlers. Every handler filters by the
// session's driver identity before touching the cache; frames for other
// drivers are counted and ignored.
func (c *Controller) bindEvents() {
	c.channel.On(contracts.EventNotification, func(ctx context.Context, payload any) {
		ev, ok := payload.(contracts.NotificationEvent)
		if !ok {
			return
		}
		c.store.AddNotification(notification.Notification{
			ID:      ev.CorrelationID,
			Title:   ev.Title,
			Message: ev.Message,
			Time:    ev.Time,
			Unread:  true,
		})
	})

	onApproval := func(ctx context.Context, payload any) {
		ev, ok := payload.(contracts.ApprovalEvent)
		if !ok {
			return
		}
		if ev.DriverID != c.driverID {
			metrics.EventsReceived.WithLabelValues(contracts.EventRideRequest, "filtered").Inc()
			return
		}
		c.store.AddApproval(approval.Request{
			ID:            ev.ID,
			JobID:         ev.JobID,
			RelatedType:   approval.RelatedType(ev.RelatedType),
			DriverID:      ev.DriverID,
			ProposerID:    ev.ProposerID,
			ProposerName:  ev.ProposerName,
			Origin:        ev.Origin,
			Destination:   ev.Destination,
			ProposedPrice: ev.ProposedPrice,
			Message:       ev.Message,
		})
	}
	c.channel.On(contracts.EventNewRideRequest, onApproval)
	c.channel.On(contracts.EventRideRequest, onApproval)
	c.channel.On(contracts.EventHireRequest, onApproval)

	c.channel.On(contracts.EventRidesharePostAdded, func(ctx context.Context, payload any) {
		ev, ok := payload.(contracts.SharePostEvent)
		if !ok {
			return
		}
		if ev.DriverID != c.driverID {
			metrics.EventsReceived.WithLabelValues(contracts.EventRidesharePostAdded, "filtered").Inc()
			return
		}
		c.store.UpsertSharePost(post.SharePost{
			ID:          ev.ID,
			Origin:      ev.Origin,
			Destination: ev.Destination,
			Date:        ev.Date,
			Time:        ev.Time,
			Price:       ev.Price,
			Seats:       ev.Seats,
			SyncState:   post.SyncSynced,
		})
	})

	c.channel.On(contracts.EventHirePostAdded, func(ctx context.Context, payload any) {
		ev, ok := payload.(contracts.HirePostEvent)
		if !ok {
			return
		}
		if ev.DriverID != c.driverID {
			metrics.EventsReceived.WithLabelValues(contracts.EventHirePostAdded, "filtered").Inc()
			return
		}
		c.store.UpsertHirePost(post.HirePost{
			ID:        ev.ID,
			Title:     ev.Title,
			Category:  ev.Category,
			Location:  ev.Location,
			Rate:      ev.Rate,
			Status:    ev.Status,
			SyncState: post.SyncSynced,
		})
	})

	c.channel.On(contracts.EventVehicleAdded, func(ctx context.Context, payload any) {
		ev, ok := payload.(contracts.VehicleEvent)
		if !ok {
			return
		}
		if ev.DriverID != c.driverID {
			metrics.EventsReceived.WithLabelValues(contracts.EventVehicleAdded, "filtered").Inc()
			return
		}
		c.store.AddVehicle(vehicle.Vehicle{
			ID:       ev.ID,
			DriverID: ev.DriverID,
			Make:     ev.Make,
			Model:    ev.Model,
			Color:    ev.Color,
			Plate:    ev.Plate,
			Year:     ev.Year,
		})
	})
}
