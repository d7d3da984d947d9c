// Package state is the console's in-memory session cache. Three writers
// feed it: direct driver actions, pushed events, and poll refreshes. Every
// entry carries a monotonic revision taken from a store-wide counter;
// snapshot writers pass the revision they observed before fetching, so a
// slow poll response cannot clobber state written after the fetch began.
package state

import (
	"sync"

	"driver-console/internal/domain/approval"
	"driver-console/internal/domain/billing"
	"driver-console/internal/domain/geo"
	"driver-console/internal/domain/job"
	"driver-console/internal/domain/notification"
	"driver-console/internal/domain/post"
	"driver-console/internal/domain/subscription"
	"driver-console/internal/domain/vehicle"
)

type jobEntry struct {
	rev uint64
	val job.Job
}

type sharePostEntry struct {
	rev uint64
	val post.SharePost
}

type hirePostEntry struct {
	rev uint64
	val post.HirePost
}

type approvalEntry struct {
	rev uint64
	val approval.Request
}

type notificationEntry struct {
	rev uint64
	val notification.Notification
}

// TripDetail enriches the current-trip projection with geocoded route
// data. Distance is zero when geocoding failed (soft failure).
type TripDetail struct {
	JobID            int64      `json:"jobId"`
	OriginPoint      *geo.Point `json:"originPoint,omitempty"`
	DestinationPoint *geo.Point `json:"destinationPoint,omitempty"`
	DistanceKM       float64    `json:"distanceKm,omitempty"`
}

type Store struct {
	mu  sync.RWMutex
	seq uint64

	jobs     []jobEntry
	jobTombs map[int64]uint64

	sharePosts []sharePostEntry
	shareTombs map[string]uint64

	hirePosts []hirePostEntry
	hireTombs map[string]uint64

	approvals     []approvalEntry
	approvalTombs map[string]uint64

	notifications []notificationEntry

	transactions []billing.Transaction
	vehicles     []vehicle.Vehicle

	trip    TripDetail
	hasTrip bool

	editingID string

	sub    subscription.Current
	hasSub bool
}

func NewStore() *Store {
	return &Store{
		jobTombs:      make(map[int64]uint64),
		shareTombs:    make(map[string]uint64),
		hireTombs:     make(map[string]uint64),
		approvalTombs: make(map[string]uint64),
	}
}

// Revision returns the current store revision. Snapshot writers capture
// it before fetching and pass it back to the Replace* methods.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

func (s *Store) nextLocked() uint64 {
	s.seq++
	return s.seq
}

// ----- Jobs -----

func (s *Store) Jobs() []job.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]job.Job, len(s.jobs))
	for i, e := range s.jobs {
		out[i] = e.val
	}
	return out
}

func (s *Store) JobByID(id int64) (job.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.jobs {
		if e.val.ID == id {
			return e.val, true
		}
	}
	return job.Job{}, false
}

// UpsertJob writes a job from a local action or a pushed event, bumping
// its revision past any in-flight snapshot.
func (s *Store) UpsertJob(j job.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobTombs, j.ID)
	for i, e := range s.jobs {
		if e.val.ID == j.ID {
			s.jobs[i] = jobEntry{rev: s.nextLocked(), val: j}
			return
		}
	}
	s.jobs = append(s.jobs, jobEntry{rev: s.nextLocked(), val: j})
}

// SetJobSync flips only the sync marker, keeping the rest of the job.
func (s *Store) SetJobSync(id int64, state job.SyncState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.jobs {
		if e.val.ID == id {
			e.val.SyncState = state
			s.jobs[i] = jobEntry{rev: s.nextLocked(), val: e.val}
			return true
		}
	}
	return false
}

// RemoveJob deletes a job and leaves a tombstone so an in-flight poll
// snapshot cannot resurrect it.
func (s *Store) RemoveJob(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.jobs {
		if e.val.ID == id {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			s.jobTombs[id] = s.nextLocked()
			return true
		}
	}
	return false
}

// ResolveJob swaps a locally-generated pending job for the
// server-confirmed one once a retry lands.
func (s *Store) ResolveJob(localID int64, confirmed job.Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.jobs {
		if e.val.ID == localID {
			confirmed.SyncState = job.SyncSynced
			s.jobs[i] = jobEntry{rev: s.nextLocked(), val: confirmed}
			return true
		}
	}
	return false
}

// ReplaceJobs applies a poll/fetch snapshot taken at revision before.
// Entries written after the fetch began survive, as do pending local
// creates the server does not know yet. A SyncFailed entry does not pin
// the row: the snapshot is the server's word, and the failed write is
// replayed separately by the poll tick.
func (s *Store) ReplaceJobs(before uint64, snap []job.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := make(map[int64]jobEntry, len(s.jobs))
	for _, e := range s.jobs {
		cur[e.val.ID] = e
	}

	next := make([]jobEntry, 0, len(snap))
	seen := make(map[int64]bool, len(snap))

	for _, j := range snap {
		if seen[j.ID] {
			continue
		}
		seen[j.ID] = true

		if tombRev, dead := s.jobTombs[j.ID]; dead && tombRev > before {
			continue // removed after this fetch began
		}
		delete(s.jobTombs, j.ID)

		if e, ok := cur[j.ID]; ok && (e.rev > before || e.val.SyncState == job.SyncPending) {
			next = append(next, e)
			continue
		}
		j.SyncState = job.SyncSynced
		next = append(next, jobEntry{rev: s.nextLocked(), val: j})
	}

	// locals missing from the snapshot survive only if newer or still
	// awaiting their first accept
	for _, e := range s.jobs {
		if seen[e.val.ID] {
			continue
		}
		if e.rev > before || e.val.SyncState == job.SyncPending {
			next = append(next, e)
		}
	}

	for id, rev := range s.jobTombs {
		if rev <= before && !seen[id] {
			delete(s.jobTombs, id) // server caught up with the removal
		}
	}

	s.jobs = next
}

// ----- Share posts -----

func (s *Store) SharePosts() []post.SharePost {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]post.SharePost, len(s.sharePosts))
	for i, e := range s.sharePosts {
		out[i] = e.val
	}
	return out
}

func (s *Store) UpsertSharePost(p post.SharePost) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.shareTombs, p.ID)
	for i, e := range s.sharePosts {
		if e.val.ID == p.ID {
			s.sharePosts[i] = sharePostEntry{rev: s.nextLocked(), val: p}
			return
		}
	}
	s.sharePosts = append(s.sharePosts, sharePostEntry{rev: s.nextLocked(), val: p})
}

// ResolveSharePost swaps a locally-generated pending record for the
// server-confirmed one once a retry lands.
func (s *Store) ResolveSharePost(localID string, confirmed post.SharePost) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.sharePosts {
		if e.val.ID == localID {
			confirmed.SyncState = post.SyncSynced
			s.sharePosts[i] = sharePostEntry{rev: s.nextLocked(), val: confirmed}
			return true
		}
	}
	return false
}

func (s *Store) ReplaceSharePosts(before uint64, snap []post.SharePost) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := make(map[string]sharePostEntry, len(s.sharePosts))
	for _, e := range s.sharePosts {
		cur[e.val.ID] = e
	}

	next := make([]sharePostEntry, 0, len(snap))
	seen := make(map[string]bool, len(snap))

	for _, p := range snap {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		if tombRev, dead := s.shareTombs[p.ID]; dead && tombRev > before {
			continue
		}
		delete(s.shareTombs, p.ID)

		if e, ok := cur[p.ID]; ok && (e.rev > before || e.val.SyncState == post.SyncPending) {
			next = append(next, e)
			continue
		}
		p.SyncState = post.SyncSynced
		next = append(next, sharePostEntry{rev: s.nextLocked(), val: p})
	}

	for _, e := range s.sharePosts {
		if seen[e.val.ID] {
			continue
		}
		if e.rev > before || e.val.SyncState == post.SyncPending {
			next = append(next, e)
		}
	}

	for id, rev := range s.shareTombs {
		if rev <= before && !seen[id] {
			delete(s.shareTombs, id)
		}
	}

	s.sharePosts = next
}

// ----- Hire posts -----

func (s *Store) HirePosts() []post.HirePost {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]post.HirePost, len(s.hirePosts))
	for i, e := range s.hirePosts {
		out[i] = e.val
	}
	return out
}

func (s *Store) UpsertHirePost(p post.HirePost) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.hireTombs, p.ID)
	for i, e := range s.hirePosts {
		if e.val.ID == p.ID {
			s.hirePosts[i] = hirePostEntry{rev: s.nextLocked(), val: p}
			return
		}
	}
	s.hirePosts = append(s.hirePosts, hirePostEntry{rev: s.nextLocked(), val: p})
}

func (s *Store) ResolveHirePost(localID string, confirmed post.HirePost) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.hirePosts {
		if e.val.ID == localID {
			confirmed.SyncState = post.SyncSynced
			s.hirePosts[i] = hirePostEntry{rev: s.nextLocked(), val: confirmed}
			return true
		}
	}
	return false
}

func (s *Store) ReplaceHirePosts(before uint64, snap []post.HirePost) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := make(map[string]hirePostEntry, len(s.hirePosts))
	for _, e := range s.hirePosts {
		cur[e.val.ID] = e
	}

	next := make([]hirePostEntry, 0, len(snap))
	seen := make(map[string]bool, len(snap))

	for _, p := range snap {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		if tombRev, dead := s.hireTombs[p.ID]; dead && tombRev > before {
			continue
		}
		delete(s.hireTombs, p.ID)

		if e, ok := cur[p.ID]; ok && (e.rev > before || e.val.SyncState == post.SyncPending) {
			next = append(next, e)
			continue
		}
		p.SyncState = post.SyncSynced
		next = append(next, hirePostEntry{rev: s.nextLocked(), val: p})
	}

	for _, e := range s.hirePosts {
		if seen[e.val.ID] {
			continue
		}
		if e.rev > before || e.val.SyncState == post.SyncPending {
			next = append(next, e)
		}
	}

	for id, rev := range s.hireTombs {
		if rev <= before && !seen[id] {
			delete(s.hireTombs, id)
		}
	}

	s.hirePosts = next
}

// ----- Pending approvals -----

func (s *Store) Approvals() []approval.Request {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]approval.Request, len(s.approvals))
	for i, e := range s.approvals {
		out[i] = e.val
	}
	return out
}

// AddApproval appends a pending request, deduplicating by id.
func (s *Store) AddApproval(r approval.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.approvalTombs, r.ID)
	for i, e := range s.approvals {
		if e.val.ID == r.ID {
			s.approvals[i] = approvalEntry{rev: s.nextLocked(), val: r}
			return
		}
	}
	s.approvals = append(s.approvals, approvalEntry{rev: s.nextLocked(), val: r})
}

// RemoveApproval resolves a request exactly once. The tombstone keeps an
// in-flight poll from bringing it back.
func (s *Store) RemoveApproval(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.approvals {
		if e.val.ID == id {
			s.approvals = append(s.approvals[:i], s.approvals[i+1:]...)
			s.approvalTombs[id] = s.nextLocked()
			return true
		}
	}
	return false
}

func (s *Store) ReplaceApprovals(before uint64, snap []approval.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := make(map[string]approvalEntry, len(s.approvals))
	for _, e := range s.approvals {
		cur[e.val.ID] = e
	}

	next := make([]approvalEntry, 0, len(snap))
	seen := make(map[string]bool, len(snap))

	for _, r := range snap {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true

		if tombRev, dead := s.approvalTombs[r.ID]; dead && tombRev > before {
			continue // resolved after this fetch began
		}
		delete(s.approvalTombs, r.ID)

		if e, ok := cur[r.ID]; ok && e.rev > before {
			next = append(next, e)
			continue
		}
		next = append(next, approvalEntry{rev: s.nextLocked(), val: r})
	}

	for _, e := range s.approvals {
		if !seen[e.val.ID] && e.rev > before {
			next = append(next, e)
		}
	}

	for id, rev := range s.approvalTombs {
		if rev <= before && !seen[id] {
			delete(s.approvalTombs, id)
		}
	}

	s.approvals = next
}

// ----- Notifications (append-only) -----

func (s *Store) Notifications() []notification.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]notification.Notification, len(s.notifications))
	for i, e := range s.notifications {
		out[i] = e.val
	}
	return out
}

func (s *Store) AddNotification(n notification.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.notifications {
		if n.ID != "" && e.val.ID == n.ID {
			s.notifications[i] = notificationEntry{rev: s.nextLocked(), val: n}
			return
		}
	}
	s.notifications = append(s.notifications, notificationEntry{rev: s.nextLocked(), val: n})
}

// MarkAllRead clears the unread flag on every notification.
func (s *Store) MarkAllRead() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for i, e := range s.notifications {
		if e.val.Unread {
			e.val.Unread = false
			s.notifications[i] = notificationEntry{rev: s.nextLocked(), val: e.val}
			changed++
		}
	}
	return changed
}

// ReplaceNotifications merges a snapshot. The list is append-only, so
// local entries never disappear; locally-cleared unread flags survive a
// stale snapshot.
func (s *Store) ReplaceNotifications(before uint64, snap []notification.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := make(map[string]notificationEntry, len(s.notifications))
	for _, e := range s.notifications {
		if e.val.ID != "" {
			cur[e.val.ID] = e
		}
	}

	next := make([]notificationEntry, 0, len(snap))
	seen := make(map[string]bool, len(snap))

	for _, n := range snap {
		if n.ID != "" && seen[n.ID] {
			continue
		}
		seen[n.ID] = true

		if e, ok := cur[n.ID]; ok && e.rev > before {
			next = append(next, e)
			continue
		}
		next = append(next, notificationEntry{rev: s.nextLocked(), val: n})
	}

	for _, e := range s.notifications {
		if e.val.ID != "" && seen[e.val.ID] {
			continue
		}
		if e.val.ID == "" || e.rev > before {
			next = append(next, e)
		}
	}

	s.notifications = next
}

// ----- Transactions and fleet -----

func (s *Store) Transactions() []billing.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]billing.Transaction(nil), s.transactions...)
}

// ReplaceTransactions fully replaces the ledger; it has no local writers.
func (s *Store) ReplaceTransactions(snap []billing.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.transactions = append([]billing.Transaction(nil), snap...)
}

func (s *Store) Vehicles() []vehicle.Vehicle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]vehicle.Vehicle(nil), s.vehicles...)
}

func (s *Store) AddVehicle(v vehicle.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	for i, cur := range s.vehicles {
		if v.ID != "" && cur.ID == v.ID {
			s.vehicles[i] = v
			return
		}
	}
	s.vehicles = append(s.vehicles, v)
}

func (s *Store) ReplaceVehicles(snap []vehicle.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.vehicles = append([]vehicle.Vehicle(nil), snap...)
}

// ----- Current trip -----

func (s *Store) SetTripDetail(d TripDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trip = d
	s.hasTrip = true
}

func (s *Store) ClearTripDetail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trip = TripDetail{}
	s.hasTrip = false
}

func (s *Store) TripDetail() (TripDetail, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trip, s.hasTrip
}

// ----- Subscription -----

func (s *Store) SetSubscription(c subscription.Current) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sub = c
	s.hasSub = true
}

// MarkSubscriptionPaid flips the paid flag on the active window.
func (s *Store) MarkSubscriptionPaid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasSub {
		return false
	}
	s.sub.IsPaid = true
	return true
}

func (s *Store) Subscription() (subscription.Current, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sub, s.hasSub
}

// ----- Listing edit lock -----

// BeginEdit claims the single listing-edit slot. Only one listing may be
// in edit at a time; re-claiming the same id is a no-op.
func (s *Store) BeginEdit(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.editingID != "" && s.editingID != id {
		return false
	}
	s.editingID = id
	return true
}

func (s *Store) EndEdit(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.editingID == id {
		s.editingID = ""
	}
}

func (s *Store) EditingID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editingID, s.editingID != ""
}
