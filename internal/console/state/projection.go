package state

import "driver-console/internal/domain/job"

// CurrentTrip scans the job list in insertion order and returns the
// first job whose status projects to the tracking view. At most one such
// job should exist; if the backend ever hands us two, the first wins and
// the rest are ignored.
func (s *Store) CurrentTrip() (job.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.jobs {
		if e.val.Status.ProjectsToTrip() {
			return e.val, true
		}
	}
	return job.Job{}, false
}
