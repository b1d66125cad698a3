package viewport

import (
	"time"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/watcher"
)

// DefaultCenterDelay is how long content is given to settle before it is
// measured and centered.
const DefaultCenterDelay = 100 * time.Millisecond

// Scheduler defers Recenter calls until content has settled. Scheduling
// again replaces the pending centering, so a late timer from an earlier
// content replacement never overrides a newer one.
type Scheduler struct {
	ctrl     *Controller
	debounce *watcher.Debouncer
}

// NewScheduler creates a scheduler for ctrl. A non-positive delay selects
// DefaultCenterDelay.
func NewScheduler(ctrl *Controller, delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = DefaultCenterDelay
	}
	return &Scheduler{
		ctrl:     ctrl,
		debounce: watcher.NewDebouncer(delay),
	}
}

// Schedule recenters the controller after the settle delay.
func (s *Scheduler) Schedule() {
	s.debounce.Trigger(s.ctrl.Recenter)
}

// ScheduleFunc runs fn after the settle delay instead of Recenter, for
// hosts that must measure content themselves.
func (s *Scheduler) ScheduleFunc(fn func()) {
	s.debounce.Trigger(fn)
}

// Cancel drops a pending centering.
func (s *Scheduler) Cancel() {
	s.debounce.Cancel()
}

// Pending reports whether a centering is waiting to run.
func (s *Scheduler) Pending() bool {
	return s.debounce.Pending()
}

// Delay returns the settle delay.
func (s *Scheduler) Delay() time.Duration {
	return s.debounce.Duration()
}
