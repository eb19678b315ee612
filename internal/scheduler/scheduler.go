// Package scheduler re-triggers services on a cron cadence, the way the
// teacher's Scheduler wraps robfig/cron to re-run workflows — adapted here
// to call Service.Run instead of executing a persisted workflow definition.
// Schedule entries are process-lifetime only: there is no store backing
// them, consistent with the "no persisted execution state" rule that also
// keeps the audit trail append-only (see internal/callback.AuditSink).
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/actionfleet/actionfleet/internal/engine"
	"github.com/robfig/cron/v3"
)

// Scheduler drives one or more services on independent cron cadences.
type Scheduler struct {
	log *slog.Logger
	cr  *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID // "service/action" -> cron entry
}

// New constructs a Scheduler. A nil logger falls back to slog.Default().
func New(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		log:     log,
		cr:      cron.New(cron.WithSeconds()),
		entries: make(map[string]cron.EntryID),
	}
}

// AddSchedule registers svc/actionName to run on the given cron
// expression (seconds-resolution, per cron.WithSeconds). Re-registering
// the same service/action pair replaces its previous schedule.
func (s *Scheduler) AddSchedule(svc *engine.Service, actionName, cronExpr string) error {
	key := fmt.Sprintf("%s/%s", svc.Name, actionName)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[key]; ok {
		s.cr.Remove(id)
		delete(s.entries, key)
	}

	id, err := s.cr.AddFunc(cronExpr, func() {
		s.log.Info("scheduled run starting", "service", svc.Name, "action", actionName)
		if a, ok := svc.Action(actionName); ok {
			// A prior run left this action (and its dependency chain) in a
			// terminal status; Prepare would otherwise see an already-Done
			// parent and skip straight past it without dispatching anything.
			engine.ResetChain(a)
		}
		if err := svc.Run(context.Background(), actionName); err != nil {
			s.log.Error("scheduled run failed", "service", svc.Name, "action", actionName, "error", err)
			return
		}
		s.log.Info("scheduled run finished", "service", svc.Name, "action", actionName)
	})
	if err != nil {
		return fmt.Errorf("scheduler: bad cron expression %q: %w", cronExpr, err)
	}
	s.entries[key] = id
	return nil
}

// RemoveSchedule cancels a previously registered service/action schedule.
// It is a no-op if no such schedule exists.
func (s *Scheduler) RemoveSchedule(serviceName, actionName string) {
	key := fmt.Sprintf("%s/%s", serviceName, actionName)
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[key]; ok {
		s.cr.Remove(id)
		delete(s.entries, key)
	}
}

// ListSchedules returns the "service/action" keys currently scheduled.
func (s *Scheduler) ListSchedules() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	return out
}

// Start begins running registered schedules in the background.
func (s *Scheduler) Start() {
	s.cr.Start()
}

// Stop halts the scheduler and blocks until any in-flight cron job
// callback returns.
func (s *Scheduler) Stop() {
	ctx := s.cr.Stop()
	<-ctx.Done()
}
