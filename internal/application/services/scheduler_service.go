package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/robfig/cron/v3"

	"github.com/nexuscrm/tenantcrm/internal/domain/events"
	"github.com/nexuscrm/tenantcrm/internal/domain/models"
	"github.com/nexuscrm/tenantcrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/tenantcrm/pkg/constants"
)

// cronParser accepts standard five-field cron expressions
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// SchedulerService runs TIME_BASED and RECURRING workflows when they are due
type SchedulerService struct {
	repo     *persistence.SchedulerRepository
	engine   *WorkflowEngine
	interval time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	stopped  bool // Prevents double-close of stopChan
}

// NewSchedulerService creates a new scheduler service
func NewSchedulerService(repo *persistence.SchedulerRepository, engine *WorkflowEngine, interval time.Duration) *SchedulerService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SchedulerService{
		repo:     repo,
		engine:   engine,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the scheduler background loop. It blocks until Stop is called.
func (s *SchedulerService) Start() {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	glog.Infof("Scheduler service starting (interval %s)", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.RunPending(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunPending(context.Background())
		case <-s.stopChan:
			glog.Info("Scheduler service stopping...")
			s.wg.Wait() // Wait for running jobs to complete
			glog.Info("Scheduler service stopped")
			return
		}
	}
}

// Stop gracefully stops the scheduler. Once stopped, Start returns immediately.
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stopped = true
	s.mu.Unlock()

	close(s.stopChan)
}

// RunPending executes every due workflow in its own goroutine and waits for them
func (s *SchedulerService) RunPending(ctx context.Context) {
	due, err := s.repo.ListDue(ctx, time.Now().UTC())
	if err != nil {
		glog.Errorf("Scheduler: failed to load due workflows: %v", err)
		return
	}

	var batch sync.WaitGroup
	for _, w := range due {
		if w.Schedule() == "" {
			continue
		}
		s.wg.Add(1)
		batch.Add(1)
		go func(w models.Workflow) {
			defer s.wg.Done()
			defer batch.Done()
			s.executeScheduled(&w)
		}(w)
	}
	batch.Wait()
}

// executeScheduled runs a single workflow under the is_running lock
func (s *SchedulerService) executeScheduled(w *models.Workflow) {
	ctx := context.Background()

	acquired, err := s.repo.AcquireExecutionLock(ctx, w.ID)
	if err != nil {
		glog.Warningf("Scheduler: failed to acquire lock for workflow %s: %v", w.ID, err)
		return
	}
	if !acquired {
		glog.V(1).Infof("Scheduler: workflow %s is already running, skipping", w.Name)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("Scheduler: panic in workflow %s: %v", w.Name, r)
		}
		if err := s.repo.ReleaseExecutionLock(context.Background(), w.ID); err != nil {
			glog.Warningf("Scheduler: failed to release lock for workflow %s: %v", w.ID, err)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(constants.ScheduleMaxRuntimeMins)*time.Minute)
	defer cancel()

	ev := events.NewTriggerEvent(events.EventType(w.TriggerType), w.TenantID, constants.EntityWorkflow, w.ID,
		map[string]interface{}{"schedule": w.Schedule()})
	start := time.Now()
	if _, err := s.engine.Execute(runCtx, w, ev); err != nil {
		glog.Warningf("Scheduler: workflow %s failed after %v: %v", w.Name, time.Since(start), err)
	} else {
		glog.Infof("Scheduler: workflow %s completed in %v", w.Name, time.Since(start))
	}

	if err := s.repo.UpdateRunStatus(ctx, w.ID); err != nil {
		glog.Warningf("Scheduler: failed to update last_run_at for workflow %s: %v", w.ID, err)
	}

	if w.TriggerType == constants.TriggerTimeBased {
		if err := s.repo.Deactivate(ctx, w.ID); err != nil {
			glog.Warningf("Scheduler: failed to deactivate one-shot workflow %s: %v", w.ID, err)
		}
		return
	}
	s.scheduleNextRun(ctx, w)
}

// scheduleNextRun calculates and sets the next run time
func (s *SchedulerService) scheduleNextRun(ctx context.Context, w *models.Workflow) {
	next, err := calculateNextRun(w.Schedule(), GetConfigString(w.TriggerConfig, "timezone"), time.Now())
	if err != nil {
		glog.Warningf("Scheduler: failed to calculate next run for workflow %s: %v", w.Name, err)
		return
	}
	if err := s.repo.UpdateNextRunAt(ctx, w.ID, next); err != nil {
		glog.Warningf("Scheduler: failed to update next_run_at for workflow %s: %v", w.Name, err)
	}
}

// calculateNextRun parses a cron expression and returns the next activation in UTC.
// An unknown timezone falls back to UTC.
func calculateNextRun(cronExpr, timezone string, now time.Time) (time.Time, error) {
	loc := time.UTC
	if timezone != "" && timezone != "UTC" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			glog.Warningf("Scheduler: invalid timezone %s, falling back to UTC", timezone)
		} else {
			loc = l
		}
	}

	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule.Next(now.In(loc)).UTC(), nil
}
