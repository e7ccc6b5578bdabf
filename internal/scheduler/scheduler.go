// Package scheduler is the cron+interval task runner with idle gating,
// persistent last-run state, and manual-trigger support (spec.md C9).
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/beaconhq/beacond/internal/logger"
)

const (
	component    = "scheduler"
	cronPollEvery = 30 * time.Second
)

// Slot binds a registered task to a schedule read from config.
type Slot struct {
	TaskName        string
	Interval        string // mutually exclusive with Cron
	Cron            string
	RequiresSession bool
}

// Dispatcher owns all scheduled tasks and their firing.
type Dispatcher struct {
	registry *Registry
	idle     IdleChecker
	state    *stateStore
	gron     gronx.Gronx

	mu          sync.Mutex
	slots       []Slot
	lastCronRun map[string]string // task name -> truncated-to-minute key of last successful run
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// New creates a Dispatcher. statePath is where last-run records persist.
func New(registry *Registry, idle IdleChecker, statePath string) (*Dispatcher, error) {
	st, err := newStateStore(statePath)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		registry:    registry,
		idle:        idle,
		state:       st,
		gron:        gronx.New(),
		lastCronRun: make(map[string]string),
		stopCh:      make(chan struct{}),
	}, nil
}

// Bind reads the enabled task list from config and binds registered tasks
// to scheduled slots, warning on any name that isn't registered.
func (d *Dispatcher) Bind(slots []Slot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range slots {
		if _, ok := d.registry.Get(s.TaskName); !ok {
			logger.WarnCF(component, "scheduled task not registered", map[string]interface{}{"name": s.TaskName})
			continue
		}
		d.slots = append(d.slots, s)
	}
}

// Start launches one goroutine per interval task and one cron-polling
// goroutine, then returns; the loops run until Stop is called or ctx is
// cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	slots := append([]Slot{}, d.slots...)
	d.mu.Unlock()

	var cronSlots []Slot
	for _, s := range slots {
		if s.Cron != "" {
			cronSlots = append(cronSlots, s)
			continue
		}
		d.wg.Add(1)
		go d.runIntervalLoop(ctx, s)
	}

	if len(cronSlots) > 0 {
		d.wg.Add(1)
		go d.runCronLoop(ctx, cronSlots)
	}
}

// Stop signals all loops to exit and waits for them.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

func (d *Dispatcher) runIntervalLoop(ctx context.Context, s Slot) {
	defer d.wg.Done()

	dur, err := time.ParseDuration(s.Interval)
	if err != nil {
		logger.ErrorCF(component, "bad interval, task disabled", map[string]interface{}{"task": s.TaskName, "interval": s.Interval})
		return
	}
	ticker := time.NewTicker(dur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.attempt(ctx, s, false)
		}
	}
}

func (d *Dispatcher) runCronLoop(ctx context.Context, slots []Slot) {
	defer d.wg.Done()

	ticker := time.NewTicker(cronPollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			for _, s := range slots {
				due, err := d.gron.IsDue(s.Cron, now)
				if err != nil {
					logger.ErrorCF(component, "bad cron expression", map[string]interface{}{"task": s.TaskName, "cron": s.Cron})
					continue
				}
				if !due {
					continue
				}

				minuteKey := now.Format("200601021504")
				d.mu.Lock()
				already := d.lastCronRun[s.TaskName] == minuteKey
				d.mu.Unlock()
				if already {
					continue // this due window already fired successfully
				}

				if d.attempt(ctx, s, false) {
					d.mu.Lock()
					d.lastCronRun[s.TaskName] = minuteKey
					d.mu.Unlock()
				}
			}
		}
	}
}

// attempt applies the idle gate (unless manual) and runs the task if
// permitted. Returns true iff the task actually ran (gate passed).
func (d *Dispatcher) attempt(ctx context.Context, s Slot, manual bool) bool {
	task, ok := d.registry.Get(s.TaskName)
	if !ok {
		return false
	}

	requiresSession := s.RequiresSession
	if !manual && requiresSession {
		if !d.idle.IsAgentIdle() {
			logger.InfoCF(component, "task skipped: agent busy", map[string]interface{}{"task": s.TaskName})
			return false
		}
		if !d.idle.SessionExists(ctx) {
			logger.InfoCF(component, "task skipped: no session", map[string]interface{}{"task": s.TaskName})
			return false
		}
	}

	err := task.Run(ctx)
	if err != nil {
		logger.ErrorCF(component, "task failed", map[string]interface{}{"task": s.TaskName, "error": err.Error()})
	} else {
		logger.InfoCF(component, "task ran", map[string]interface{}{"task": s.TaskName})
	}
	if saveErr := d.state.recordRun(s.TaskName, time.Now(), err); saveErr != nil {
		logger.ErrorCF(component, "failed to persist scheduler state", map[string]interface{}{"error": saveErr.Error()})
	}
	return true
}

// TriggerNow runs a task immediately, bypassing the idle gate (spec.md §4.4
// manual trigger). It never mutates the cron's next-fire bookkeeping
// (spec.md L3).
func (d *Dispatcher) TriggerNow(ctx context.Context, name string) error {
	d.mu.Lock()
	var slot Slot
	found := false
	for _, s := range d.slots {
		if s.TaskName == name {
			slot = s
			found = true
			break
		}
	}
	d.mu.Unlock()
	if !found {
		if _, ok := d.registry.Get(name); !ok {
			return fmt.Errorf("scheduler: unknown task %q", name)
		}
		slot = Slot{TaskName: name, RequiresSession: true}
	}

	task, _ := d.registry.Get(name)
	err := task.Run(ctx)
	if saveErr := d.state.recordRun(name, time.Now(), err); saveErr != nil {
		logger.ErrorCF(component, "failed to persist scheduler state", map[string]interface{}{"error": saveErr.Error()})
	}
	_ = slot
	return err
}

// Status returns the persisted record of every task that has run at least
// once, scheduled or manually triggered; a bound task that has never run
// has no record.
func (d *Dispatcher) Status() []Record {
	return d.state.all()
}
