// Package notify delivers one-shot event reminders. Permission is decided
// once at startup; scheduled reminders cannot be cancelled individually.
package notify

import (
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"planevent/internal/clock"
	appLog "planevent/internal/log"
)

var (
	// ErrPermissionDenied is returned when notifications are not granted.
	ErrPermissionDenied = errors.New("notifications are not permitted")
	// ErrReminderPassed is returned when the reminder instant is not in the future.
	ErrReminderPassed = errors.New("reminder time has already passed")
)

// Permission mirrors the three-state notification permission.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Capability tracks the notification permission of the process.
type Capability struct {
	mu     sync.Mutex
	state  Permission
	policy func() Permission
}

// NewCapability starts undecided; Request consults policy to decide.
func NewCapability(policy func() Permission) *Capability {
	return &Capability{state: PermissionDefault, policy: policy}
}

// Request resolves a still-undecided permission. Later calls are no-ops.
func (c *Capability) Request() Permission {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == PermissionDefault && c.policy != nil {
		c.state = c.policy()
	}
	return c.state
}

func (c *Capability) State() Permission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Notifier shows a notification to the user.
type Notifier interface {
	Notify(title, body string) error
}

// LogNotifier delivers notifications as log lines.
type LogNotifier struct{}

func (LogNotifier) Notify(title, body string) error {
	appLog.Info("reminder", "title", title, "body", body)
	return nil
}

// Scheduler fires reminders at a fixed instant.
type Scheduler struct {
	cron     *cron.Cron
	clock    clock.Clock
	perm     *Capability
	notifier Notifier
	onFire   func(error)
}

// NewScheduler builds a stopped scheduler; call Start before use.
func NewScheduler(c clock.Clock, perm *Capability, n Notifier) *Scheduler {
	if n == nil {
		n = LogNotifier{}
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(c.Location())),
		clock:    c,
		perm:     perm,
		notifier: n,
	}
}

// OnFire registers a callback invoked after every delivery attempt.
func (s *Scheduler) OnFire(fn func(error)) { s.onFire = fn }

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler; pending reminders are dropped. The returned
// channel closes once a running delivery finishes.
func (s *Scheduler) Stop() <-chan struct{} {
	return s.cron.Stop().Done()
}

// Pending is the number of reminders not yet delivered.
func (s *Scheduler) Pending() int {
	return len(s.cron.Entries())
}

// Schedule arranges a notification at `at`.
func (s *Scheduler) Schedule(at time.Time, title, body string) error {
	if s.perm == nil || s.perm.State() != PermissionGranted {
		return ErrPermissionDenied
	}
	if !at.After(s.clock.Now()) {
		return ErrReminderPassed
	}

	var (
		mu   sync.Mutex
		id   cron.EntryID
		once sync.Once
	)
	job := cron.FuncJob(func() {
		once.Do(func() {
			err := s.notifier.Notify(title, body)
			if err != nil {
				appLog.Error("reminder delivery failed", err, "title", title)
			}
			mu.Lock()
			s.cron.Remove(id)
			mu.Unlock()
			if s.onFire != nil {
				s.onFire(err)
			}
		})
	})
	mu.Lock()
	id = s.cron.Schedule(oneShot{at: at}, job)
	mu.Unlock()
	appLog.Debug("reminder scheduled", "at", at.Format(time.RFC3339), "title", title)
	return nil
}

// oneShot is a cron.Schedule that activates exactly once.
type oneShot struct {
	at time.Time
}

func (o oneShot) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}
