// Package schedule drives the periodic reconcile cadence alongside
// informer-triggered reconciles, sharing the same coalescing trigger so
// that a periodic tick merges with any pass already pending. A tick that
// arrives while a pass is running and none is pending is not skipped: it
// queues one follow-up pass.
package schedule

import (
	"time"

	"github.com/robfig/cron/v3"

	logf "github.com/openshift/ingress-capacity-controller/pkg/log"
)

var log = logf.Logger.WithName("schedule")

// defaultInterval is the periodic reconcile cadence (spec.md §4.7).
const defaultInterval = 3 * time.Minute

// Trigger is satisfied by reconciler.Reconciler: requesting a pass that
// coalesces with any pass already pending.
type Trigger interface {
	Trigger()
}

// PeriodicTrigger runs a single cron entry that calls Trigger.Trigger()
// every interval. Because the reconciler's own trigger channel holds at
// most one pending request, a tick collapses into a pass that is already
// pending; a tick during a running pass with nothing pending queues exactly
// one more pass, and never a second one alongside it.
type PeriodicTrigger struct {
	cron     *cron.Cron
	trigger  Trigger
	interval time.Duration
}

// New constructs a PeriodicTrigger with the default 3-minute cadence.
func New(trigger Trigger) *PeriodicTrigger {
	return newWithInterval(trigger, defaultInterval)
}

func newWithInterval(trigger Trigger, interval time.Duration) *PeriodicTrigger {
	return &PeriodicTrigger{
		cron:     cron.New(),
		trigger:  trigger,
		interval: interval,
	}
}

// Start schedules the periodic entry and begins running it in the
// background. Call Stop to halt it.
func (p *PeriodicTrigger) Start() {
	_, err := p.cron.AddFunc(every(p.interval), func() {
		log.Info("periodic reconcile trigger fired")
		p.trigger.Trigger()
	})
	if err != nil {
		log.Error(err, "failed to schedule periodic reconcile trigger")
		return
	}
	p.cron.Start()
}

// Stop halts the scheduler, allowing any in-flight reconcile to finish.
func (p *PeriodicTrigger) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
}

// every renders a cron spec equivalent to "@every <interval>".
func every(d time.Duration) string {
	return "@every " + d.String()
}
