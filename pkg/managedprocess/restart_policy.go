//go:build unix

package managedprocess

import (
	"fmt"
	"time"

	"github.com/core-tools/hsu-engine/pkg/reaper"

	"golang.org/x/time/rate"
)

// RestartStats is what a restart policy may base its decision on.
type RestartStats struct {
	Spawns   int
	Restarts int

	// Uptime is how long the child that just exited was running.
	Uptime time.Duration
}

// RestartPolicy decides, after each exit, whether and when to spawn again.
// A policy instance belongs to one Monitor and is only called from its loop.
type RestartPolicy interface {
	Next(status reaper.ExitStatus, stats RestartStats) (time.Duration, bool)
}

type RestartPolicyFunc func(status reaper.ExitStatus, stats RestartStats) (time.Duration, bool)

func (f RestartPolicyFunc) Next(status reaper.ExitStatus, stats RestartStats) (time.Duration, bool) {
	return f(status, stats)
}

// AlwaysRestart respawns immediately, forever.
type AlwaysRestart struct{}

func (AlwaysRestart) Next(reaper.ExitStatus, RestartStats) (time.Duration, bool) {
	return 0, true
}

// FixedDelay respawns after a constant pause.
type FixedDelay struct {
	Delay time.Duration
}

func (p FixedDelay) Next(reaper.ExitStatus, RestartStats) (time.Duration, bool) {
	return p.Delay, true
}

// ExponentialBackoff grows the pause after every exit and falls back to
// Initial once a child stayed up for at least ResetAfter.
type ExponentialBackoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	ResetAfter time.Duration

	current time.Duration
}

func (p *ExponentialBackoff) Next(_ reaper.ExitStatus, stats RestartStats) (time.Duration, bool) {
	if p.ResetAfter > 0 && stats.Uptime >= p.ResetAfter {
		p.current = 0
	}

	if p.current == 0 {
		p.current = p.Initial
	} else {
		multiplier := p.Multiplier
		if multiplier < 1 {
			multiplier = 2
		}
		p.current = time.Duration(float64(p.current) * multiplier)
	}
	if p.Max > 0 && p.current > p.Max {
		p.current = p.Max
	}

	return p.current, true
}

// RestartBudget allows at most Max restarts per sliding Window and defers
// the delay to Inner.
type RestartBudget struct {
	Max    int
	Window time.Duration
	Inner  RestartPolicy

	now      func() time.Time
	restarts []time.Time
}

func (p *RestartBudget) Next(status reaper.ExitStatus, stats RestartStats) (time.Duration, bool) {
	now := time.Now()
	if p.now != nil {
		now = p.now()
	}

	kept := p.restarts[:0]
	for _, at := range p.restarts {
		if p.Window <= 0 || now.Sub(at) < p.Window {
			kept = append(kept, at)
		}
	}
	p.restarts = kept

	if len(p.restarts) >= p.Max {
		return 0, false
	}

	delay, ok := inner(p.Inner).Next(status, stats)
	if ok {
		p.restarts = append(p.restarts, now)
	}
	return delay, ok
}

// RateLimited stretches Inner's delay so restarts never exceed Limiter.
type RateLimited struct {
	Limiter *rate.Limiter
	Inner   RestartPolicy
}

func (p RateLimited) Next(status reaper.ExitStatus, stats RestartStats) (time.Duration, bool) {
	delay, ok := inner(p.Inner).Next(status, stats)
	if !ok {
		return 0, false
	}

	reservation := p.Limiter.Reserve()
	if !reservation.OK() {
		return 0, false
	}
	if wait := reservation.Delay(); wait > delay {
		delay = wait
	}
	return delay, true
}

type RestartCondition string

const (
	RestartAlways    RestartCondition = "always"
	RestartOnFailure RestartCondition = "on-failure"
	RestartNever     RestartCondition = "never"
)

func ParseRestartCondition(value string) (RestartCondition, error) {
	switch RestartCondition(value) {
	case "", RestartAlways:
		return RestartAlways, nil
	case RestartOnFailure, RestartNever:
		return RestartCondition(value), nil
	default:
		return "", fmt.Errorf("unknown restart condition: %q", value)
	}
}

// OnCondition filters exits before Inner sees them.
type OnCondition struct {
	Condition RestartCondition
	Inner     RestartPolicy
}

func (p OnCondition) Next(status reaper.ExitStatus, stats RestartStats) (time.Duration, bool) {
	switch p.Condition {
	case RestartNever:
		return 0, false
	case RestartOnFailure:
		if status.Success() {
			return 0, false
		}
	}
	return inner(p.Inner).Next(status, stats)
}

func inner(policy RestartPolicy) RestartPolicy {
	if policy == nil {
		return AlwaysRestart{}
	}
	return policy
}
