// Package sla turns priorities into legal due dates and evaluates deadline status on read.
//
// Status is recomputed from wall-clock time on every call and never stored.
package sla

import (
	"math"
	"time"

	"incidencias/internal/domain/calendar"
	"incidencias/internal/domain/policy"
)

type State string

const (
	StateOnTime    State = "dentro_plazo"
	StateDueSoon   State = "proximo_vencer"
	StateOverdue   State = "vencido"
	dueSoonDays          = 2
	dueSoonPercent       = 80.0
)

type Deadlines struct {
	Attention time.Time
	Closure   time.Time
}

// Snapshot is the part of an incidence the status evaluation reads.
type Snapshot struct {
	Priority        policy.Priority
	ReportedAt      *time.Time
	ClosureDeadline *time.Time
}

type Status struct {
	Priority        policy.Priority
	ResolutionDays  int
	DaysElapsed     int
	DaysRemaining   int
	PercentElapsed  float64
	State           State
	ClosureDeadline time.Time
}

type Calculator struct {
	policy *policy.Policy
}

func NewCalculator(p *policy.Policy) *Calculator {
	return &Calculator{policy: p}
}

// DeadlinesFor counts the priority's business-day budget from reportedAt. Unknown priorities use
// the default row.
func (c *Calculator) DeadlinesFor(priority policy.Priority, reportedAt time.Time) Deadlines {
	days := c.policy.SLA(priority)
	return Deadlines{
		Attention: calendar.AddBusinessDays(reportedAt, days.Attention),
		Closure:   calendar.AddBusinessDays(reportedAt, days.Resolution),
	}
}

// Status evaluates the snapshot against now. It returns nil when the snapshot was never reported.
func (c *Calculator) Status(snapshot Snapshot, now time.Time) *Status {
	if snapshot.ReportedAt == nil || snapshot.ReportedAt.IsZero() {
		return nil
	}

	reportedAt := *snapshot.ReportedAt
	resolution := c.policy.SLA(snapshot.Priority).Resolution

	closure := c.DeadlinesFor(snapshot.Priority, reportedAt).Closure
	if snapshot.ClosureDeadline != nil && !snapshot.ClosureDeadline.IsZero() {
		closure = *snapshot.ClosureDeadline
	}

	elapsed := calendar.CountBusinessDays(reportedAt, now)
	remaining := resolution - elapsed
	if remaining < 0 {
		remaining = 0
	}
	percent := math.Min(100, float64(elapsed)/float64(resolution)*100)

	state := StateOnTime
	switch {
	case remaining == 0 || now.After(closure):
		state = StateOverdue
	case remaining <= dueSoonDays || percent >= dueSoonPercent:
		state = StateDueSoon
	}

	return &Status{
		Priority:        snapshot.Priority,
		ResolutionDays:  resolution,
		DaysElapsed:     elapsed,
		DaysRemaining:   remaining,
		PercentElapsed:  percent,
		State:           state,
		ClosureDeadline: closure,
	}
}
