package domain

import (
	"fmt"
	"time"
)

// SessionStatus is the lifecycle state of a drill session.
type SessionStatus string

const (
	SessionDraft     SessionStatus = "draft"
	SessionScheduled SessionStatus = "scheduled"
	SessionLive      SessionStatus = "live"
	SessionCompleted SessionStatus = "completed"
)

// NormalizeSessionStatus maps the paused/running aliases onto their canonical
// statuses and reports whether the value is known.
func NormalizeSessionStatus(raw string) (SessionStatus, bool) {
	switch SessionStatus(raw) {
	case SessionDraft, SessionScheduled, SessionLive, SessionCompleted:
		return SessionStatus(raw), true
	case "paused":
		return SessionScheduled, true
	case "running":
		return SessionLive, true
	}
	return "", false
}

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionDraft:     {SessionScheduled},
	SessionScheduled: {SessionLive},
	SessionLive:      {SessionScheduled, SessionCompleted},
}

// CanTransition reports whether from -> to is an allowed session move.
func (s SessionStatus) CanTransition(to SessionStatus) bool {
	for _, next := range sessionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// DrillSession is the timed exercise that scopes answers and leaderboards.
type DrillSession struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Status    SessionStatus `json:"status"`
	StartTime *time.Time    `json:"startTime,omitempty"`
	EndTime   *time.Time    `json:"endTime,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Transition moves the session to status to at now. Going live the first time
// stamps StartTime; completing stamps EndTime. The single-live rule is
// enforced by the stores, which see all sessions.
func (d *DrillSession) Transition(to SessionStatus, now time.Time) error {
	if !d.Status.CanTransition(to) {
		return fmt.Errorf("%w: session %s -> %s", ErrInvalidTransition, d.Status, to)
	}
	d.Status = to
	switch to {
	case SessionLive:
		if d.StartTime == nil {
			t := now
			d.StartTime = &t
		}
	case SessionCompleted:
		t := now
		d.EndTime = &t
	}
	return nil
}
