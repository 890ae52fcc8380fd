package jobs

import (
	"github.com/robfig/cron/v3"
)

// SessionPruner drops sessions that have expired.
type SessionPruner interface {
	PruneExpired() int
}

// SessionPrune evicts abandoned sessions so they do not accumulate between
// sign-ins.
type SessionPrune struct {
	sessions SessionPruner
}

var _ cron.Job = (*SessionPrune)(nil)

// NewSessionPrune returns a prune job over sessions.
func NewSessionPrune(sessions SessionPruner) *SessionPrune {
	return &SessionPrune{sessions: sessions}
}

// Run implements cron.Job.
func (p *SessionPrune) Run() { p.sessions.PruneExpired() }
