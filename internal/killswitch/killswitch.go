package killswitch

import "sync/atomic"

// Switch is a process-wide gate that, when engaged, rejects all non-admin
// traffic. It starts live and is only ever flipped by authenticated admin
// calls; every request reads it, so the state lives in a single atomic
// rather than under a lock.
type Switch struct {
	killed atomic.Bool
}

// New creates a switch in the live state.
func New() *Switch {
	return &Switch{}
}

// Kill engages the switch. Idempotent: killing an already-killed switch
// is a no-op success.
func (s *Switch) Kill() {
	s.killed.Store(true)
}

// Unkill brings the service back to live. Idempotent.
func (s *Switch) Unkill() {
	s.killed.Store(false)
}

// Killed reports whether the switch is engaged.
func (s *Switch) Killed() bool {
	return s.killed.Load()
}
