// Package lifecycle tracks whether the process is draining.
package lifecycle

import "sync/atomic"

// State is shared by the server and the health handler. The zero value is
// ready for use and not shutting down.
type State struct {
	shuttingDown atomic.Bool
}

// New returns a State that is not shutting down.
func New() *State {
	return &State{}
}

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT is received.
// The health handler returns 503 with status shutting-down while true.
func (s *State) SetShuttingDown(v bool) {
	s.shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func (s *State) IsShuttingDown() bool {
	return s.shuttingDown.Load()
}
