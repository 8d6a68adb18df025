package mining

import "errors"

// ErrInvalidUser rejects commands carrying an empty or unusable user
// reference. No state changes when it is returned.
var ErrInvalidUser = errors.New("invalid user reference")

// StartOutcome reports how a start command resolved.
type StartOutcome string

const (
	// OutcomeStarted means a new session was recorded and its
	// completion timer scheduled.
	OutcomeStarted StartOutcome = "started"
	// OutcomeAlreadyRunning means the user already had a running
	// session; the command was an idempotent no-op.
	OutcomeAlreadyRunning StartOutcome = "already_running"
)
