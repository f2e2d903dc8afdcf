package services

// State tracks where an apply operation currently is. Only one operation
// can be in flight; every other entry point is rejected as busy until the
// service returns to an idle-like state.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateBackingUp
	StateGenerating
	StateExecuting
	StateVerifying
	StateApplied
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateBackingUp:
		return "backing-up"
	case StateGenerating:
		return "generating"
	case StateExecuting:
		return "executing"
	case StateVerifying:
		return "verifying"
	case StateApplied:
		return "applied"
	case StateRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}
