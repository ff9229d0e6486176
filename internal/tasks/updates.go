package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a publish run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number
	Total   int    // Total steps of a successful run
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Phase is one step of the publish transaction.
type Phase int

const (
	PhaseOpen Phase = iota
	PhaseUpload
	PhaseExpansion
	PhaseMapping
	PhaseSymbols
	PhaseAssign
	PhaseUntrack
	PhaseValidate
	PhaseCommit
	PhaseRollback
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseUpload:
		return "upload"
	case PhaseExpansion:
		return "expansion"
	case PhaseMapping:
		return "mapping"
	case PhaseSymbols:
		return "symbols"
	case PhaseAssign:
		return "assign"
	case PhaseUntrack:
		return "untrack"
	case PhaseValidate:
		return "validate"
	case PhaseCommit:
		return "commit"
	case PhaseRollback:
		return "rollback"
	case PhaseComplete:
		return "complete"
	default:
		return ""
	}
}

func stepUpdate(phase Phase, step, total int, msg string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, msg),
	}
}

func rollbackUpdate(editID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseRollback,
		Message: fmt.Sprintf("Deleting edit %s...", editID),
	}
}

// completeUpdate carries a copy of the finished result as Data.
func completeUpdate(result PublishResult) ProgressUpdate {
	msg := fmt.Sprintf("✓ Committed version %d to %s", result.VersionCode, result.Request.Track)
	if result.Err != nil {
		msg = fmt.Sprintf("✗ %s", result.Err.Diagnostic())
	}
	return ProgressUpdate{
		Phase:   PhaseComplete,
		Message: msg,
		Data:    result,
	}
}
