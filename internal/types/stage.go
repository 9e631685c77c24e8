package types

import "fmt"

// Stage is the lifecycle stage of a job as seen by the client.
// Unlike JobStatus it includes the transient idle and uploading stages.
type Stage int

const (
	StageIdle Stage = iota
	StageUploading
	StageProcessing
	StageCompleted
	StageError
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageUploading:
		return "uploading"
	case StageProcessing:
		return "processing"
	case StageCompleted:
		return "completed"
	case StageError:
		return "error"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// MarshalText encodes the stage by name
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition is expected
func (s Stage) Terminal() bool {
	switch s {
	case StageCompleted, StageError:
		return true
	default:
		return false
	}
}

// CanTransition enforces idle -> uploading -> processing -> {completed | error}.
// A terminal stage may move back to processing for a manual retry.
func (s Stage) CanTransition(to Stage) bool {
	switch s {
	case StageIdle:
		return to == StageUploading || to == StageProcessing
	case StageUploading:
		return to == StageProcessing || to == StageError
	case StageProcessing:
		return to == StageCompleted || to == StageError
	case StageCompleted:
		return false
	case StageError:
		return to == StageProcessing
	default:
		return false
	}
}

// StageForStatus maps a persisted status to the client stage
func StageForStatus(status JobStatus) Stage {
	switch status {
	case StatusPending:
		return StageUploading
	case StatusProcessing:
		return StageProcessing
	case StatusCompleted:
		return StageCompleted
	case StatusError:
		return StageError
	default:
		return StageIdle
	}
}
