package models

type Stage string

const (
	StageIdle         Stage = "idle"
	StageInitializing Stage = "initializing"
	StageConnecting   Stage = "connecting"
	StageHealthCheck  Stage = "health_check"
	StageSending      Stage = "sending"
	StageProcessing   Stage = "processing"
	StageFinalizing   Stage = "finalizing"
	StageComplete     Stage = "complete"
	StageFailed       Stage = "failed"
)

// Terminal reports whether the run has ended.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

func (s Stage) Label() string {
	switch s {
	case StageIdle:
		return "Idle"
	case StageInitializing:
		return "Initializing"
	case StageConnecting:
		return "Connecting"
	case StageHealthCheck:
		return "Checking services"
	case StageSending:
		return "Sending"
	case StageProcessing:
		return "Processing"
	case StageFinalizing:
		return "Finalizing"
	case StageComplete:
		return "Complete"
	case StageFailed:
		return "Failed"
	}
	return string(s)
}

// ProgressState is the transient view of one submission. It is copied on
// every broadcast so listeners may keep it.
type ProgressState struct {
	Stage          Stage
	Percent        int
	Message        string
	CompletedTasks []string
	CurrentTask    string
	TotalTasks     int
	Loading        bool
	Err            error
}

func (p ProgressState) Clone() ProgressState {
	c := p
	if p.CompletedTasks != nil {
		c.CompletedTasks = append([]string(nil), p.CompletedTasks...)
	}
	return c
}

func (p ProgressState) TaskDone(task string) bool {
	for _, t := range p.CompletedTasks {
		if t == task {
			return true
		}
	}
	return false
}
