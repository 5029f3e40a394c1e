package pipeline

// Stage is a step in one request's lifecycle.
type Stage int

const (
	StageBuilding Stage = iota
	StageSent
	StageSucceeded
	StageAuthFailed
	StageRefreshing
	StageRetried
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageBuilding:
		return "building"
	case StageSent:
		return "sent"
	case StageSucceeded:
		return "succeeded"
	case StageAuthFailed:
		return "auth_failed"
	case StageRefreshing:
		return "refreshing"
	case StageRetried:
		return "retried"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further stage follows s.
func (s Stage) Terminal() bool {
	return s == StageSucceeded || s == StageFailed
}
