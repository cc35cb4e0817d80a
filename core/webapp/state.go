package webapp

// State is the lifecycle state of an Application.
type State int32

const (
	StateLoading State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}
