package lifecycle

// State is the playback state of the adapter's device.
type State int32

const (
	// Stopped is the initial state.
	Stopped State = iota
	Started
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Started:
		return "started"
	default:
		return "unknown"
	}
}
