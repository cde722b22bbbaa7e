package pollingclient

import "fmt"

// RunState is the lifecycle state of a Client.
//
//	NotStarted -> Running -> Stopped
//
// Disposed is terminal and reachable from any state.
type RunState int32

const (
	NotStarted RunState = iota
	Running
	Stopped
	Disposed
)

func (s RunState) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("RunState(%d)", int32(s))
	}
}
