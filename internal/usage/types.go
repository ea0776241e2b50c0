package usage

import (
	"context"
	"time"
)

// Observation is one sample of the user's foreground window. Empty
// strings mean no foreground window could be resolved.
type Observation struct {
	ProcessName string
	WindowTitle string
	Idle        time.Duration
}

// HasWindow reports whether the observation identifies a window.
func (o Observation) HasWindow() bool {
	return o.ProcessName != "" && o.WindowTitle != ""
}

// Observer samples the foreground window.
type Observer interface {
	Sample(ctx context.Context) (Observation, error)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context) (Observation, error)

// Sample calls f.
func (f ObserverFunc) Sample(ctx context.Context) (Observation, error) {
	return f(ctx)
}

// TrackerState is the tracker's owned state. ProcessName and WindowTitle
// are the last observed pair, which may be remembered while idle when
// opening a session for it failed or it was incomplete.
type TrackerState struct {
	Tracking    bool
	SessionID   int64
	ProcessName string
	WindowTitle string
}

// Transition names the outcome of a tracker tick.
type Transition string

const (
	TransitionIdle      Transition = "idle"
	TransitionSwitch    Transition = "switch"
	TransitionUnchanged Transition = "unchanged"
)

// Reasons recorded when a session is closed.
const (
	closeReasonSwitch   = "switch"
	closeReasonIdle     = "idle"
	closeReasonShutdown = "shutdown"
	closeReasonRepair   = "repair"
)
