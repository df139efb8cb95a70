package app

import "time"

// State is a step of the startup sequence.
type State int

const (
	StateInitializing State = iota
	StateConfiguringMiddleware
	StateConnectingDatabase
	StateConfiguringPush
	StateMountingRoutes
	StateListening
	StateExported
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StateConfiguringMiddleware:
		return "ConfiguringMiddleware"
	case StateConnectingDatabase:
		return "ConnectingDatabase"
	case StateConfiguringPush:
		return "ConfiguringPush"
	case StateMountingRoutes:
		return "MountingRoutes"
	case StateListening:
		return "Listening"
	case StateExported:
		return "Exported"
	}
	return "Unknown"
}

// Transition records one state change.
type Transition struct {
	From State
	To   State
	At   time.Time
}
