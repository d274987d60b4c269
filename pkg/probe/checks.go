package probe

import "context"

// Pinger is satisfied by stores that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LinkChecker is satisfied by the vehicle session.
type LinkChecker interface {
	CheckConnected(ctx context.Context) error
	CheckAppKey(ctx context.Context) error
}

// Preflight returns the checks run before the mission API is served.
// The app key is advisory because the simulated vehicle ignores it.
func Preflight(store Pinger, link LinkChecker) []Probe {
	return []Probe{
		{Name: "Mission Store", Check: store.Ping, Critical: true},
		{Name: "Vehicle Link", Check: link.CheckConnected, Critical: true},
		{Name: "SDK App Key", Check: link.CheckAppKey, Critical: false},
	}
}
