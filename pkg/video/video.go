// Package video selects the camera feed for the connected aircraft and
// relays its frames to websocket viewers.
package video

import "strings"

// Channel identifies one of the aircraft's two video feeds.
type Channel int

const (
	ChannelPrimary Channel = iota
	ChannelSecondary
)

func (c Channel) String() string {
	if c == ChannelSecondary {
		return "secondary"
	}
	return "primary"
}

// MarshalText renders the channel name in JSON.
func (c Channel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Flight controllers that route the main camera over the secondary feed.
var secondaryFeedModels = map[string]bool{
	"A3":            true,
	"N3":            true,
	"Matrice600":    true,
	"Matrice600Pro": true,
}

// SelectFeed returns the feed to display for the given product model.
func SelectFeed(model string) Channel {
	if secondaryFeedModels[strings.TrimSpace(model)] {
		return ChannelSecondary
	}
	return ChannelPrimary
}
