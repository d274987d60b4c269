// Package vehicle describes the link to the aircraft: SDK registration,
// product connection and camera setup.
package vehicle

import (
	"context"
	"errors"
)

var (
	// ErrNoAppKey is returned when registration is attempted without an app key.
	ErrNoAppKey = errors.New("no SDK app key configured")
	// ErrNotRegistered is returned when connecting before registration.
	ErrNotRegistered = errors.New("SDK not registered")
	// ErrNotConnected is returned when a product command needs a connection.
	ErrNotConnected = errors.New("no product connected")
)

// State is the link lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateRegistered   State = "registered"
	StateConnected    State = "connected"
)

// Product identifies the connected aircraft.
type Product struct {
	Model    string `json:"model"`
	Serial   string `json:"serial,omitempty"`
	Firmware string `json:"firmware,omitempty"`
}

// AspectRatio is a camera photo aspect ratio.
type AspectRatio string

const (
	AspectRatio4x3  AspectRatio = "4:3"
	AspectRatio16x9 AspectRatio = "16:9"
	AspectRatio3x2  AspectRatio = "3:2"
)

// Link is the vendor SDK connection.
type Link interface {
	Register(ctx context.Context, appKey string) error
	Connect(ctx context.Context) (Product, error)
	SetPhotoAspectRatio(ctx context.Context, ratio AspectRatio) error
	State() State
}
