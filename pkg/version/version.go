// Package version holds the build version, overridable with
// -ldflags "-X downshot/pkg/version.Version=v1.2.3".
package version

// Version is the service version.
var Version = "v0.1.0"

// UserAgent identifies the service and its version to peers.
func UserAgent() string {
	return "downshot/" + Version
}
