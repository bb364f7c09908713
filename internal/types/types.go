// Package types contains shared types used across packages
package types

// Platform is a package registry that can be searched
type Platform string

const (
	PlatformNpm    Platform = "npm"
	PlatformBower  Platform = "bower"
	PlatformCrates Platform = "crates"
)

// Platforms lists every supported registry in display order
var Platforms = []Platform{PlatformBower, PlatformNpm, PlatformCrates}

// DisplayName returns the name shown to users (e.g. "crates.io")
func (p Platform) DisplayName() string {
	switch p {
	case PlatformBower:
		return "Bower"
	case PlatformCrates:
		return "crates.io"
	default:
		return string(p)
	}
}

// ParsePlatform converts a user supplied name into a Platform
func ParsePlatform(name string) (Platform, bool) {
	for _, p := range Platforms {
		if string(p) == name {
			return p, true
		}
	}
	return "", false
}

// PagedResult is one page of rendered search results
type PagedResult struct {
	Text      string // markdown rendered results
	Remaining int    // results left after this page
	PerPage   int    // page size used for the request
}

// Reaction is an acknowledgement placed on an incoming message
type Reaction int

const (
	ReactionLike Reaction = iota
)
