package discovery

import "context"

// IDiscoveryService finds a newer configuration among the live peers
type IDiscoveryService interface {
	// Discover broadcasts to every live peer and adopts the newest document.
	// It reports whether the local document was replaced.
	Discover(ctx context.Context) (bool, error)
}
