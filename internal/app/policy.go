package app

import (
	"github.com/bft-labs/migchan/internal/domain"
	"github.com/bft-labs/migchan/internal/ports"
)

// RequiredChannelCount returns how many channels a migration with the given
// policy uses: the multifd channel count when multifd is enabled, the
// postcopy channel pair when postcopy preempt is enabled, otherwise one.
// Enabling both modes is a configuration error caught before this point.
func RequiredChannelCount(p ports.Policy) int {
	switch {
	case p.MultifdEnabled():
		return p.MultifdChannelCount()
	case p.PostcopyPreemptEnabled():
		return domain.PostcopyChannelMax
	default:
		return 1
	}
}
