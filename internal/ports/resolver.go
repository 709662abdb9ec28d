package ports

import "github.com/bft-labs/migchan/internal/domain"

// Resolver turns a migration URI into an endpoint address.
type Resolver interface {
	Resolve(uri string) (domain.Address, error)
}

// Policy answers the configuration questions that shape channel setup.
// domain.Capabilities is the standard implementation.
type Policy interface {
	MultifdEnabled() bool
	MultifdChannelCount() int
	PostcopyPreemptEnabled() bool
	ZeroCopyRequired() bool
}
