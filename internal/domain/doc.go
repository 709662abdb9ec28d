// Package domain contains the value types and errors of the migration
// channel layer.
//
// This package has no dependencies on infrastructure concerns (sockets,
// logging, configuration files) and contains only plain data and the
// invariants attached to it.
//
// # Entities
//
//   - [Address]: a resolved endpoint, one of [InetAddress], [UnixAddress],
//     [FDAddress] or [VsockAddress]
//   - [Capabilities]: the policy inputs (multifd, postcopy preempt,
//     zero-copy send) that decide how many channels a migration needs
//
// # Design Principles
//
// Domain values are:
//   - Immutable after construction
//   - Free of infrastructure dependencies
//   - Testable without mocks or external systems
package domain
