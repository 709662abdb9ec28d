// Package ports defines the interfaces (ports) that connect the channel
// orchestration core to infrastructure adapters and to the migration state
// machine.
//
// # Port Interfaces
//
//   - [Channel], [Connector]: connected byte streams and how to dial them
//   - [Listener], [Socket], [Binder]: inbound listening sockets
//   - [Resolver]: migration URI to endpoint address
//   - [Policy]: multifd / postcopy-preempt / zero-copy configuration
//   - [OutgoingRegistrar], [IncomingRegistrar]: state machine hand-off
//   - [AddressRegistry]: publication of bound listen addresses
//   - [Logger], [EventEmitter]: observability
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with sockets,
// zerolog and files.
package ports
