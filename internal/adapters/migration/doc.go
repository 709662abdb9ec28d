// Package migration provides a minimal host-side migration state machine:
// registrars that take ownership of the channels the core hands over and
// signal when the expected channel set is complete.
package migration
