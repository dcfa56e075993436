// Package port resolves and probes the TCP port the hand-off target binds.
//
// Resolve turns the PORT environment value into a port number, falling
// back to a default when the variable is unset. Scanner verifies OS-level
// availability via net.Listen() on the wildcard address, which backs the
// start preflight and the host-port choice of local rehearsals.
package port
