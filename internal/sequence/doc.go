// Package sequence implements the two platform lifecycle sequencers.
//
// The build sequencer runs a fixed list of steps (by default a pip
// self-upgrade followed by `pip install -r requirements.txt`) one after the
// other, streaming their output and stopping at the first failure, whose
// exit code becomes deployctl's own.
//
// The start sequencer prints two diagnostic lines and then replaces the
// process with the server via execve(2). On platforms without exec the
// server runs as a child and its exit status is forwarded instead.
//
// Neither sequencer retries, supervises, or restarts anything.
package sequence
