// Package docker runs local rehearsals of the platform lifecycle in
// Docker containers.
//
// A rehearsal starts a throwaway container from a Python base image with
// the project mounted at /app, runs the build steps and then the start
// command inside it, and publishes the server port on the host. This lets
// an operator see the exact build and start behavior the platform will
// exhibit before pushing.
//
// Rehearsal containers are tagged with "deployctl.*" labels. The labels
// are the only state: listing and cleanup query the daemon for them and
// nothing is written to disk.
//
// The Docker Engine SDK (github.com/docker/docker/client) is used for
// daemon checks, listing and removal. Containers are created with the
// docker CLI so pass-through variables can be forwarded by name without
// their values appearing in argv.
package docker
