// Package source reads version-control metadata of the project being
// deployed.
//
// Platforms build from a Git checkout, and knowing which commit a plan or
// rehearsal came from is the first question when a deploy misbehaves.
// The metadata is informational only: a directory that is not a Git
// working tree, or a machine without git, simply has no revision.
package source
