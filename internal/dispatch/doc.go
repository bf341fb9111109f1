// Package dispatch provides the two execution contexts library operations
// run on: a Pool of background workers for file I/O, and a single-goroutine
// Dispatcher for follow-up work that must be serialized, such as asking the
// host to refresh its view of a project directory.
package dispatch
