// Package vfs keeps the host's view of project directories in step with disk.
//
// Index is the Refresher the library manager uses after writing function
// files: it rescans a directory and reports added, removed and modified
// paths. Watcher drives the same Refresher from fsnotify events for changes
// made outside funclibd.
package vfs
