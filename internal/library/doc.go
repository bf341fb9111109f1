// Package library manages a project's function library: one source file per
// function in the project root, plus a manifest that imports each of them.
//
// Writing a function overwrites <root>/<name>.py and appends
//
//	from <name> import <name>
//
// to the manifest, which is append-only and is the only record cleanup
// trusts. DeleteLibraryFiles removes every file the manifest names and then
// the manifest. The Listener runs that cleanup when a project closes.
package library
