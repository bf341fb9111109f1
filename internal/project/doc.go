// Package project tracks the projects open in the host.
//
// Each project has:
//   - a unique ID (UUID)
//   - a name (the root's base name unless given)
//   - an absolute root path, where the function library lives
//
// Opening and closing publish project_opened, project_closing and
// project_closed on the hook bus. project_closing runs while the project is
// still registered so handlers can clean up its files.
package project
