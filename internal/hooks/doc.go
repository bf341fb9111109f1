// Package hooks provides lifecycle hook management for funclibd.
//
// Supports project_opened, project_closing, project_closed and the
// run_configuration_added/changed/removed events. Publishers (the project and
// run configuration managers) call Execute; consumers such as the library
// listener Subscribe and keep the returned Subscription so they can detach.
package hooks
