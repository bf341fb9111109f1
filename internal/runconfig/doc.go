// Package runconfig holds run configurations: named launch settings for a
// project's scripts.
//
// The Manager publishes run_configuration_added, run_configuration_changed
// and run_configuration_removed on the hook bus. PythonPathUpdater is the
// PathUpdater the library listener applies on add and change.
package runconfig
