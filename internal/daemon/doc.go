// Package daemon implements the start, stop and restart commands.
//
// A running gateway is identified by its pid file. Start re-executes the
// binary with the "run" command in a new session, detached from the
// terminal; the child claims the pid file itself. Stop signals the pid in
// the file with SIGTERM and escalates to SIGKILL after a timeout.
package daemon
