// Package ctl implements the door-guard-ctl commands.
//
// Each command connects to the daemon, sends one operator action with the
// detected operator identity and prints the daemon reply.
package ctl
