// Package common holds helpers shared by the daemon and the control client.
//
// It provides a lightweight gRPC client wrapper with timeouts, detection of
// the operator identity for the audit trail and a single-instance guard.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
