// Package version exposes build metadata for the tank-guard binaries.
//
// Version, Commit and BuildTime are injected through ldflags. Full is printed
// by the `version` subcommand and UserAgent identifies outbound HTTP calls.
package version
