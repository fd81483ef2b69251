// Package state implements persistence of the door alarm flags.
//
// FileRepository stores the two arm flags and the auto-arm suspension flag
// as protobuf JSON, replacing the file atomically on every save. Marker is
// the clean-shutdown file whose absence at startup signals a crash.
package state
