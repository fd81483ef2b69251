// Package command implements the gRPC transport for operator commands.
//
// Messages use the protobuf well-known types so that no generated code is
// required: commands travel as a Struct, replies as a StringValue and the
// status snapshot as a Struct.
package command
