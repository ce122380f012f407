// Package cmdtable provides the command table of the device protocol.
//
// Each message on the wire is a 1-byte command code followed by a 4-byte
// value. The table maps codes to mnemonics and declares how the value is
// interpreted. A Registry is built once at start-up and shared read-only.
package cmdtable
