// Package protocol defines the command message shared by every transport of
// an LST node.
package protocol

// A message is a 6-byte little-endian header followed by an opcode specific
// payload:
//
//   hwid:u16  seqnum:u16  system:u8  command:u8  data...
//
// The same bytes travel inside a serial frame (see package uart) and inside
// a radio packet (see package radio), where the hwid is relocated to the
// packet footer. Integrity is only checked on the radio path, using the
// LFSR checksum in this package.
