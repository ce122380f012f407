// Package frame implements the device wire frame.
//
//	0x0D | ([CMD:u8][VAL:4 bytes LE]){N} | LEN:u8 | CRC:u8 | 0x0A
//
// Bytes 0x0A, 0x0D and 0x1B between the markers are sent as 0x1B, 255-b.
// The CRC-8 covers the unescaped messages and LEN.
package frame
