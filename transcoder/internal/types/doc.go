// Package types defines the descriptor kind discriminator shared by the
// transcoder's descriptors and converters.
//
// # Key Types
//
//   - Kind: descriptor discriminator (scalar, opaque, composite)
//
// This package is internal to the transcoder.
package types
