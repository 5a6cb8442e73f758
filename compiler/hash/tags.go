package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the method body hashing format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// all previously computed content hashes.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// Node type tags. Each tag uniquely identifies a node kind in the
// serialized byte stream.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Structure
	TagBody      byte = 0x01
	TagOperation byte = 0x02
	TagLabelMark byte = 0x03
	TagCatch     byte = 0x04

	// Operands
	TagIntArg   byte = 0x10
	TagTextArg  byte = 0x11
	TagLabelRef byte = 0x12
	TagPairArg  byte = 0x13 // lookupswitch key with its target

	// Reserved 0xFE-0xFF
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagBody, TagOperation, TagLabelMark, TagCatch,
	TagIntArg, TagTextArg, TagLabelRef, TagPairArg,
}
