package hash

import (
	"encoding/binary"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of the frozen hashing form.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (int64=8B, uint16=2B)
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Booleans: single byte (0/1)
//   - Child nodes: serialized inline (flat)
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of an HNode tree.
// The returned bytes are suitable for hashing with SHA-256.
func Serialize(node HNode) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.serializeNode(node)
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

func (s *serializer) writeUint16(v uint16) {
	s.buf = binary.BigEndian.AppendUint16(s.buf, v)
}

func (s *serializer) writeUint32(v uint32) {
	s.buf = binary.BigEndian.AppendUint32(s.buf, v)
}

func (s *serializer) writeInt64(v int64) {
	s.buf = binary.BigEndian.AppendUint64(s.buf, uint64(v))
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) serializeNode(node HNode) {
	switch n := node.(type) {
	case *HIntArg:
		s.writeByte(TagIntArg)
		s.writeInt64(n.Value)

	case *HTextArg:
		s.writeByte(TagTextArg)
		s.writeString(n.Value)

	case *HLabelRef:
		s.writeByte(TagLabelRef)
		s.writeUint16(n.Index)

	case *HPairArg:
		s.writeByte(TagPairArg)
		s.writeInt64(n.Key)
		s.writeUint16(n.Target)

	case *HLabelMark:
		s.writeByte(TagLabelMark)
		s.writeUint16(n.Index)

	case *HOperation:
		s.writeByte(TagOperation)
		s.writeString(n.Mnemonic)
		s.writeByte(n.Opcode)
		s.writeBool(n.Wide)
		s.writeUint32(uint32(len(n.Args)))
		for _, a := range n.Args {
			s.serializeNode(a)
		}

	case *HCatch:
		s.writeByte(TagCatch)
		s.writeUint16(n.From)
		s.writeUint16(n.To)
		s.writeUint16(n.Handler)
		s.writeString(n.Type)

	case *HBody:
		s.writeByte(TagBody)
		s.writeString(n.Descriptor)
		s.writeBool(n.Static)
		s.writeUint16(n.MaxStack)
		s.writeUint16(n.MaxLocals)
		s.writeUint32(uint32(len(n.Code)))
		for _, c := range n.Code {
			s.serializeNode(c)
		}
		s.writeUint32(uint32(len(n.Catches)))
		for _, c := range n.Catches {
			s.serializeNode(c)
		}
	}
}
