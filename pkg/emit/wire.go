// Package emit writes verified method bodies as a stream of canonical CBOR
// records.
package emit

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/jasm/compiler/hash"
	"github.com/chazu/jasm/pkg/bytecode"
)

// cborEncMode is canonical so that equal records encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("emit: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Record is one emitted method body with its content hash.
type Record struct {
	Hash [32]byte             `cbor:"1,keyasint"`
	Body *bytecode.MethodBody `cbor:"2,keyasint"`
}

// NewRecord wraps b with its content hash.
func NewRecord(b *bytecode.MethodBody) *Record {
	return &Record{Hash: hash.HashBody(b), Body: b}
}

// Verify reports whether the record's hash matches its body.
func (r *Record) Verify() bool {
	return r.Body != nil && hash.HashBody(r.Body) == r.Hash
}

// MarshalRecord serializes a Record to CBOR bytes.
func MarshalRecord(r *Record) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalRecord deserializes a Record from CBOR bytes.
func UnmarshalRecord(data []byte) (*Record, error) {
	var r Record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("emit: unmarshal record: %w", err)
	}
	if r.Body == nil {
		return nil, fmt.Errorf("emit: record has no body")
	}
	if r.Body.Format != bytecode.FormatVersion {
		return nil, fmt.Errorf("emit: body format %d, want %d", r.Body.Format, bytecode.FormatVersion)
	}
	return &r, nil
}
