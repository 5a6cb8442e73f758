package emit

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"

	"github.com/chazu/jasm/pkg/bytecode"
)

var logger = commonlog.GetLogger("jasm.emit")

// Writer emits each body as one CBOR record appended to w, forming a CBOR
// sequence.
type Writer struct {
	mu    sync.Mutex
	w     io.Writer
	count int
}

// NewWriter returns a Writer appending to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Emit writes b.
func (w *Writer) Emit(b *bytecode.MethodBody) error {
	data, err := MarshalRecord(NewRecord(b))
	if err != nil {
		return fmt.Errorf("emit: marshal %s: %w", b.Name, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(data); err != nil {
		return err
	}
	w.count++
	logger.Debugf("emitted %s.%s%s (%d bytes)", b.Class, b.Name, b.Descriptor, len(data))
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// ErrHashMismatch is returned by ReadAll for a record whose hash does not
// match its body.
var ErrHashMismatch = errors.New("emit: hash does not match body")

// ReadAll decodes and verifies every record of a CBOR sequence. Records read
// before a failure are returned with the error.
func ReadAll(r io.Reader) ([]*Record, error) {
	dec := cbor.NewDecoder(r)
	var out []*Record
	for {
		var raw cbor.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("emit: record %d: %w", len(out), err)
		}
		rec, err := UnmarshalRecord(raw)
		if err != nil {
			return out, fmt.Errorf("emit: record %d: %w", len(out), err)
		}
		if !rec.Verify() {
			return out, fmt.Errorf("emit: record %d: %w", len(out), ErrHashMismatch)
		}
		out = append(out, rec)
	}
}

// Collector keeps emitted bodies in memory.
type Collector struct {
	mu     sync.Mutex
	bodies []*bytecode.MethodBody
}

// Emit records b.
func (c *Collector) Emit(b *bytecode.MethodBody) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bodies = append(c.bodies, b)
	return nil
}

// Bodies returns the collected bodies in emission order.
func (c *Collector) Bodies() []*bytecode.MethodBody {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*bytecode.MethodBody(nil), c.bodies...)
}
