package pdu

import (
	"encoding/binary"
	"fmt"

	"github.com/grailbio/go-dicom/dicomio"
)

// InvalidPDUError is returned when a PDU fails to decode. Offset is the
// position of the offending byte, counted from the first byte of the 6-byte
// PDU header.
type InvalidPDUError struct {
	Offset int
	// Reason is the A-ABORT reason to report to the peer.
	Reason AbortReason
	Msg    string
}

func (e *InvalidPDUError) Error() string {
	return fmt.Sprintf("invalid PDU at offset %d: %s", e.Offset, e.Msg)
}

// decoder reads big-endian PDU fields through dicomio and keeps track of the
// byte offset and the stack of enclosing item boundaries. Bounds are checked
// here, so the wrapped dicomio.Decoder never runs past its input.
type decoder struct {
	d      *dicomio.Decoder
	pos    int
	limits []int
	err    *InvalidPDUError
}

// newDecoder creates a decoder for data, which starts at offset "base" of the
// enclosing PDU.
func newDecoder(data []byte, base int) *decoder {
	return &decoder{
		d:      dicomio.NewBytesDecoder(data, binary.BigEndian, dicomio.UnknownVR),
		pos:    base,
		limits: []int{base + len(data)},
	}
}

func (d *decoder) remaining() int {
	return d.limits[len(d.limits)-1] - d.pos
}

func (d *decoder) ok() bool { return d.err == nil }

func (d *decoder) failf(reason AbortReason, format string, args ...interface{}) {
	if d.err == nil {
		d.err = &InvalidPDUError{Offset: d.pos, Reason: reason, Msg: fmt.Sprintf(format, args...)}
	}
}

func (d *decoder) need(n int) bool {
	if d.err != nil {
		return false
	}
	if n < 0 || n > d.remaining() {
		d.failf(AbortReasonInvalidPDUParameterValue, "need %d bytes, but only %d remain", n, d.remaining())
		return false
	}
	return true
}

func (d *decoder) readByte() byte {
	if !d.need(1) {
		return 0
	}
	d.pos++
	return d.d.ReadByte()
}

func (d *decoder) readUInt16() uint16 {
	if !d.need(2) {
		return 0
	}
	d.pos += 2
	return d.d.ReadUInt16()
}

func (d *decoder) readUInt32() uint32 {
	if !d.need(4) {
		return 0
	}
	d.pos += 4
	return d.d.ReadUInt32()
}

func (d *decoder) readString(n int) string {
	if !d.need(n) || n == 0 {
		return ""
	}
	d.pos += n
	return d.d.ReadString(n)
}

// readBytes returns nil for n == 0.
func (d *decoder) readBytes(n int) []byte {
	if !d.need(n) || n == 0 {
		return nil
	}
	d.pos += n
	return d.d.ReadBytes(n)
}

func (d *decoder) skip(n int) {
	if !d.need(n) || n == 0 {
		return
	}
	d.pos += n
	d.d.Skip(n)
}

// pushLimit restricts subsequent reads to the next n bytes.
func (d *decoder) pushLimit(n int) {
	if !d.need(n) {
		n = d.remaining()
	}
	d.limits = append(d.limits, d.pos+n)
}

// popLimit ends the innermost item and checks that it was consumed exactly.
func (d *decoder) popLimit() {
	end := d.limits[len(d.limits)-1]
	d.limits = d.limits[:len(d.limits)-1]
	if d.err == nil && d.pos != end {
		d.failf(AbortReasonInvalidPDUParameterValue, "item length mismatch: %d bytes left unread", end-d.pos)
	}
}

func (d *decoder) finish() error {
	if d.err == nil && d.remaining() != 0 {
		d.failf(AbortReasonInvalidPDUParameterValue, "declared length exceeds content by %d bytes", d.remaining())
	}
	if d.err != nil {
		return d.err
	}
	return nil
}
