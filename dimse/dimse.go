package dimse

//go:generate ./generate_messages.py

// Implements message types defined in P3.7.
//
// http://dicom.nema.org/medical/dicom/current/output/pdf/part07.pdf

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/go-dicom/dicomio"
	"github.com/grailbio/go-dicom/dicomtag"
	"v.io/x/lib/vlog"
)

// MessageID identifies a request within an association. Responses and
// C-CANCEL requests carry it in MessageIDBeingRespondedTo.
type MessageID = uint16

// Message is the common interface for all C-XXX and N-XXX message types.
type Message interface {
	fmt.Stringer // Print human-readable description for debugging.
	Encode(*dicomio.Encoder)
	// GetMessageID returns MessageID for requests, and
	// MessageIDBeingRespondedTo for responses and C-CANCEL.
	GetMessageID() MessageID
	// CommandField returns the value of the (0000,0100) element.
	CommandField() uint16
	// GetStatus returns the response status. It is nil for requests.
	GetStatus() *Status
	HasData() bool // Do we expect data P_DATA_TF packets after the command packets?
}

// Values of the (0000,0100) CommandField element. P3.7 E.1.
const (
	CommandFieldCStoreRq        uint16 = 0x0001
	CommandFieldCStoreRsp       uint16 = 0x8001
	CommandFieldCGetRq          uint16 = 0x0010
	CommandFieldCGetRsp         uint16 = 0x8010
	CommandFieldCFindRq         uint16 = 0x0020
	CommandFieldCFindRsp        uint16 = 0x8020
	CommandFieldCMoveRq         uint16 = 0x0021
	CommandFieldCMoveRsp        uint16 = 0x8021
	CommandFieldCEchoRq         uint16 = 0x0030
	CommandFieldCEchoRsp        uint16 = 0x8030
	CommandFieldNEventReportRq  uint16 = 0x0100
	CommandFieldNEventReportRsp uint16 = 0x8100
	CommandFieldNGetRq          uint16 = 0x0110
	CommandFieldNGetRsp         uint16 = 0x8110
	CommandFieldNSetRq          uint16 = 0x0120
	CommandFieldNSetRsp         uint16 = 0x8120
	CommandFieldNActionRq       uint16 = 0x0130
	CommandFieldNActionRsp      uint16 = 0x8130
	CommandFieldNCreateRq       uint16 = 0x0140
	CommandFieldNCreateRsp      uint16 = 0x8140
	CommandFieldNDeleteRq       uint16 = 0x0150
	CommandFieldNDeleteRsp      uint16 = 0x8150
	CommandFieldCCancelRq       uint16 = 0x0FFF
)

// CommandDataSetTypeNull indicates that the DIMSE message has no data payload,
// when set in the CommandDataSetType element. Any other value indicates the
// existence of a payload.
const CommandDataSetTypeNull uint16 = 0x101

// CommandDataSetTypeNonNull indicates that the DIMSE message has a data
// payload.
const CommandDataSetTypeNonNull uint16 = 1

// Priority values. P3.7 9.3.1.1.
const (
	PriorityMedium uint16 = 0
	PriorityHigh   uint16 = 1
	PriorityLow    uint16 = 2
)

// Command set elements. All belong to group 0000 and are encoded in
// implicit VR little endian. P3.7 E.1.
var (
	tagCommandGroupLength                   = dicomtag.Tag{Group: 0x0000, Element: 0x0000}
	tagAffectedSOPClassUID                  = dicomtag.Tag{Group: 0x0000, Element: 0x0002}
	tagRequestedSOPClassUID                 = dicomtag.Tag{Group: 0x0000, Element: 0x0003}
	tagCommandField                         = dicomtag.Tag{Group: 0x0000, Element: 0x0100}
	tagMessageID                            = dicomtag.Tag{Group: 0x0000, Element: 0x0110}
	tagMessageIDBeingRespondedTo            = dicomtag.Tag{Group: 0x0000, Element: 0x0120}
	tagMoveDestination                      = dicomtag.Tag{Group: 0x0000, Element: 0x0600}
	tagPriority                             = dicomtag.Tag{Group: 0x0000, Element: 0x0700}
	tagCommandDataSetType                   = dicomtag.Tag{Group: 0x0000, Element: 0x0800}
	tagStatus                               = dicomtag.Tag{Group: 0x0000, Element: 0x0900}
	tagErrorComment                         = dicomtag.Tag{Group: 0x0000, Element: 0x0902}
	tagAffectedSOPInstanceUID               = dicomtag.Tag{Group: 0x0000, Element: 0x1000}
	tagRequestedSOPInstanceUID              = dicomtag.Tag{Group: 0x0000, Element: 0x1001}
	tagEventTypeID                          = dicomtag.Tag{Group: 0x0000, Element: 0x1002}
	tagAttributeIdentifierList              = dicomtag.Tag{Group: 0x0000, Element: 0x1005}
	tagActionTypeID                         = dicomtag.Tag{Group: 0x0000, Element: 0x1008}
	tagNumberOfRemainingSuboperations       = dicomtag.Tag{Group: 0x0000, Element: 0x1020}
	tagNumberOfCompletedSuboperations       = dicomtag.Tag{Group: 0x0000, Element: 0x1021}
	tagNumberOfFailedSuboperations          = dicomtag.Tag{Group: 0x0000, Element: 0x1022}
	tagNumberOfWarningSuboperations         = dicomtag.Tag{Group: 0x0000, Element: 0x1023}
	tagMoveOriginatorApplicationEntityTitle = dicomtag.Tag{Group: 0x0000, Element: 0x1030}
	tagMoveOriginatorMessageID              = dicomtag.Tag{Group: 0x0000, Element: 0x1031}
)

func tagString(t dicomtag.Tag) string {
	return fmt.Sprintf("(%04x,%04x)", t.Group, t.Element)
}

// Field is one raw command set element. Elements that a message type does not
// know about are kept in its Extra list and written back on Encode.
type Field struct {
	Tag   dicomtag.Tag
	Value []byte
}

func (f Field) String() string {
	return fmt.Sprintf("%s:%q", tagString(f.Tag), f.Value)
}

// commandEncoder collects the elements of one command set. Elements are
// sorted by tag and prefixed by CommandGroupLength when written.
type commandEncoder struct {
	fields []Field
}

func newCommandEncoder(commandField uint16) *commandEncoder {
	c := &commandEncoder{}
	c.addUInt16(tagCommandField, commandField)
	return c
}

func (c *commandEncoder) addUInt16(tag dicomtag.Tag, v uint16) {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	c.fields = append(c.fields, Field{Tag: tag, Value: b})
}

// addUID adds a UI element, padded with NUL to an even length. Empty values
// are omitted.
func (c *commandEncoder) addUID(tag dicomtag.Tag, v string) {
	if v == "" {
		return
	}
	if len(v)%2 == 1 {
		v += "\x00"
	}
	c.fields = append(c.fields, Field{Tag: tag, Value: []byte(v)})
}

// addString adds an AE or LO element, padded with a space to an even length.
// Empty values are omitted.
func (c *commandEncoder) addString(tag dicomtag.Tag, v string) {
	if v == "" {
		return
	}
	if len(v)%2 == 1 {
		v += " "
	}
	c.fields = append(c.fields, Field{Tag: tag, Value: []byte(v)})
}

// addTags adds an AT element with multiple values.
func (c *commandEncoder) addTags(tag dicomtag.Tag, tags []dicomtag.Tag) {
	if len(tags) == 0 {
		return
	}
	b := make([]byte, 4*len(tags))
	for i, t := range tags {
		binary.LittleEndian.PutUint16(b[4*i:], t.Group)
		binary.LittleEndian.PutUint16(b[4*i+2:], t.Element)
	}
	c.fields = append(c.fields, Field{Tag: tag, Value: b})
}

func (c *commandEncoder) addStatus(s Status) {
	c.addUInt16(tagStatus, uint16(s.Status))
	c.addString(tagErrorComment, s.ErrorComment)
}

func (c *commandEncoder) write(e *dicomio.Encoder, extra []Field) {
	fields := append(c.fields, extra...)
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].Tag.Group != fields[j].Tag.Group {
			return fields[i].Tag.Group < fields[j].Tag.Group
		}
		return fields[i].Tag.Element < fields[j].Tag.Element
	})
	length := 0
	for _, f := range fields {
		length += 8 + len(f.Value)
	}
	writeField(e, tagCommandGroupLength, 4)
	e.WriteUInt32(uint32(length))
	for _, f := range fields {
		writeField(e, f.Tag, len(f.Value))
		e.WriteBytes(f.Value)
	}
}

func writeField(e *dicomio.Encoder, tag dicomtag.Tag, length int) {
	e.WriteUInt16(tag.Group)
	e.WriteUInt16(tag.Element)
	e.WriteUInt32(uint32(length))
}

// EncodeMessage serializes the command set of "v". DIMSE messages are always
// encoded Implicit+LE. See P3.7 6.3.1.
func EncodeMessage(v Message) ([]byte, error) {
	e := dicomio.NewBytesEncoder(binary.LittleEndian, dicomio.ImplicitVR)
	v.Encode(e)
	if err := e.Error(); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// parseCommandSet splits an implicit VR LE command set into raw elements. The
// CommandGroupLength element is verified and dropped.
func parseCommandSet(data []byte) ([]Field, error) {
	d := dicomio.NewBytesDecoder(data, binary.LittleEndian, dicomio.ImplicitVR)
	var fields []Field
	groupLength := -1
	pos := 0
	for pos < len(data) {
		if len(data)-pos < 8 {
			return nil, fmt.Errorf("dimse: truncated element header at offset %d", pos)
		}
		tag := dicomtag.Tag{Group: d.ReadUInt16(), Element: d.ReadUInt16()}
		length := d.ReadUInt32()
		pos += 8
		if uint64(length) > uint64(len(data)-pos) {
			return nil, fmt.Errorf("dimse: element %s at offset %d: length %d exceeds the command set", tagString(tag), pos-8, length)
		}
		if tag.Group != 0 {
			return nil, fmt.Errorf("dimse: element %s at offset %d is not a command element", tagString(tag), pos-8)
		}
		var value []byte
		if length > 0 {
			value = d.ReadBytes(int(length))
		}
		pos += int(length)
		if tag == tagCommandGroupLength {
			if length != 4 {
				return nil, fmt.Errorf("dimse: CommandGroupLength has length %d", length)
			}
			groupLength = int(binary.LittleEndian.Uint32(value))
			if groupLength != len(data)-pos {
				return nil, fmt.Errorf("dimse: CommandGroupLength is %d, but %d bytes follow", groupLength, len(data)-pos)
			}
			continue
		}
		fields = append(fields, Field{Tag: tag, Value: value})
	}
	if err := d.Error(); err != nil {
		return nil, err
	}
	if groupLength < 0 {
		vlog.VI(1).Infof("dimse: command set lacks CommandGroupLength")
	}
	return fields, nil
}

// Helper class for extracting values from a list of raw command elements.
type messageDecoder struct {
	fields []Field
	parsed []bool // true if this element was parsed into a message field.
	err    error
}

type isOptionalElement int

const (
	requiredElement isOptionalElement = iota
	optionalElement
)

func (d *messageDecoder) setError(err error) {
	if d.err == nil {
		d.err = err
	}
}

// Find an element with the given tag. If optional==optionalElement, returns
// nil if not found. If optional==requiredElement, sets d.err and return nil if
// not found.
func (d *messageDecoder) findElement(tag dicomtag.Tag, optional isOptionalElement) *Field {
	for i := range d.fields {
		if d.fields[i].Tag == tag {
			d.parsed[i] = true
			return &d.fields[i]
		}
	}
	if optional == requiredElement {
		d.setError(fmt.Errorf("dimse: element %s not found during DIMSE decoding", tagString(tag)))
	}
	return nil
}

// Return the list of elements that did not match any of the prior getXXX calls.
func (d *messageDecoder) unparsedElements() (unparsed []Field) {
	for i, parsed := range d.parsed {
		if !parsed {
			unparsed = append(unparsed, d.fields[i])
		}
	}
	return unparsed
}

func (d *messageDecoder) getString(tag dicomtag.Tag, optional isOptionalElement) string {
	f := d.findElement(tag, optional)
	if f == nil {
		return ""
	}
	return strings.TrimRight(string(f.Value), " \x00")
}

func (d *messageDecoder) getUInt16(tag dicomtag.Tag, optional isOptionalElement) uint16 {
	f := d.findElement(tag, optional)
	if f == nil {
		return 0
	}
	if len(f.Value) != 2 {
		d.setError(fmt.Errorf("dimse: element %s: expect 2 bytes, found %d", tagString(tag), len(f.Value)))
		return 0
	}
	return binary.LittleEndian.Uint16(f.Value)
}

func (d *messageDecoder) getTags(tag dicomtag.Tag, optional isOptionalElement) []dicomtag.Tag {
	f := d.findElement(tag, optional)
	if f == nil {
		return nil
	}
	if len(f.Value)%4 != 0 {
		d.setError(fmt.Errorf("dimse: element %s: length %d is not a multiple of 4", tagString(tag), len(f.Value)))
		return nil
	}
	var tags []dicomtag.Tag
	for i := 0; i < len(f.Value); i += 4 {
		tags = append(tags, dicomtag.Tag{
			Group:   binary.LittleEndian.Uint16(f.Value[i:]),
			Element: binary.LittleEndian.Uint16(f.Value[i+2:]),
		})
	}
	return tags
}

func (d *messageDecoder) getStatus() (s Status) {
	s.Status = StatusCode(d.getUInt16(tagStatus, requiredElement))
	s.ErrorComment = d.getString(tagErrorComment, optionalElement)
	return s
}

// ReadMessage decodes a complete command set.
func ReadMessage(data []byte) (Message, error) {
	fields, err := parseCommandSet(data)
	if err != nil {
		return nil, err
	}
	d := &messageDecoder{fields: fields, parsed: make([]bool, len(fields))}
	commandField := d.getUInt16(tagCommandField, requiredElement)
	if d.err != nil {
		return nil, d.err
	}
	v := decodeMessageForType(d, commandField)
	if d.err != nil {
		return nil, d.err
	}
	return v, nil
}
