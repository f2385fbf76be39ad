// Package pdu implements the Upper Layer PDUs defined in P3.8. It sits below
// the DIMSE layer.
//
// http://dicom.nema.org/medical/dicom/current/output/pdf/part08.pdf
package pdu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/go-dicom/dicomio"
)

// PDU is the interface for DUL messages like A-ASSOCIATE-AC, P-DATA-TF.
type PDU interface {
	fmt.Stringer // Print human-readable description for debugging.
	// Encode the PDU payload. The "payload" here excludes the first 6 bytes
	// that are common to all PDU types - they are encoded in EncodePDU separately.
	WritePayload(*dicomio.Encoder)
}

// Type is the possible Type field for PDUs.
type Type byte

const (
	TypeAAssociateRq Type = 1
	TypeAAssociateAc Type = 2
	TypeAAssociateRj Type = 3
	TypePDataTf      Type = 4
	TypeAReleaseRq   Type = 5
	TypeAReleaseRp   Type = 6
	TypeAAbort       Type = 7
)

func (t Type) String() string {
	switch t {
	case TypeAAssociateRq:
		return "A-ASSOCIATE-RQ"
	case TypeAAssociateAc:
		return "A-ASSOCIATE-AC"
	case TypeAAssociateRj:
		return "A-ASSOCIATE-RJ"
	case TypePDataTf:
		return "P-DATA-TF"
	case TypeAReleaseRq:
		return "A-RELEASE-RQ"
	case TypeAReleaseRp:
		return "A-RELEASE-RP"
	case TypeAAbort:
		return "A-ABORT"
	default:
		return fmt.Sprintf("pdutype(%d)", byte(t))
	}
}

// HeaderSize is the size of the header common to all PDUs: type, reserved
// byte, and the 4-byte big-endian length of the rest.
const HeaderSize = 6

// MaxPDUSizeCeiling bounds the size of any PDU that ReadPDU will allocate for,
// regardless of the negotiated maximum.
const MaxPDUSizeCeiling = 64 << 20

// CurrentProtocolVersion is the only protocol version defined by P3.8.
const CurrentProtocolVersion uint16 = 1

// EncodePDU serializes "pdu" into a byte sequence, including the 6-byte header.
func EncodePDU(pdu PDU) ([]byte, error) {
	var pduType Type
	switch n := pdu.(type) {
	case *AAssociate:
		pduType = n.Type
	case *AAssociateRj:
		pduType = TypeAAssociateRj
	case *PDataTf:
		pduType = TypePDataTf
	case *AReleaseRq:
		pduType = TypeAReleaseRq
	case *AReleaseRp:
		pduType = TypeAReleaseRp
	case *AAbort:
		pduType = TypeAAbort
	default:
		return nil, fmt.Errorf("pdu.EncodePDU: unknown PDU %v", pdu)
	}
	e := dicomio.NewBytesEncoder(binary.BigEndian, dicomio.UnknownVR)
	pdu.WritePayload(e)
	if err := e.Error(); err != nil {
		return nil, err
	}
	payload := e.Bytes()
	var header [HeaderSize]byte
	header[0] = byte(pduType)
	header[1] = 0 // Reserved.
	binary.BigEndian.PutUint32(header[2:6], uint32(len(payload)))
	return append(header[:], payload...), nil
}

// ReadPDU reads one PDU from "in". maxPDUSize is the maximum P-DATA-TF length
// this side advertised; a larger P-DATA-TF is reported as an
// *InvalidPDUError without reading its body. maxPDUSize <= 0 means no limit
// other than MaxPDUSizeCeiling. An io.EOF before the first header byte is
// returned as is.
func ReadPDU(in io.Reader, maxPDUSize int) (PDU, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(in, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[2:6])
	if length > MaxPDUSizeCeiling {
		return nil, &InvalidPDUError{Offset: 2, Reason: AbortReasonInvalidPDUParameterValue,
			Msg: fmt.Sprintf("PDU length %d exceeds the limit of %d", length, MaxPDUSizeCeiling)}
	}
	if Type(header[0]) == TypePDataTf && maxPDUSize > 0 && length > uint32(maxPDUSize) {
		return nil, &InvalidPDUError{Offset: 2, Reason: AbortReasonUnrecognizedPDU,
			Msg: fmt.Sprintf("P-DATA-TF length %d exceeds the negotiated maximum %d", length, maxPDUSize)}
	}
	buf := make([]byte, HeaderSize+int(length))
	copy(buf, header[:])
	if _, err := io.ReadFull(in, buf[HeaderSize:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return DecodePDU(buf)
}

// DecodePDU decodes one complete PDU, including its 6-byte header. The
// declared length must match len(data) exactly.
func DecodePDU(data []byte) (PDU, error) {
	if len(data) < HeaderSize {
		return nil, &InvalidPDUError{Offset: len(data), Reason: AbortReasonInvalidPDUParameterValue,
			Msg: fmt.Sprintf("PDU too short: %d bytes", len(data))}
	}
	pduType := Type(data[0])
	length := binary.BigEndian.Uint32(data[2:6])
	if uint64(length) != uint64(len(data)-HeaderSize) {
		return nil, &InvalidPDUError{Offset: 2, Reason: AbortReasonInvalidPDUParameterValue,
			Msg: fmt.Sprintf("declared length %d, but found %d bytes", length, len(data)-HeaderSize)}
	}
	d := newDecoder(data[HeaderSize:], HeaderSize)
	var pdu PDU
	switch pduType {
	case TypeAAssociateRq, TypeAAssociateAc:
		pdu = decodeAAssociate(d, pduType)
	case TypeAAssociateRj:
		pdu = decodeAAssociateRj(d)
	case TypeAAbort:
		pdu = decodeAAbort(d)
	case TypePDataTf:
		pdu = decodePDataTf(d)
	case TypeAReleaseRq:
		d.skip(4)
		pdu = &AReleaseRq{}
	case TypeAReleaseRp:
		d.skip(4)
		pdu = &AReleaseRp{}
	default:
		return nil, &InvalidPDUError{Offset: 0, Reason: AbortReasonUnrecognizedPDU,
			Msg: fmt.Sprintf("unknown PDU type %d", byte(pduType))}
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return pdu, nil
}

// AReleaseRq is defined in P3.8 9.3.6.
type AReleaseRq struct{}

func (pdu *AReleaseRq) WritePayload(e *dicomio.Encoder) {
	e.WriteZeros(4)
}

func (pdu *AReleaseRq) String() string {
	return "A_RELEASE_RQ"
}

// AReleaseRp is defined in P3.8 9.3.7.
type AReleaseRp struct{}

func (pdu *AReleaseRp) WritePayload(e *dicomio.Encoder) {
	e.WriteZeros(4)
}

func (pdu *AReleaseRp) String() string {
	return "A_RELEASE_RP"
}

// AAssociate defines A_ASSOCIATE_{RQ,AC}. P3.8 9.3.2 and 9.3.3
type AAssociate struct {
	Type            Type // One of {TypeAAssociateRq,TypeAAssociateAc}
	ProtocolVersion uint16
	// Reserved uint16
	CalledAETitle  string // For .._AC, the value is copied from A_ASSOCIATE_RQ
	CallingAETitle string // For .._AC, the value is copied from A_ASSOCIATE_RQ
	Items          []SubItem
}

func decodeAAssociate(d *decoder, pduType Type) *AAssociate {
	pdu := &AAssociate{Type: pduType}
	pdu.ProtocolVersion = d.readUInt16()
	d.skip(2) // Reserved
	calledPos := d.pos
	pdu.CalledAETitle = strings.Trim(d.readString(16), " \x00")
	pdu.CallingAETitle = strings.Trim(d.readString(16), " \x00")
	d.skip(8 * 4)
	scope := scopeAssociateRQ
	if pduType == TypeAAssociateAc {
		scope = scopeAssociateAC
	}
	seen := map[byte]bool{}
	for d.ok() && d.remaining() > 0 {
		itemPos := d.pos
		item := decodeSubItem(d, scope)
		if pc, ok := item.(*PresentationContextItem); ok && d.ok() {
			if seen[pc.ContextID] {
				d.pos = itemPos
				d.failf(AbortReasonInvalidPDUParameterValue, "duplicate presentation context ID %d", pc.ContextID)
			}
			seen[pc.ContextID] = true
		}
		if item != nil {
			pdu.Items = append(pdu.Items, item)
		}
	}
	if d.ok() && (pdu.CalledAETitle == "" || pdu.CallingAETitle == "") {
		d.pos = calledPos
		d.failf(AbortReasonInvalidPDUParameterValue, "A_ASSOCIATE.{Called,Calling}AETitle must not be empty")
	}
	return pdu
}

func (pdu *AAssociate) WritePayload(e *dicomio.Encoder) {
	if pdu.Type != TypeAAssociateRq && pdu.Type != TypeAAssociateAc {
		e.SetError(fmt.Errorf("A_ASSOCIATE: invalid type %v", pdu.Type))
		return
	}
	for _, ae := range []string{pdu.CalledAETitle, pdu.CallingAETitle} {
		if ae == "" || len(ae) > 16 {
			e.SetError(fmt.Errorf("A_ASSOCIATE: AE title %q must be 1-16 characters", ae))
			return
		}
	}
	e.WriteUInt16(pdu.ProtocolVersion)
	e.WriteZeros(2) // Reserved
	e.WriteString(fillString(pdu.CalledAETitle, 16))
	e.WriteString(fillString(pdu.CallingAETitle, 16))
	e.WriteZeros(8 * 4)
	for _, item := range pdu.Items {
		item.Write(e)
	}
}

func (pdu *AAssociate) String() string {
	name := "AC"
	if pdu.Type == TypeAAssociateRq {
		name = "RQ"
	}
	return fmt.Sprintf("A_ASSOCIATE_%s{version:%v called:'%v' calling:'%v' items:%s}",
		name, pdu.ProtocolVersion,
		pdu.CalledAETitle, pdu.CallingAETitle, subItemListString(pdu.Items))
}

// RejectResultType is the possible value for AAssociateRj.Result.
type RejectResultType byte

const (
	ResultRejectedPermanent RejectResultType = 1
	ResultRejectedTransient RejectResultType = 2
)

// SourceType is the possible value for AAssociateRj.Source.
type SourceType byte

const (
	SourceULServiceUser                 SourceType = 1
	SourceULServiceProviderACSE         SourceType = 2
	SourceULServiceProviderPresentation SourceType = 3
)

// RejectReasonType is the possible value for AAssociateRj.Reason. The meaning
// depends on Source.
type RejectReasonType byte

const (
	// Source = SourceULServiceUser or SourceULServiceProviderACSE.
	ReasonNone RejectReasonType = 1
	// Source = SourceULServiceUser.
	ReasonApplicationContextNameNotSupported RejectReasonType = 2
	ReasonCallingAETitleNotRecognized        RejectReasonType = 3
	ReasonCalledAETitleNotRecognized         RejectReasonType = 7
	// Source = SourceULServiceProviderACSE.
	ReasonProtocolVersionNotSupported RejectReasonType = 2
	// Source = SourceULServiceProviderPresentation.
	ReasonTemporaryCongestion RejectReasonType = 1
	ReasonLocalLimitExceeded  RejectReasonType = 2
)

// AAssociateRj is defined in P3.8 9.3.4.
type AAssociateRj struct {
	Result RejectResultType
	Source SourceType
	Reason RejectReasonType
}

func decodeAAssociateRj(d *decoder) *AAssociateRj {
	pdu := &AAssociateRj{}
	d.skip(1) // reserved
	pdu.Result = RejectResultType(d.readByte())
	pdu.Source = SourceType(d.readByte())
	pdu.Reason = RejectReasonType(d.readByte())
	return pdu
}

func (pdu *AAssociateRj) WritePayload(e *dicomio.Encoder) {
	e.WriteZeros(1)
	e.WriteByte(byte(pdu.Result))
	e.WriteByte(byte(pdu.Source))
	e.WriteByte(byte(pdu.Reason))
}

func (pdu *AAssociateRj) String() string {
	return fmt.Sprintf("A_ASSOCIATE_RJ{result:%d source:%d reason:%d (%s)}",
		pdu.Result, pdu.Source, pdu.Reason, pdu.Description())
}

// Description returns a human-readable reason for the rejection.
func (pdu *AAssociateRj) Description() string {
	switch pdu.Source {
	case SourceULServiceUser:
		switch pdu.Reason {
		case ReasonNone:
			return "no reason given"
		case ReasonApplicationContextNameNotSupported:
			return "application context name not supported"
		case ReasonCallingAETitleNotRecognized:
			return "calling AE title not recognized"
		case ReasonCalledAETitleNotRecognized:
			return "called AE title not recognized"
		}
	case SourceULServiceProviderACSE:
		switch pdu.Reason {
		case ReasonNone:
			return "no reason given"
		case ReasonProtocolVersionNotSupported:
			return "protocol version not supported"
		}
	case SourceULServiceProviderPresentation:
		switch pdu.Reason {
		case ReasonTemporaryCongestion:
			return "temporary congestion"
		case ReasonLocalLimitExceeded:
			return "local limit exceeded"
		}
	}
	return "reserved"
}

// AbortSource is the possible value for AAbort.Source.
type AbortSource byte

const (
	AbortSourceServiceUser     AbortSource = 0
	AbortSourceReserved        AbortSource = 1
	AbortSourceServiceProvider AbortSource = 2
)

// AbortReason is the possible value for AAbort.Reason. It is meaningful only
// when Source is AbortSourceServiceProvider.
type AbortReason byte

const (
	AbortReasonNotSpecified             AbortReason = 0
	AbortReasonUnrecognizedPDU          AbortReason = 1
	AbortReasonUnexpectedPDU            AbortReason = 2
	AbortReasonUnrecognizedPDUParameter AbortReason = 4
	AbortReasonUnexpectedPDUParameter   AbortReason = 5
	AbortReasonInvalidPDUParameterValue AbortReason = 6
)

func (r AbortReason) String() string {
	switch r {
	case AbortReasonNotSpecified:
		return "reason not specified"
	case AbortReasonUnrecognizedPDU:
		return "unrecognized PDU"
	case AbortReasonUnexpectedPDU:
		return "unexpected PDU"
	case AbortReasonUnrecognizedPDUParameter:
		return "unrecognized PDU parameter"
	case AbortReasonUnexpectedPDUParameter:
		return "unexpected PDU parameter"
	case AbortReasonInvalidPDUParameterValue:
		return "invalid PDU parameter value"
	default:
		return fmt.Sprintf("abortreason(%d)", byte(r))
	}
}

// AAbort is defined in P3.8 9.3.8.
type AAbort struct {
	Source AbortSource
	Reason AbortReason
}

func decodeAAbort(d *decoder) *AAbort {
	pdu := &AAbort{}
	d.skip(2)
	pdu.Source = AbortSource(d.readByte())
	pdu.Reason = AbortReason(d.readByte())
	return pdu
}

func (pdu *AAbort) WritePayload(e *dicomio.Encoder) {
	e.WriteZeros(2)
	e.WriteByte(byte(pdu.Source))
	e.WriteByte(byte(pdu.Reason))
}

func (pdu *AAbort) String() string {
	return fmt.Sprintf("A_ABORT{source:%d reason:%v}", pdu.Source, pdu.Reason)
}

// PDataTf is defined in P3.8 9.3.5. It carries one or more PDV items.
type PDataTf struct {
	Items []PresentationDataValueItem
}

func decodePDataTf(d *decoder) *PDataTf {
	pdu := &PDataTf{}
	for d.ok() && d.remaining() > 0 {
		item := decodePresentationDataValueItem(d)
		if d.ok() {
			pdu.Items = append(pdu.Items, item)
		}
	}
	if d.ok() && len(pdu.Items) == 0 {
		d.failf(AbortReasonInvalidPDUParameterValue, "P_DATA_TF has no PDV item")
	}
	return pdu
}

func (pdu *PDataTf) WritePayload(e *dicomio.Encoder) {
	for _, item := range pdu.Items {
		item.Write(e)
	}
}

func (pdu *PDataTf) String() string {
	buf := bytes.Buffer{}
	buf.WriteString("P_DATA_TF{items: [")
	for i, item := range pdu.Items {
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(item.String())
	}
	buf.WriteString("]}")
	return buf.String()
}

// fillString pads the string with " " up to the given length.
func fillString(v string, length int) string {
	if len(v) > length {
		return v[:length]
	}
	return v + strings.Repeat(" ", length-len(v))
}
