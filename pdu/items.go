package pdu

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/grailbio/go-dicom/dicomio"
)

// SubItem is the interface for DUL items, such as ApplicationContextItem and
// TransferSyntaxSubItem.
type SubItem interface {
	fmt.Stringer            // Print human-readable description for debugging.
	Write(*dicomio.Encoder) // Serialize the item, including its 4-byte header.
}

// Possible Type field values for SubItem.
const (
	ItemTypeApplicationContext                = 0x10
	ItemTypePresentationContextRequest        = 0x20
	ItemTypePresentationContextResponse       = 0x21
	ItemTypeAbstractSyntax                    = 0x30
	ItemTypeTransferSyntax                    = 0x40
	ItemTypeUserInformation                   = 0x50
	ItemTypeUserInformationMaximumLength      = 0x51
	ItemTypeImplementationClassUID            = 0x52
	ItemTypeAsynchronousOperationsWindow      = 0x53
	ItemTypeRoleSelection                     = 0x54
	ItemTypeImplementationVersionName         = 0x55
	ItemTypeSOPClassExtendedNegotiation       = 0x56
	ItemTypeSOPClassCommonExtendedNegotiation = 0x57
	ItemTypeUserIdentityRequest               = 0x58
	ItemTypeUserIdentityResponse              = 0x59
)

// itemScope says where an item appears. It determines which item types are
// legal.
type itemScope int

const (
	scopeAssociateRQ itemScope = iota
	scopeAssociateAC
	scopePresentationContext
	scopeUserInformation
)

func decodeSubItem(d *decoder, scope itemScope) SubItem {
	start := d.pos
	itemType := d.readByte()
	d.skip(1)
	length := int(d.readUInt16())
	if !d.ok() {
		return nil
	}
	d.pushLimit(length)
	var item SubItem
	switch {
	case scope == scopeAssociateRQ || scope == scopeAssociateAC:
		switch {
		case itemType == ItemTypeApplicationContext:
			item = &ApplicationContextItem{Name: d.readString(length)}
		case itemType == ItemTypePresentationContextRequest && scope == scopeAssociateRQ,
			itemType == ItemTypePresentationContextResponse && scope == scopeAssociateAC:
			item = decodePresentationContextItem(d, itemType)
		case itemType == ItemTypeUserInformation:
			item = decodeUserInformationItem(d)
		}
	case scope == scopePresentationContext:
		switch itemType {
		case ItemTypeAbstractSyntax:
			item = &AbstractSyntaxSubItem{Name: d.readString(length)}
		case ItemTypeTransferSyntax:
			item = &TransferSyntaxSubItem{Name: d.readString(length)}
		}
	case scope == scopeUserInformation:
		item = decodeUserInformationSubItem(d, itemType, length)
	}
	if item == nil && d.ok() {
		d.pos = start
		d.failf(AbortReasonUnrecognizedPDUParameter, "unexpected item type 0x%x", itemType)
	}
	d.popLimit()
	return item
}

func decodeUserInformationSubItem(d *decoder, itemType byte, length int) SubItem {
	switch itemType {
	case ItemTypeUserInformationMaximumLength:
		if length != 4 {
			d.failf(AbortReasonInvalidPDUParameterValue, "maximum length item must be 4 bytes, but found %dB", length)
			return nil
		}
		return &UserInformationMaximumLengthItem{MaximumLengthReceived: d.readUInt32()}
	case ItemTypeImplementationClassUID:
		return &ImplementationClassUIDSubItem{Name: d.readString(length)}
	case ItemTypeImplementationVersionName:
		return &ImplementationVersionNameSubItem{Name: d.readString(length)}
	case ItemTypeAsynchronousOperationsWindow:
		return &AsynchronousOperationsWindowSubItem{
			MaxOpsInvoked:   d.readUInt16(),
			MaxOpsPerformed: d.readUInt16(),
		}
	case ItemTypeRoleSelection:
		v := &RoleSelectionSubItem{}
		v.SOPClassUID = d.readString(int(d.readUInt16()))
		v.SCURole = d.readByte() != 0
		v.SCPRole = d.readByte() != 0
		return v
	case ItemTypeSOPClassExtendedNegotiation:
		v := &SOPClassExtendedNegotiationSubItem{}
		v.SOPClassUID = d.readString(int(d.readUInt16()))
		v.ServiceClassApplicationInformation = d.readBytes(d.remaining())
		return v
	case ItemTypeUserIdentityRequest:
		v := &UserIdentitySubItem{}
		v.Type = UserIdentityType(d.readByte())
		v.PositiveResponseRequested = d.readByte() != 0
		v.PrimaryField = d.readBytes(int(d.readUInt16()))
		v.SecondaryField = d.readBytes(int(d.readUInt16()))
		return v
	case ItemTypeUserIdentityResponse:
		return &UserIdentityResponseSubItem{ServerResponse: d.readBytes(int(d.readUInt16()))}
	default:
		// Unknown user information items must be ignored by the receiver
		// (P3.7 D.3.3), so keep them opaque.
		return &SubItemUnsupported{Type: itemType, Data: d.readBytes(length)}
	}
}

func encodeSubItemHeader(e *dicomio.Encoder, itemType byte, length int) {
	if length > 0xffff {
		e.SetError(fmt.Errorf("item 0x%x too long: %d bytes", itemType, length))
		return
	}
	e.WriteByte(itemType)
	e.WriteZeros(1)
	e.WriteUInt16(uint16(length))
}

// encodeItemBody serializes items into a standalone buffer, so that the
// enclosing item can compute its length.
func encodeItemBody(e *dicomio.Encoder, items []SubItem) ([]byte, bool) {
	itemEncoder := dicomio.NewBytesEncoder(binary.BigEndian, dicomio.UnknownVR)
	for _, s := range items {
		s.Write(itemEncoder)
	}
	if err := itemEncoder.Error(); err != nil {
		e.SetError(err)
		return nil, false
	}
	return itemEncoder.Bytes(), true
}

// P3.8 9.3.2.3
type UserInformationItem struct {
	Items []SubItem // P3.8, Annex D.
}

func (v *UserInformationItem) Write(e *dicomio.Encoder) {
	itemBytes, ok := encodeItemBody(e, v.Items)
	if !ok {
		return
	}
	encodeSubItemHeader(e, ItemTypeUserInformation, len(itemBytes))
	e.WriteBytes(itemBytes)
}

func decodeUserInformationItem(d *decoder) *UserInformationItem {
	v := &UserInformationItem{}
	for d.ok() && d.remaining() > 0 {
		if item := decodeSubItem(d, scopeUserInformation); item != nil {
			v.Items = append(v.Items, item)
		}
	}
	return v
}

func (v *UserInformationItem) String() string {
	return fmt.Sprintf("userinformationitem{items: %s}", subItemListString(v.Items))
}

// P3.8 D.1
type UserInformationMaximumLengthItem struct {
	// Zero means no limit.
	MaximumLengthReceived uint32
}

func (v *UserInformationMaximumLengthItem) Write(e *dicomio.Encoder) {
	encodeSubItemHeader(e, ItemTypeUserInformationMaximumLength, 4)
	e.WriteUInt32(v.MaximumLengthReceived)
}

func (v *UserInformationMaximumLengthItem) String() string {
	return fmt.Sprintf("userinformationmaximumlengthitem{%d}", v.MaximumLengthReceived)
}

// PS3.7 Annex D.3.3.2.1
type ImplementationClassUIDSubItem subItemWithName

func (v *ImplementationClassUIDSubItem) Write(e *dicomio.Encoder) {
	encodeSubItemWithName(e, ItemTypeImplementationClassUID, v.Name)
}

func (v *ImplementationClassUIDSubItem) String() string {
	return fmt.Sprintf("implementationclassuid{name: %q}", v.Name)
}

// PS3.7 Annex D.3.3.3.1
type AsynchronousOperationsWindowSubItem struct {
	MaxOpsInvoked   uint16
	MaxOpsPerformed uint16
}

func (v *AsynchronousOperationsWindowSubItem) Write(e *dicomio.Encoder) {
	encodeSubItemHeader(e, ItemTypeAsynchronousOperationsWindow, 2*2)
	e.WriteUInt16(v.MaxOpsInvoked)
	e.WriteUInt16(v.MaxOpsPerformed)
}

func (v *AsynchronousOperationsWindowSubItem) String() string {
	return fmt.Sprintf("asynchronousopswindow{invoked: %d performed: %d}",
		v.MaxOpsInvoked, v.MaxOpsPerformed)
}

// RoleSelectionSubItem is the SCP/SCU Role Selection item, PS3.7 Annex
// D.3.3.4. In an A-ASSOCIATE-RQ, SCURole and SCPRole are the roles the
// requestor proposes for itself. In an A-ASSOCIATE-AC they are the roles the
// acceptor agreed to, from the requestor's point of view.
type RoleSelectionSubItem struct {
	SOPClassUID string
	SCURole     bool
	SCPRole     bool
}

func (v *RoleSelectionSubItem) Write(e *dicomio.Encoder) {
	encodeSubItemHeader(e, ItemTypeRoleSelection, 2+len(v.SOPClassUID)+2)
	e.WriteUInt16(uint16(len(v.SOPClassUID)))
	e.WriteString(v.SOPClassUID)
	e.WriteByte(boolByte(v.SCURole))
	e.WriteByte(boolByte(v.SCPRole))
}

func (v *RoleSelectionSubItem) String() string {
	return fmt.Sprintf("roleselection{sopclass: %q scu: %v scp: %v}", v.SOPClassUID, v.SCURole, v.SCPRole)
}

// PS3.7 Annex D.3.3.2.3
type ImplementationVersionNameSubItem subItemWithName

func (v *ImplementationVersionNameSubItem) Write(e *dicomio.Encoder) {
	encodeSubItemWithName(e, ItemTypeImplementationVersionName, v.Name)
}

func (v *ImplementationVersionNameSubItem) String() string {
	return fmt.Sprintf("implementationversionname{name: %q}", v.Name)
}

// SOPClassExtendedNegotiationSubItem is defined in PS3.7 Annex D.3.3.5. The
// application information is service-class specific and is passed through
// as is.
type SOPClassExtendedNegotiationSubItem struct {
	SOPClassUID                        string
	ServiceClassApplicationInformation []byte
}

func (v *SOPClassExtendedNegotiationSubItem) Write(e *dicomio.Encoder) {
	encodeSubItemHeader(e, ItemTypeSOPClassExtendedNegotiation,
		2+len(v.SOPClassUID)+len(v.ServiceClassApplicationInformation))
	e.WriteUInt16(uint16(len(v.SOPClassUID)))
	e.WriteString(v.SOPClassUID)
	e.WriteBytes(v.ServiceClassApplicationInformation)
}

func (v *SOPClassExtendedNegotiationSubItem) String() string {
	return fmt.Sprintf("sopclassextendednegotiation{sopclass: %q info: %dbytes}",
		v.SOPClassUID, len(v.ServiceClassApplicationInformation))
}

// UserIdentityType is the form of the user identity, PS3.7 D.3.3.7.1.
type UserIdentityType byte

const (
	UserIdentityUsername         UserIdentityType = 1
	UserIdentityUsernamePasscode UserIdentityType = 2
	UserIdentityKerberos         UserIdentityType = 3
	UserIdentitySAML             UserIdentityType = 4
	UserIdentityJWT              UserIdentityType = 5
)

func (t UserIdentityType) String() string {
	switch t {
	case UserIdentityUsername:
		return "username"
	case UserIdentityUsernamePasscode:
		return "username+passcode"
	case UserIdentityKerberos:
		return "kerberos"
	case UserIdentitySAML:
		return "saml"
	case UserIdentityJWT:
		return "jwt"
	default:
		return fmt.Sprintf("useridentitytype(%d)", byte(t))
	}
}

// UserIdentitySubItem is the User Identity negotiation item sent by the
// requestor, PS3.7 D.3.3.7.1. SecondaryField is used only with
// UserIdentityUsernamePasscode.
type UserIdentitySubItem struct {
	Type                      UserIdentityType
	PositiveResponseRequested bool
	PrimaryField              []byte
	SecondaryField            []byte
}

func (v *UserIdentitySubItem) Write(e *dicomio.Encoder) {
	encodeSubItemHeader(e, ItemTypeUserIdentityRequest, 2+2+len(v.PrimaryField)+2+len(v.SecondaryField))
	e.WriteByte(byte(v.Type))
	e.WriteByte(boolByte(v.PositiveResponseRequested))
	e.WriteUInt16(uint16(len(v.PrimaryField)))
	e.WriteBytes(v.PrimaryField)
	e.WriteUInt16(uint16(len(v.SecondaryField)))
	e.WriteBytes(v.SecondaryField)
}

func (v *UserIdentitySubItem) String() string {
	// Don't print the credentials.
	return fmt.Sprintf("useridentityrq{type: %v response: %v primary: %dbytes secondary: %dbytes}",
		v.Type, v.PositiveResponseRequested, len(v.PrimaryField), len(v.SecondaryField))
}

// UserIdentityResponseSubItem is the acceptor's answer to a
// UserIdentitySubItem that requested a positive response, PS3.7 D.3.3.7.2.
type UserIdentityResponseSubItem struct {
	ServerResponse []byte
}

func (v *UserIdentityResponseSubItem) Write(e *dicomio.Encoder) {
	encodeSubItemHeader(e, ItemTypeUserIdentityResponse, 2+len(v.ServerResponse))
	e.WriteUInt16(uint16(len(v.ServerResponse)))
	e.WriteBytes(v.ServerResponse)
}

func (v *UserIdentityResponseSubItem) String() string {
	return fmt.Sprintf("useridentityac{response: %dbytes}", len(v.ServerResponse))
}

// SubItemUnsupported is a container for user information subitems that this
// package doesn't interpret.
type SubItemUnsupported struct {
	Type byte
	Data []byte
}

func (item *SubItemUnsupported) Write(e *dicomio.Encoder) {
	encodeSubItemHeader(e, item.Type, len(item.Data))
	e.WriteBytes(item.Data)
}

func (item *SubItemUnsupported) String() string {
	return fmt.Sprintf("subitemunsupported{type: 0x%0x data: %dbytes}",
		item.Type, len(item.Data))
}

type subItemWithName struct {
	Name string
}

func encodeSubItemWithName(e *dicomio.Encoder, itemType byte, name string) {
	encodeSubItemHeader(e, itemType, len(name))
	e.WriteString(name)
}

type ApplicationContextItem subItemWithName

// DICOMApplicationContextItemName is the application context for DICOM. It is
// the first item in the A-ASSOCIATE-RQ.
const DICOMApplicationContextItemName = "1.2.840.10008.3.1.1.1"

func (v *ApplicationContextItem) Write(e *dicomio.Encoder) {
	encodeSubItemWithName(e, ItemTypeApplicationContext, v.Name)
}

func (v *ApplicationContextItem) String() string {
	return fmt.Sprintf("applicationcontext{name: %q}", v.Name)
}

type AbstractSyntaxSubItem subItemWithName

func (v *AbstractSyntaxSubItem) Write(e *dicomio.Encoder) {
	encodeSubItemWithName(e, ItemTypeAbstractSyntax, v.Name)
}

func (v *AbstractSyntaxSubItem) String() string {
	return fmt.Sprintf("abstractsyntax{name: %q}", v.Name)
}

type TransferSyntaxSubItem subItemWithName

func (v *TransferSyntaxSubItem) Write(e *dicomio.Encoder) {
	encodeSubItemWithName(e, ItemTypeTransferSyntax, v.Name)
}

func (v *TransferSyntaxSubItem) String() string {
	return fmt.Sprintf("transfersyntax{name: %q}", v.Name)
}

// PresentationContextResult is the result of abstractsyntax/transfersyntax
// handshake during A-ACCEPT.  P3.8, 90.3.3.2, table 9-18.
type PresentationContextResult byte

const (
	PresentationContextAccepted                                    PresentationContextResult = 0
	PresentationContextUserRejection                               PresentationContextResult = 1
	PresentationContextProviderRejectionNoReason                   PresentationContextResult = 2
	PresentationContextProviderRejectionAbstractSyntaxNotSupported PresentationContextResult = 3
	PresentationContextProviderRejectionTransferSyntaxNotSupported PresentationContextResult = 4
)

func (p PresentationContextResult) String() string {
	switch p {
	case PresentationContextAccepted:
		return "Accepted"
	case PresentationContextUserRejection:
		return "User rejection"
	case PresentationContextProviderRejectionNoReason:
		return "Provider rejection (no reason)"
	case PresentationContextProviderRejectionAbstractSyntaxNotSupported:
		return "Provider rejection (abstract syntax not supported)"
	case PresentationContextProviderRejectionTransferSyntaxNotSupported:
		return "Provider rejection (transfer syntax not supported)"
	default:
		return fmt.Sprintf("Unknown presentationcontextresult %d", byte(p))
	}
}

// PresentationContextItem is defined in P3.8 9.3.2.2 and 9.3.3.2.
type PresentationContextItem struct {
	Type      byte // ItemTypePresentationContext*
	ContextID byte

	// Result is meaningful iff Type=0x21, zero else.
	Result PresentationContextResult

	// For requests, one AbstractSyntaxSubItem followed by one or more
	// TransferSyntaxSubItems. For responses, exactly one
	// TransferSyntaxSubItem.
	Items []SubItem
}

func decodePresentationContextItem(d *decoder, itemType byte) *PresentationContextItem {
	v := &PresentationContextItem{Type: itemType}
	idPos := d.pos
	v.ContextID = d.readByte()
	d.skip(1)
	v.Result = PresentationContextResult(d.readByte())
	d.skip(1)
	for d.ok() && d.remaining() > 0 {
		if item := decodeSubItem(d, scopePresentationContext); item != nil {
			v.Items = append(v.Items, item)
		}
	}
	if d.ok() && v.ContextID%2 != 1 {
		d.pos = idPos
		d.failf(AbortReasonInvalidPDUParameterValue, "presentation context ID must be odd, but found %d", v.ContextID)
	}
	return v
}

func (v *PresentationContextItem) Write(e *dicomio.Encoder) {
	if v.Type != ItemTypePresentationContextRequest &&
		v.Type != ItemTypePresentationContextResponse {
		e.SetError(fmt.Errorf("presentation context item has invalid type 0x%x", v.Type))
		return
	}
	itemBytes, ok := encodeItemBody(e, v.Items)
	if !ok {
		return
	}
	encodeSubItemHeader(e, v.Type, 4+len(itemBytes))
	e.WriteByte(v.ContextID)
	e.WriteZeros(1)
	e.WriteByte(byte(v.Result))
	e.WriteZeros(1)
	e.WriteBytes(itemBytes)
}

func (v *PresentationContextItem) String() string {
	itemType := "rq"
	if v.Type == ItemTypePresentationContextResponse {
		itemType = "ac"
	}
	return fmt.Sprintf("presentationcontext%s{id: %d result: %v, items:%s}",
		itemType, v.ContextID, v.Result, subItemListString(v.Items))
}

// AbstractSyntax returns the abstract syntax UID named in the item, or "".
func (v *PresentationContextItem) AbstractSyntax() string {
	for _, item := range v.Items {
		if a, ok := item.(*AbstractSyntaxSubItem); ok {
			return a.Name
		}
	}
	return ""
}

// TransferSyntaxes returns the transfer syntax UIDs in the item, in order.
func (v *PresentationContextItem) TransferSyntaxes() []string {
	var uids []string
	for _, item := range v.Items {
		if t, ok := item.(*TransferSyntaxSubItem); ok {
			uids = append(uids, t.Name)
		}
	}
	return uids
}

// PresentationDataValueItem is defined in P3.8 9.3.2.2.1 & 9.3.2.2.2
type PresentationDataValueItem struct {
	// Length: 2 + len(Value)
	ContextID byte

	// P3.8, E.2: the following two fields encode a single byte.
	Command bool // Bit 7 (LSB): 1 means command 0 means data
	Last    bool // Bit 6: 1 means last fragment. 0 means not last fragment.

	// Payload, either command or data
	Value []byte
}

// PDVItemHeaderSize is the number of bytes that a PDV item adds around its
// value: 4-byte length, context ID, and the message control header.
const PDVItemHeaderSize = 6

func decodePresentationDataValueItem(d *decoder) PresentationDataValueItem {
	item := PresentationDataValueItem{}
	length := int(d.readUInt32())
	if d.ok() && (length < 2 || length > d.remaining()) {
		d.pos -= 4
		d.failf(AbortReasonInvalidPDUParameterValue, "invalid PDV item length %d", length)
		return item
	}
	idPos := d.pos
	item.ContextID = d.readByte()
	header := d.readByte()
	item.Command = (header&1 != 0)
	item.Last = (header&2 != 0)
	if d.ok() && item.ContextID%2 != 1 {
		d.pos = idPos
		d.failf(AbortReasonInvalidPDUParameterValue, "PDV item has even context ID %d", item.ContextID)
		return item
	}
	if d.ok() && header&0xfc != 0 {
		d.pos = idPos + 1
		d.failf(AbortReasonInvalidPDUParameterValue, "illegal PDV header byte 0x%x", header)
		return item
	}
	item.Value = d.readBytes(length - 2) // remove contextID and header
	return item
}

func (v *PresentationDataValueItem) Write(e *dicomio.Encoder) {
	var header byte
	if v.Command {
		header |= 1
	}
	if v.Last {
		header |= 2
	}
	e.WriteUInt32(uint32(2 + len(v.Value)))
	e.WriteByte(v.ContextID)
	e.WriteByte(header)
	e.WriteBytes(v.Value)
}

func (v *PresentationDataValueItem) String() string {
	return fmt.Sprintf("presentationdatavalue{context: %d, cmd:%v last:%v value: %d bytes}", v.ContextID, v.Command, v.Last, len(v.Value))
}

func subItemListString(items []SubItem) string {
	buf := bytes.Buffer{}
	buf.WriteString("[")
	for i, subitem := range items {
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(subitem.String())
	}
	buf.WriteString("]")
	return buf.String()
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
