package netdicom

import (
	"errors"
	"fmt"
	"iter"
	"net"
	"time"

	"github.com/grailbio/go-dicom"
	"github.com/medimesh/go-netdicom/dimse"
	"github.com/medimesh/go-netdicom/pdu"
	"v.io/x/lib/vlog"
)

// ConnectionState describes an established association, from the point of
// view of the local side.
type ConnectionState struct {
	CallingAETitle string
	CalledAETitle  string
	RemoteAddr     net.Addr

	// Largest P-DATA-TF PDU the peer accepts. 0 means unlimited.
	PeerMaxPDUSize                int
	PeerImplementationClassUID    string
	PeerImplementationVersionName string

	// User identity presented by the requestor. Provider side only.
	UserIdentity *pdu.UserIdentitySubItem
	// SOP class extended negotiation items in the A-ASSOCIATE-AC.
	ExtendedNegotiation []pdu.SOPClassExtendedNegotiationSubItem

	// Outcome of every proposed presentation context.
	Contexts []NegotiatedContext
}

func newConnectionState(cm *contextManager, remoteAddr net.Addr) ConnectionState {
	return ConnectionState{
		CallingAETitle:                cm.callingAETitle,
		CalledAETitle:                 cm.calledAETitle,
		RemoteAddr:                    remoteAddr,
		PeerMaxPDUSize:                cm.peerMaxPDUSize,
		PeerImplementationClassUID:    cm.peerImplementationClassUID,
		PeerImplementationVersionName: cm.peerImplementationVersionName,
		UserIdentity:                  cm.userIdentity,
		ExtendedNegotiation:           cm.extendedNegotiation,
		Contexts:                      cm.contexts(),
	}
}

// ServiceEvent is passed to the handler of a DIMSE request.
type ServiceEvent struct {
	Conn ConnectionState
	// The presentation context the request arrived on.
	Context NegotiatedContext
	Command dimse.Message
	// Data set of the request, encoded in Context.TransferSyntax. nil if the
	// request has none.
	Data []byte

	cs *serviceCommandState
}

// IsCancelled reports whether the peer sent C-CANCEL for this request.
// Handlers of C-FIND, C-GET and C-MOVE should check it between results.
func (e *ServiceEvent) IsCancelled() bool {
	return e.cs != nil && e.cs.cancelled.Load()
}

// DataSet decodes Data.
func (e *ServiceEvent) DataSet() (*dicom.DataSet, error) {
	if e.Data == nil {
		return nil, errors.New("netdicom: request has no data set")
	}
	return DecodeDataSet(e.Data, e.Context.TransferSyntax)
}

func newServiceEvent(cs *serviceCommandState, msg dimse.Message, data []byte, remoteAddr net.Addr) *ServiceEvent {
	return &ServiceEvent{
		Conn:    newConnectionState(cs.cm, remoteAddr),
		Context: cs.context.negotiatedContext(),
		Command: msg,
		Data:    data,
		cs:      cs,
	}
}

// CEchoHandler answers C-ECHO.
type CEchoHandler func(e *ServiceEvent) dimse.Status

// CStoreHandler answers C-STORE. The object is in e.Data; use
// e.Context.TransferSyntax to interpret it, or EncodeFile to turn it into a
// DICOM file.
type CStoreHandler func(e *ServiceEvent) dimse.Status

// CFindHandler answers C-FIND. The identifier is in e.Data. The sequence
// yields one Pending status per match, with the matching identifier, and may
// end with a final status. A sequence that ends without one completes the
// operation with Success.
type CFindHandler func(e *ServiceEvent) iter.Seq2[dimse.Status, *dicom.DataSet]

// Retrieval is what a C-GET or C-MOVE handler produces.
type Retrieval struct {
	// Destination is the "host:port" of the C-MOVE destination. If empty,
	// the move destination AE title is resolved through
	// ServiceProviderParams.RemoteAEs. Unused by C-GET.
	Destination string
	// Total is the number of objects Matches will yield. Objects beyond
	// Total are not sent.
	Total int
	// Matches yields (Pending, object) for each object to send. The first
	// non-Pending status ends the operation. A nil Matches behaves like an
	// empty sequence.
	Matches iter.Seq2[dimse.Status, *dicom.DataSet]
}

// RetrieveHandler answers C-GET and C-MOVE.
type RetrieveHandler func(e *ServiceEvent) Retrieval

// NHandler answers one of the normalized services. The returned data set, if
// not nil, is sent with the response.
type NHandler func(e *ServiceEvent) (dimse.Status, *dicom.DataSet)

var commandNames = map[uint16]string{
	dimse.CommandFieldCStoreRq:       "C-STORE",
	dimse.CommandFieldCGetRq:         "C-GET",
	dimse.CommandFieldCFindRq:        "C-FIND",
	dimse.CommandFieldCMoveRq:        "C-MOVE",
	dimse.CommandFieldCEchoRq:        "C-ECHO",
	dimse.CommandFieldNEventReportRq: "N-EVENT-REPORT",
	dimse.CommandFieldNGetRq:         "N-GET",
	dimse.CommandFieldNSetRq:         "N-SET",
	dimse.CommandFieldNActionRq:      "N-ACTION",
	dimse.CommandFieldNCreateRq:      "N-CREATE",
	dimse.CommandFieldNDeleteRq:      "N-DELETE",
	dimse.CommandFieldCCancelRq:      "C-CANCEL",
}

// commandName returns the service name of a request or response, e.g.
// "C-FIND".
func commandName(msg dimse.Message) string {
	if name, ok := commandNames[msg.CommandField()&0x7fff]; ok {
		return name
	}
	return fmt.Sprintf("command(0x%04x)", msg.CommandField())
}

func dataSetType(hasData bool) uint16 {
	if hasData {
		return dimse.CommandDataSetTypeNonNull
	}
	return dimse.CommandDataSetTypeNull
}

// responseFor builds the response to a request. Sub-operation counters of
// C-GET and C-MOVE are left zero.
func responseFor(req dimse.Message, status dimse.Status, hasData bool) dimse.Message {
	dataType := dataSetType(hasData)
	switch r := req.(type) {
	case *dimse.CEchoRq:
		return &dimse.CEchoRsp{
			AffectedSOPClassUID:       r.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: r.MessageID,
			CommandDataSetType:        dataType,
			Status:                    status,
		}
	case *dimse.CStoreRq:
		return &dimse.CStoreRsp{
			AffectedSOPClassUID:       r.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: r.MessageID,
			CommandDataSetType:        dataType,
			AffectedSOPInstanceUID:    r.AffectedSOPInstanceUID,
			Status:                    status,
		}
	case *dimse.CFindRq:
		return &dimse.CFindRsp{
			AffectedSOPClassUID:       r.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: r.MessageID,
			CommandDataSetType:        dataType,
			Status:                    status,
		}
	case *dimse.CGetRq:
		return &dimse.CGetRsp{
			AffectedSOPClassUID:       r.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: r.MessageID,
			CommandDataSetType:        dataType,
			Status:                    status,
		}
	case *dimse.CMoveRq:
		return &dimse.CMoveRsp{
			AffectedSOPClassUID:       r.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: r.MessageID,
			CommandDataSetType:        dataType,
			Status:                    status,
		}
	case *dimse.NEventReportRq:
		return &dimse.NEventReportRsp{
			AffectedSOPClassUID:       r.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: r.MessageID,
			CommandDataSetType:        dataType,
			Status:                    status,
			AffectedSOPInstanceUID:    r.AffectedSOPInstanceUID,
			EventTypeID:               r.EventTypeID,
		}
	case *dimse.NGetRq:
		return &dimse.NGetRsp{
			AffectedSOPClassUID:       r.RequestedSOPClassUID,
			MessageIDBeingRespondedTo: r.MessageID,
			CommandDataSetType:        dataType,
			Status:                    status,
			AffectedSOPInstanceUID:    r.RequestedSOPInstanceUID,
		}
	case *dimse.NSetRq:
		return &dimse.NSetRsp{
			AffectedSOPClassUID:       r.RequestedSOPClassUID,
			MessageIDBeingRespondedTo: r.MessageID,
			CommandDataSetType:        dataType,
			Status:                    status,
			AffectedSOPInstanceUID:    r.RequestedSOPInstanceUID,
		}
	case *dimse.NActionRq:
		return &dimse.NActionRsp{
			AffectedSOPClassUID:       r.RequestedSOPClassUID,
			MessageIDBeingRespondedTo: r.MessageID,
			CommandDataSetType:        dataType,
			Status:                    status,
			AffectedSOPInstanceUID:    r.RequestedSOPInstanceUID,
			ActionTypeID:              r.ActionTypeID,
		}
	case *dimse.NCreateRq:
		return &dimse.NCreateRsp{
			AffectedSOPClassUID:       r.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: r.MessageID,
			CommandDataSetType:        dataType,
			Status:                    status,
			AffectedSOPInstanceUID:    r.AffectedSOPInstanceUID,
		}
	case *dimse.NDeleteRq:
		return &dimse.NDeleteRsp{
			AffectedSOPClassUID:       r.RequestedSOPClassUID,
			MessageIDBeingRespondedTo: r.MessageID,
			CommandDataSetType:        dataType,
			Status:                    status,
			AffectedSOPInstanceUID:    r.RequestedSOPInstanceUID,
		}
	}
	panic(fmt.Sprintf("responseFor: not a request: %v", req))
}

// runStatusHandler runs a C-ECHO or C-STORE handler and sends its status.
func runStatusHandler(e *ServiceEvent, h func(*ServiceEvent) dimse.Status) {
	start := time.Now()
	status := h(e)
	vlog.VI(1).Infof("%s: %s -> %v", e.cs.disp.label, commandName(e.Command), status)
	if err := e.cs.sendMessage(responseFor(e.Command, status, false), nil); err != nil {
		vlog.Errorf("%s: %s: response: %v", e.cs.disp.label, commandName(e.Command), err)
	}
	recordDIMSERequest(commandName(e.Command), status.Status.Category().String(), start)
}

// runNHandler runs a normalized service handler and sends the response,
// with the data set the handler returned, if any.
func runNHandler(e *ServiceEvent, h NHandler) {
	start := time.Now()
	if r, ok := e.Command.(*dimse.NCreateRq); ok && r.AffectedSOPInstanceUID == "" {
		// The SCP assigns the instance UID when the SCU leaves it out.
		r.AffectedSOPInstanceUID = NewUID()
	}
	status, ds := h(e)
	var data []byte
	if ds != nil {
		var err error
		if data, err = encodeElements(ds.Elements, e.Context.TransferSyntax); err != nil {
			vlog.Errorf("%s: %s: %v", e.cs.disp.label, commandName(e.Command), err)
			status = dimse.Status{Status: dimse.StatusProcessingFailure, ErrorComment: err.Error()}
			data = nil
		}
	}
	vlog.VI(1).Infof("%s: %s -> %v", e.cs.disp.label, commandName(e.Command), status)
	if err := e.cs.sendMessage(responseFor(e.Command, status, data != nil), data); err != nil {
		vlog.Errorf("%s: %s: response: %v", e.cs.disp.label, commandName(e.Command), err)
	}
	recordDIMSERequest(commandName(e.Command), status.Status.Category().String(), start)
}
