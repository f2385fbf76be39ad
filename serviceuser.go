// This file implements the ServiceUser (i.e., a DICOM DIMSE client) class.
package netdicom

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/grailbio/go-dicom"
	"github.com/grailbio/go-dicom/dicomio"
	"github.com/grailbio/go-dicom/dicomtag"
	"github.com/medimesh/go-netdicom/dimse"
	"github.com/medimesh/go-netdicom/pdu"
	"github.com/medimesh/go-netdicom/sopclass"
	"v.io/x/lib/vlog"
)

// DefaultMaxPDUSize is the P-DATA-TF size advertised by NewServiceUserParams
// and by a ServiceProvider whose params leave MaxPDUSize at zero.
const DefaultMaxPDUSize = 4 << 20

// ServiceUserParams configures one association requested by a ServiceUser.
type ServiceUserParams struct {
	CalledAETitle  string // Must be nonempty
	CallingAETitle string // Must be nonempty

	// List of SOPUIDs wanted by the user. Used to build Contexts when it is
	// empty.
	RequiredServices []sopclass.SOPUID

	// List of Transfer syntaxes supported by the user. If you know the
	// transer syntax of the file you are going to copy, set that here.
	// Otherwise, the data set is re-encoded in the negotiated transfer
	// syntax, which works only between uncompressed syntaxes.
	SupportedTransferSyntaxes []string

	// Presentation contexts to propose. If empty, one context per
	// RequiredServices entry is proposed, each with
	// SupportedTransferSyntaxes.
	Contexts []ProposedContext

	// SCP/SCU role selection. To receive C-GET results, propose SCP=true for
	// the storage SOP classes and include them in the contexts.
	Roles []RoleSelection

	ExtendedNegotiation []pdu.SOPClassExtendedNegotiationSubItem
	UserIdentity        *pdu.UserIdentitySubItem

	// Largest P-DATA-TF PDU the user accepts. 0 means unlimited.
	MaxPDUSize int
	// Bounds the association setup and release handshakes. Defaults to
	// DefaultARTIMTimeout.
	ARTIMTimeout time.Duration
	// Bounds the wait for each DIMSE response. 0 means no limit. The
	// association is aborted when it expires.
	DIMSETimeout time.Duration

	// Defaults to DefaultImplementationClassUID.
	ImplementationClassUID    string
	ImplementationVersionName string

	// Handles C-STORE requests from the peer outside of CGet.
	CStore CStoreHandler
	// Handles N-EVENT-REPORT requests from the peer.
	NEventReport NHandler

	Faults *FaultInjector
}

// NewServiceUserParams creates a ServiceUserParams.  requiredServices is the
// abstract syntaxes (SOP classes) that the client wishes to use in the
// requests.  It's usually one of the lists defined in the sopclass package.  If
// transferSyntaxUIDs is empty, the exhaustive list of syntaxes defined in the
// DICOM standard is used.
func NewServiceUserParams(
	calledAETitle string,
	callingAETitle string,
	requiredServices []sopclass.SOPUID,
	transferSyntaxUIDs []string) (ServiceUserParams, error) {
	if calledAETitle == "" {
		return ServiceUserParams{}, errors.New("NewServiceUserParams: empty calledAETitle")
	}
	if callingAETitle == "" {
		return ServiceUserParams{}, errors.New("NewServiceUserParams: empty callingAETitle")
	}
	syntaxes, err := canonicalTransferSyntaxes(transferSyntaxUIDs)
	if err != nil {
		return ServiceUserParams{}, err
	}
	return ServiceUserParams{
		CalledAETitle:             calledAETitle,
		CallingAETitle:            callingAETitle,
		RequiredServices:          requiredServices,
		SupportedTransferSyntaxes: syntaxes,
		MaxPDUSize:                DefaultMaxPDUSize,
		ARTIMTimeout:              DefaultARTIMTimeout,
		ImplementationClassUID:    DefaultImplementationClassUID,
		ImplementationVersionName: DefaultImplementationVersionName,
	}, nil
}

func canonicalTransferSyntaxes(uids []string) ([]string, error) {
	if len(uids) == 0 {
		return dicomio.StandardTransferSyntaxes, nil
	}
	var syntaxes []string
	for _, uid := range uids {
		canonicalUID, err := dicomio.CanonicalTransferSyntaxUID(uid)
		if err != nil {
			return nil, err
		}
		syntaxes = append(syntaxes, canonicalUID)
	}
	return syntaxes, nil
}

func validateAETitle(name, title string) error {
	if title == "" {
		return fmt.Errorf("netdicom: empty %s", name)
	}
	if len(title) > 16 {
		return fmt.Errorf("netdicom: %s %q is longer than 16 bytes", name, title)
	}
	return nil
}

func (params *ServiceUserParams) fillDefaults() error {
	if err := validateAETitle("called AE title", params.CalledAETitle); err != nil {
		return err
	}
	if err := validateAETitle("calling AE title", params.CallingAETitle); err != nil {
		return err
	}
	if params.MaxPDUSize < 0 || params.MaxPDUSize > pdu.MaxPDUSizeCeiling {
		return fmt.Errorf("netdicom: MaxPDUSize %d out of range", params.MaxPDUSize)
	}
	if len(params.Contexts) == 0 {
		syntaxes, err := canonicalTransferSyntaxes(params.SupportedTransferSyntaxes)
		if err != nil {
			return err
		}
		contexts, err := NewProposedContexts(sopclass.UIDs(params.RequiredServices), syntaxes)
		if err != nil {
			return err
		}
		params.Contexts = contexts
	}
	if len(params.Contexts) == 0 {
		return errors.New("netdicom: no presentation context to propose")
	}
	if params.ARTIMTimeout <= 0 {
		params.ARTIMTimeout = DefaultARTIMTimeout
	}
	if params.ImplementationClassUID == "" {
		params.ImplementationClassUID = DefaultImplementationClassUID
		if params.ImplementationVersionName == "" {
			params.ImplementationVersionName = DefaultImplementationVersionName
		}
	}
	return nil
}

// ServiceUser encapsulates implements the client side of DICOM network protocol.
//
//	params, err := netdicom.NewServiceUserParams(
//	   "dontcare" /*remote app-entity title*/,
//	   "testclient" /*this app-entity title*/,
//	   sopclass.QRFindClasses, /* SOP classes to use in the requests*/
//	   nil /* transfer syntaxes to use; unually nil suffices */)
//	user, err := netdicom.NewServiceUser(params)
//	// Connect to server 1.2.3.4, port 8888
//	err = user.Connect(ctx, "1.2.3.4:8888")
//	// Send test.dcm to the server
//	ds, err := dicom.ReadDataSetFromFile("test.dcm", dicom.ReadOptions{})
//	err = user.CStore(ctx, ds)
//	// Disconnect
//	user.Release()
//
// Operations may be issued concurrently; each gets its own message ID. Only
// one CGet may run at a time.
type ServiceUser struct {
	label      string
	params     ServiceUserParams
	downcallCh chan stateEvent
	disp       *serviceDispatcher
	assoc      *association

	mu         sync.Mutex
	connected  bool          // Connect was called.
	remoteAddr net.Addr      // Set by Connect.
	onStore    CStoreHandler // Receives the sub-operations of the running CGet.
}

// NewServiceUser creates a new ServiceUser. The caller must call Connect
// before calling any other method, such as CStore.
func NewServiceUser(params ServiceUserParams) (*ServiceUser, error) {
	if err := params.fillDefaults(); err != nil {
		return nil, err
	}
	label := newLabel("sm(u)")
	downcallCh := make(chan stateEvent, 128)
	upcallCh := make(chan upcallEvent, 128)
	disp := newServiceDispatcher(label, downcallCh, params.DIMSETimeout)
	su := &ServiceUser{
		label:      label,
		params:     params,
		downcallCh: downcallCh,
		disp:       disp,
		assoc:      newAssociation(label, disp, upcallCh),
	}
	disp.registerCallback(dimse.CommandFieldCStoreRq, su.handleCStore)
	if params.NEventReport != nil {
		disp.registerCallback(dimse.CommandFieldNEventReportRq,
			func(msg dimse.Message, data []byte, cs *serviceCommandState) {
				runNHandler(newServiceEvent(cs, msg, data, su.getRemoteAddr()), su.params.NEventReport)
			})
	}
	go runStateMachineForServiceUser(&su.params, upcallCh, downcallCh, label)
	go su.assoc.run()
	return su, nil
}

// Associate creates a ServiceUser and connects it to "host:port".
func Associate(ctx context.Context, serverAddr string, params ServiceUserParams) (*ServiceUser, error) {
	su, err := NewServiceUser(params)
	if err != nil {
		return nil, err
	}
	if err := su.Connect(ctx, serverAddr); err != nil {
		return nil, err
	}
	return su, nil
}

func (su *ServiceUser) getRemoteAddr() net.Addr {
	su.mu.Lock()
	defer su.mu.Unlock()
	return su.remoteAddr
}

func (su *ServiceUser) handleCStore(msg dimse.Message, data []byte, cs *serviceCommandState) {
	su.mu.Lock()
	h := su.onStore
	su.mu.Unlock()
	if h == nil {
		h = su.params.CStore
	}
	e := newServiceEvent(cs, msg, data, su.getRemoteAddr())
	if h == nil {
		vlog.Infof("%s: no C-STORE handler for %v", su.label, msg)
		cs.sendMessage(responseFor(msg, dimse.Status{Status: dimse.StatusSOPClassNotSupported}, false), nil)
		return
	}
	runStatusHandler(e, h)
}

// Connect connects to the server at the given "host:port" and performs the
// association handshake. It returns an *AssociationRejectedError if the peer
// rejects the association.
func (su *ServiceUser) Connect(ctx context.Context, serverAddr string) error {
	su.mu.Lock()
	if su.connected {
		su.mu.Unlock()
		return errors.New("netdicom: Connect called twice")
	}
	su.connected = true
	su.mu.Unlock()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", serverAddr)
	if err != nil {
		vlog.Infof("%s: connect(%s): %v", su.label, serverAddr, err)
		su.downcallCh <- stateEvent{event: evt17, err: err}
		<-su.assoc.done
		return &TransportError{Err: err}
	}
	su.mu.Lock()
	su.remoteAddr = conn.RemoteAddr()
	su.mu.Unlock()
	su.downcallCh <- stateEvent{event: evt02, conn: conn}

	stop := context.AfterFunc(ctx, su.Abort)
	defer stop()
	if _, err := su.assoc.waitEstablished(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// State returns the state of the association.
func (su *ServiceUser) State() AssociationState {
	return su.assoc.getState()
}

// Contexts returns the outcome of the presentation context negotiation. It
// is empty until the association is established.
func (su *ServiceUser) Contexts() []NegotiatedContext {
	su.assoc.mu.Lock()
	cm := su.assoc.cm
	su.assoc.mu.Unlock()
	if cm == nil {
		return nil
	}
	return cm.contexts()
}

// ConnectionState describes the established association.
func (su *ServiceUser) ConnectionState() (ConnectionState, error) {
	cm, err := su.assoc.contextManager()
	if err != nil {
		return ConnectionState{}, err
	}
	return newConnectionState(cm, su.getRemoteAddr()), nil
}

// Release gracefully shuts down the association and waits for the transport
// to close. It aborts instead if the association is not established.
func (su *ServiceUser) Release() error {
	if su.State() == AssociationEstablished {
		su.disp.release()
	} else {
		su.disp.abort()
	}
	<-su.assoc.done
	return su.assoc.closeError()
}

// Abort sends A-ABORT and tears down the association without waiting for
// operations in flight.
func (su *ServiceUser) Abort() {
	su.disp.abort()
}

// Done is closed once the association is gone.
func (su *ServiceUser) Done() <-chan struct{} {
	return su.assoc.done
}

// newCommand picks a presentation context for sopClassUID and allocates a
// message ID.
func (su *ServiceUser) newCommand(sopClassUID string) (*serviceCommandState, error) {
	cm, err := su.assoc.contextManager()
	if err != nil {
		return nil, err
	}
	context, err := cm.lookupByAbstractSyntaxUID(sopClassUID, "")
	if err != nil {
		return nil, err
	}
	return su.disp.newCommand(cm, context)
}

// CEcho sends a C-ECHO request to the remote AE. Returns nil iff the remote
// AE responds ok.
func (su *ServiceUser) CEcho(ctx context.Context) error {
	cs, err := su.newCommand(sopclass.Verification)
	if err != nil {
		return err
	}
	defer su.disp.deleteCommand(cs)
	err = cs.sendMessage(&dimse.CEchoRq{
		AffectedSOPClassUID: sopclass.Verification,
		MessageID:           cs.messageID,
		CommandDataSetType:  dimse.CommandDataSetTypeNull,
	}, nil)
	if err != nil {
		return err
	}
	event, err := cs.waitResponse(ctx, "C-ECHO")
	if err != nil {
		return err
	}
	resp, ok := event.command.(*dimse.CEchoRsp)
	if !ok {
		return fmt.Errorf("netdicom: invalid response for C-ECHO: %v", event.command)
	}
	return statusError("C-ECHO", resp.Status)
}

// CStore issues a C-STORE request to transfer "ds" in remove peer. It blocks
// until the operation finishes. ds is usually read from a DICOM file; the
// SOP class and instance UIDs are taken from its file meta group or, failing
// that, from the data set itself.
func (su *ServiceUser) CStore(ctx context.Context, ds *dicom.DataSet) error {
	return su.cstore(ctx, ds, cstoreOptions{})
}

func (su *ServiceUser) cstore(ctx context.Context, ds *dicom.DataSet, opts cstoreOptions) error {
	cm, err := su.assoc.contextManager()
	if err != nil {
		return err
	}
	return runCStoreOnAssociation(ctx, su.disp, cm, ds, opts)
}

// CFindResult is one response to a C-FIND request.
type CFindResult struct {
	Status dimse.Status
	// The matching identifier. Set only for Pending responses.
	DataSet *dicom.DataSet
	// Set on the last result if the operation did not end with Success.
	Err error
}

// RetrieveResult is one response to a C-GET or C-MOVE request.
type RetrieveResult struct {
	Status dimse.Status

	Remaining int
	Completed int
	Failed    int
	Warning   int

	// Set on the last result if the operation did not end with Success.
	Err error
}

// runMultiResponse sends a C-FIND, C-GET or C-MOVE request and passes each
// response to onResponse until the final one. Cancelling ctx sends C-CANCEL;
// the operation then continues until the provider sends its final response.
func (su *ServiceUser) runMultiResponse(ctx context.Context, op string, cs *serviceCommandState,
	req dimse.Message, data []byte, onResponse func(event upcallEvent, status dimse.Status)) error {
	if err := cs.sendMessage(req, data); err != nil {
		return err
	}
	waitCtx := ctx
	cancelled := false
	for {
		event, err := cs.waitResponse(waitCtx, op)
		if err != nil {
			if !cancelled && ctx.Err() != nil {
				vlog.Infof("%s: %s: sending C-CANCEL for message %d", su.label, op, cs.messageID)
				cancelled = true
				waitCtx = context.Background()
				err = cs.sendMessage(&dimse.CCancelRq{
					MessageIDBeingRespondedTo: cs.messageID,
					CommandDataSetType:        dimse.CommandDataSetTypeNull,
				}, nil)
				if err == nil {
					continue
				}
			}
			return err
		}
		status := event.command.GetStatus()
		if status == nil || commandName(event.command) != op {
			return fmt.Errorf("netdicom: %s: unexpected response %v", op, event.command)
		}
		onResponse(event, *status)
		if !status.IsPending() {
			return nil
		}
	}
}

// finalError is the error reported with the last response of an operation.
func finalError(ctx context.Context, op string, status dimse.Status) error {
	if status.Status == dimse.StatusCancel && ctx.Err() != nil {
		return ctx.Err()
	}
	return statusError(op, status)
}

// deliver sends r on ch. If ch is full, it waits for the reader until cancel
// or closed is closed, and then drops r. A nil cancel never fires.
func deliver[T any](ch chan<- T, r T, cancel, closed <-chan struct{}) {
	select {
	case ch <- r:
		return
	default:
	}
	select {
	case ch <- r:
	case <-cancel:
	case <-closed:
	}
}

// CFind issues a C-FIND request. Returns a channel that streams each
// response: the Pending ones with a matching data set, then the final one.
// The channel is closed after the final response, or after a result with
// Err set if the association fails.
//
// The param sopClassUID is one of the UIDs defined in sopclass.QRFindClasses.
// filter is the list of elements to match and retrieve. It usually includes
// QueryRetrieveLevel. Cancelling ctx sends C-CANCEL.
//
// The caller should read the channel until it is closed. A caller that stops
// reading early must cancel ctx: Pending results that do not fit in the
// channel are then dropped, and the final one is dropped once the association
// is released. Otherwise the association stalls until the channel is read.
func (su *ServiceUser) CFind(ctx context.Context, sopClassUID string, filter []*dicom.Element) <-chan CFindResult {
	ch := make(chan CFindResult, 128)
	go func() {
		defer close(ch)
		closed := su.Done()
		cs, err := su.newCommand(sopClassUID)
		if err != nil {
			deliver(ch, CFindResult{Err: err}, nil, closed)
			return
		}
		defer su.disp.deleteCommand(cs)
		data, err := encodeElements(filter, cs.context.transferSyntaxUID)
		if err != nil {
			deliver(ch, CFindResult{Err: err}, nil, closed)
			return
		}
		req := &dimse.CFindRq{
			AffectedSOPClassUID: sopClassUID,
			MessageID:           cs.messageID,
			Priority:            dimse.PriorityMedium,
			CommandDataSetType:  dimse.CommandDataSetTypeNonNull,
		}
		err = su.runMultiResponse(ctx, "C-FIND", cs, req, data, func(event upcallEvent, status dimse.Status) {
			result := CFindResult{Status: status}
			if !status.IsPending() {
				result.Err = finalError(ctx, "C-FIND", status)
				deliver(ch, result, nil, closed)
				return
			}
			if event.data != nil {
				result.DataSet, result.Err = DecodeDataSet(event.data, cs.context.transferSyntaxUID)
			}
			deliver(ch, result, ctx.Done(), closed)
		})
		if err != nil {
			deliver(ch, CFindResult{Err: err}, nil, closed)
		}
	}()
	return ch
}

func retrieveResult(event upcallEvent, status dimse.Status) RetrieveResult {
	r := RetrieveResult{Status: status}
	switch resp := event.command.(type) {
	case *dimse.CGetRsp:
		r.Remaining = int(resp.NumberOfRemainingSuboperations)
		r.Completed = int(resp.NumberOfCompletedSuboperations)
		r.Failed = int(resp.NumberOfFailedSuboperations)
		r.Warning = int(resp.NumberOfWarningSuboperations)
	case *dimse.CMoveRsp:
		r.Remaining = int(resp.NumberOfRemainingSuboperations)
		r.Completed = int(resp.NumberOfCompletedSuboperations)
		r.Failed = int(resp.NumberOfFailedSuboperations)
		r.Warning = int(resp.NumberOfWarningSuboperations)
	}
	return r
}

// CGet issues a C-GET request. The provider sends the matching objects back
// as C-STORE requests on this association; each is passed to onStore. The
// association must have been negotiated with SCP role for the storage SOP
// classes (see ServiceUserParams.Roles). The returned channel streams the
// responses, and must be read like the one of CFind.
func (su *ServiceUser) CGet(ctx context.Context, sopClassUID string, filter []*dicom.Element, onStore CStoreHandler) <-chan RetrieveResult {
	ch := make(chan RetrieveResult, 128)
	go func() {
		defer close(ch)
		su.mu.Lock()
		if su.onStore != nil {
			su.mu.Unlock()
			deliver(ch, RetrieveResult{Err: errors.New("netdicom: another C-GET is running")}, nil, su.Done())
			return
		}
		su.onStore = onStore
		su.mu.Unlock()
		defer func() {
			su.mu.Lock()
			su.onStore = nil
			su.mu.Unlock()
		}()
		su.runRetrieve(ctx, "C-GET", sopClassUID, filter, ch, func(id dimse.MessageID) dimse.Message {
			return &dimse.CGetRq{
				AffectedSOPClassUID: sopClassUID,
				MessageID:           id,
				Priority:            dimse.PriorityMedium,
				CommandDataSetType:  dimse.CommandDataSetTypeNonNull,
			}
		})
	}()
	return ch
}

// CMove issues a C-MOVE request, asking the provider to send the matching
// objects to the AE named destination. The returned channel streams the
// responses, and must be read like the one of CFind.
func (su *ServiceUser) CMove(ctx context.Context, sopClassUID, destination string, filter []*dicom.Element) <-chan RetrieveResult {
	ch := make(chan RetrieveResult, 128)
	go func() {
		defer close(ch)
		su.runRetrieve(ctx, "C-MOVE", sopClassUID, filter, ch, func(id dimse.MessageID) dimse.Message {
			return &dimse.CMoveRq{
				AffectedSOPClassUID: sopClassUID,
				MessageID:           id,
				Priority:            dimse.PriorityMedium,
				MoveDestination:     destination,
				CommandDataSetType:  dimse.CommandDataSetTypeNonNull,
			}
		})
	}()
	return ch
}

func (su *ServiceUser) runRetrieve(ctx context.Context, op, sopClassUID string, filter []*dicom.Element,
	ch chan<- RetrieveResult, newRequest func(dimse.MessageID) dimse.Message) {
	closed := su.Done()
	cs, err := su.newCommand(sopClassUID)
	if err != nil {
		deliver(ch, RetrieveResult{Err: err}, nil, closed)
		return
	}
	defer su.disp.deleteCommand(cs)
	data, err := encodeElements(filter, cs.context.transferSyntaxUID)
	if err != nil {
		deliver(ch, RetrieveResult{Err: err}, nil, closed)
		return
	}
	err = su.runMultiResponse(ctx, op, cs, newRequest(cs.messageID), data, func(event upcallEvent, status dimse.Status) {
		result := retrieveResult(event, status)
		if status.IsPending() {
			deliver(ch, result, ctx.Done(), closed)
			return
		}
		result.Err = finalError(ctx, op, status)
		deliver(ch, result, nil, closed)
	})
	if err != nil {
		deliver(ch, RetrieveResult{Err: err}, nil, closed)
	}
}

// NResult is the response to a normalized service request.
type NResult struct {
	Status                 dimse.Status
	AffectedSOPInstanceUID string
	// The data set sent with the response, if any.
	DataSet *dicom.DataSet
}

// runNRequest sends one N-* request and waits for its response. The error
// is a *ServiceFailureError if the status is not Success.
func (su *ServiceUser) runNRequest(ctx context.Context, op, sopClassUID string, elems []*dicom.Element,
	newRequest func(id dimse.MessageID, dataSetType uint16) dimse.Message) (NResult, error) {
	cs, err := su.newCommand(sopClassUID)
	if err != nil {
		return NResult{}, err
	}
	defer su.disp.deleteCommand(cs)
	var data []byte
	if elems != nil {
		if data, err = encodeElements(elems, cs.context.transferSyntaxUID); err != nil {
			return NResult{}, err
		}
	}
	if err := cs.sendMessage(newRequest(cs.messageID, dataSetType(data != nil)), data); err != nil {
		return NResult{}, err
	}
	event, err := cs.waitResponse(ctx, op)
	if err != nil {
		return NResult{}, err
	}
	status := event.command.GetStatus()
	if status == nil || commandName(event.command) != op {
		return NResult{}, fmt.Errorf("netdicom: %s: unexpected response %v", op, event.command)
	}
	result := NResult{Status: *status}
	switch resp := event.command.(type) {
	case *dimse.NEventReportRsp:
		result.AffectedSOPInstanceUID = resp.AffectedSOPInstanceUID
	case *dimse.NGetRsp:
		result.AffectedSOPInstanceUID = resp.AffectedSOPInstanceUID
	case *dimse.NSetRsp:
		result.AffectedSOPInstanceUID = resp.AffectedSOPInstanceUID
	case *dimse.NActionRsp:
		result.AffectedSOPInstanceUID = resp.AffectedSOPInstanceUID
	case *dimse.NCreateRsp:
		result.AffectedSOPInstanceUID = resp.AffectedSOPInstanceUID
	case *dimse.NDeleteRsp:
		result.AffectedSOPInstanceUID = resp.AffectedSOPInstanceUID
	}
	if event.data != nil {
		if result.DataSet, err = DecodeDataSet(event.data, cs.context.transferSyntaxUID); err != nil {
			return result, err
		}
	}
	return result, statusError(op, *status)
}

// NGet reads attributes of a SOP instance. An empty attributes list asks for
// all of them.
func (su *ServiceUser) NGet(ctx context.Context, sopClassUID, sopInstanceUID string, attributes []dicomtag.Tag) (NResult, error) {
	return su.runNRequest(ctx, "N-GET", sopClassUID, nil, func(id dimse.MessageID, dataType uint16) dimse.Message {
		return &dimse.NGetRq{
			RequestedSOPClassUID:    sopClassUID,
			MessageID:               id,
			CommandDataSetType:      dataType,
			RequestedSOPInstanceUID: sopInstanceUID,
			AttributeIdentifierList: attributes,
		}
	})
}

// NSet modifies attributes of a SOP instance.
func (su *ServiceUser) NSet(ctx context.Context, sopClassUID, sopInstanceUID string, modifications []*dicom.Element) (NResult, error) {
	return su.runNRequest(ctx, "N-SET", sopClassUID, modifications, func(id dimse.MessageID, dataType uint16) dimse.Message {
		return &dimse.NSetRq{
			RequestedSOPClassUID:    sopClassUID,
			MessageID:               id,
			CommandDataSetType:      dataType,
			RequestedSOPInstanceUID: sopInstanceUID,
		}
	})
}

// NAction asks the peer to perform an action on a SOP instance. info may be
// nil.
func (su *ServiceUser) NAction(ctx context.Context, sopClassUID, sopInstanceUID string, actionTypeID uint16, info []*dicom.Element) (NResult, error) {
	return su.runNRequest(ctx, "N-ACTION", sopClassUID, info, func(id dimse.MessageID, dataType uint16) dimse.Message {
		return &dimse.NActionRq{
			RequestedSOPClassUID:    sopClassUID,
			MessageID:               id,
			CommandDataSetType:      dataType,
			RequestedSOPInstanceUID: sopInstanceUID,
			ActionTypeID:            actionTypeID,
		}
	})
}

// NCreate creates a SOP instance. If sopInstanceUID is empty, the peer
// assigns one and reports it in NResult.AffectedSOPInstanceUID.
func (su *ServiceUser) NCreate(ctx context.Context, sopClassUID, sopInstanceUID string, attributes []*dicom.Element) (NResult, error) {
	return su.runNRequest(ctx, "N-CREATE", sopClassUID, attributes, func(id dimse.MessageID, dataType uint16) dimse.Message {
		return &dimse.NCreateRq{
			AffectedSOPClassUID:    sopClassUID,
			MessageID:              id,
			CommandDataSetType:     dataType,
			AffectedSOPInstanceUID: sopInstanceUID,
		}
	})
}

// NDelete deletes a SOP instance.
func (su *ServiceUser) NDelete(ctx context.Context, sopClassUID, sopInstanceUID string) (NResult, error) {
	return su.runNRequest(ctx, "N-DELETE", sopClassUID, nil, func(id dimse.MessageID, dataType uint16) dimse.Message {
		return &dimse.NDeleteRq{
			RequestedSOPClassUID:    sopClassUID,
			MessageID:               id,
			CommandDataSetType:      dataType,
			RequestedSOPInstanceUID: sopInstanceUID,
		}
	})
}

// NEventReport reports an event about a SOP instance to the peer. info may
// be nil.
func (su *ServiceUser) NEventReport(ctx context.Context, sopClassUID, sopInstanceUID string, eventTypeID uint16, info []*dicom.Element) (NResult, error) {
	return su.runNRequest(ctx, "N-EVENT-REPORT", sopClassUID, info, func(id dimse.MessageID, dataType uint16) dimse.Message {
		return &dimse.NEventReportRq{
			AffectedSOPClassUID:    sopClassUID,
			MessageID:              id,
			CommandDataSetType:     dataType,
			AffectedSOPInstanceUID: sopInstanceUID,
			EventTypeID:            eventTypeID,
		}
	})
}
