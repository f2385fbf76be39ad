package netdicom

// Implements the DICOM upper layer state machine, P3.8 9.2.
//
// https://www.dicomlibrary.com/dicom/dicom-association-state-machine/

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/medimesh/go-netdicom/dimse"
	"github.com/medimesh/go-netdicom/pdu"
	"v.io/x/lib/vlog"
)

type stateType struct {
	Name        string
	Description string
}

func (s *stateType) String() string {
	return fmt.Sprintf("%s(%s)", s.Name, s.Description)
}

var (
	sta01 = &stateType{"Sta01", "Idle"}
	sta02 = &stateType{"Sta02", "Transport connection open (Awaiting A-ASSOCIATE-RQ PDU)"}
	sta03 = &stateType{"Sta03", "Awaiting local A-ASSOCIATE response primitive (from local user)"}
	sta04 = &stateType{"Sta04", "Awaiting transport connection opening to complete (from local transport service)"}
	sta05 = &stateType{"Sta05", "Awaiting A-ASSOCIATE-AC or A-ASSOCIATE-RJ PDU"}
	sta06 = &stateType{"Sta06", "Association established and ready for data transfer"}
	sta07 = &stateType{"Sta07", "Awaiting A-RELEASE-RP PDU"}
	sta08 = &stateType{"Sta08", "Awaiting local A-RELEASE response primitive (from local user)"}
	sta09 = &stateType{"Sta09", "Release collision requestor side; awaiting A-RELEASE response (from local user)"}
	sta10 = &stateType{"Sta10", "Release collision acceptor side; awaiting A-RELEASE-RP PDU"}
	sta11 = &stateType{"Sta11", "Release collision requestor side; awaiting A-RELEASE-RP PDU"}
	sta12 = &stateType{"Sta12", "Release collision acceptor side; awaiting A-RELEASE response primitive (from local user)"}
	sta13 = &stateType{"Sta13", "Awaiting Transport Connection Close Indication (Association no longer exists)"}
)

type eventType struct {
	Event       int
	Description string
}

func (e *eventType) String() string {
	return fmt.Sprintf("evt%02d(%s)", e.Event, e.Description)
}

var (
	evt01 = &eventType{1, "A-ASSOCIATE request (local user)"}
	evt02 = &eventType{2, "Connection established (for service user)"}
	evt03 = &eventType{3, "A-ASSOCIATE-AC PDU (received on transport connection)"}
	evt04 = &eventType{4, "A-ASSOCIATE-RJ PDU (received on transport connection)"}
	evt05 = &eventType{5, "Connection accepted (for service provider)"}
	evt06 = &eventType{6, "A-ASSOCIATE-RQ PDU (on transport connection)"}
	evt07 = &eventType{7, "A-ASSOCIATE response primitive (accept)"}
	evt08 = &eventType{8, "A-ASSOCIATE response primitive (reject)"}
	evt09 = &eventType{9, "P-DATA request primitive"}
	evt10 = &eventType{10, "P-DATA-TF PDU (on transport connection)"}
	evt11 = &eventType{11, "A-RELEASE request primitive"}
	evt12 = &eventType{12, "A-RELEASE-RQ PDU (on transport)"}
	evt13 = &eventType{13, "A-RELEASE-RP PDU (on transport)"}
	evt14 = &eventType{14, "A-RELEASE response primitive"}
	evt15 = &eventType{15, "A-ABORT request primitive"}
	evt16 = &eventType{16, "A-ABORT PDU (on transport)"}
	evt17 = &eventType{17, "Transport connection closed indication (local transport service)"}
	evt18 = &eventType{18, "ARTIM timer expired (Association reject/release timer)"}
	evt19 = &eventType{19, "Unrecognized or invalid PDU received"}
)

type stateAction struct {
	Name        string
	Description string
	Callback    func(sm *stateMachine, event stateEvent) *stateType
}

func (a *stateAction) String() string {
	return fmt.Sprintf("%s(%s)", a.Name, a.Description)
}

var actionAe1 = &stateAction{"AE-1",
	"Issue TRANSPORT CONNECT request primitive to local transport service",
	func(sm *stateMachine, event stateEvent) *stateType {
		// The ServiceUser dials and reports the outcome as evt02 or evt17.
		return sta04
	}}

var actionAe2 = &stateAction{"AE-2", "Connection established on the user side. Send A-ASSOCIATE-RQ-PDU",
	func(sm *stateMachine, event stateEvent) *stateType {
		doassert(event.conn != nil)
		sm.conn = event.conn
		go networkReaderThread(sm.netCh, sm.done, sm.conn, sm.maxPDUSize, sm.label)
		items := sm.contextManager.generateAssociateRequest(sm.userParams)
		sendPDU(sm, &pdu.AAssociate{
			Type:            pdu.TypeAAssociateRq,
			ProtocolVersion: pdu.CurrentProtocolVersion,
			CalledAETitle:   sm.userParams.CalledAETitle,
			CallingAETitle:  sm.userParams.CallingAETitle,
			Items:           items,
		})
		startTimer(sm)
		return sta05
	}}

var actionAe3 = &stateAction{"AE-3", "Issue A-ASSOCIATE confirmation (accept) primitive",
	func(sm *stateMachine, event stateEvent) *stateType {
		stopTimer(sm)
		ac := event.pdu.(*pdu.AAssociate)
		if err := sm.contextManager.onAssociateResponse(ac); err != nil {
			vlog.Errorf("%s: unusable A-ASSOCIATE-AC: %v", sm.label, err)
			sm.closeErr = err
			sendPDU(sm, &pdu.AAbort{Source: pdu.AbortSourceServiceUser, Reason: pdu.AbortReasonNotSpecified})
			startTimer(sm)
			return sta13
		}
		associationEstablished(sm)
		return sta06
	}}

var actionAe4 = &stateAction{"AE-4", "Issue A-ASSOCIATE confirmation (reject) primitive and close transport connection",
	func(sm *stateMachine, event stateEvent) *stateType {
		stopTimer(sm)
		rj := event.pdu.(*pdu.AAssociateRj)
		sm.closeErr = &AssociationRejectedError{Result: rj.Result, Source: rj.Source, Reason: rj.Reason}
		associationsTotal.WithLabelValues(roleLabel(sm.isUser), "rejected").Inc()
		closeConnection(sm)
		return sta01
	}}

var actionAe5 = &stateAction{"AE-5", "Issue Transport connection response primitive; start ARTIM timer",
	func(sm *stateMachine, event stateEvent) *stateType {
		doassert(event.conn != nil)
		sm.conn = event.conn
		startTimer(sm)
		go networkReaderThread(sm.netCh, sm.done, sm.conn, sm.maxPDUSize, sm.label)
		return sta02
	}}

var actionAe6 = &stateAction{"AE-6", `Stop ARTIM timer and if A-ASSOCIATE-RQ acceptable by service-dul:
- issue A-ASSOCIATE indication primitive
otherwise:
- issue A-ASSOCIATE-RJ-PDU and start ARTIM timer`,
	func(sm *stateMachine, event stateEvent) *stateType {
		stopTimer(sm)
		rq := event.pdu.(*pdu.AAssociate)
		items, rj := sm.contextManager.onAssociateRequest(rq, sm.providerParams)
		if rj != nil {
			sm.pendingEvents = append(sm.pendingEvents, stateEvent{event: evt08, pdu: rj})
		} else {
			doassert(len(items) > 0)
			sm.pendingEvents = append(sm.pendingEvents, stateEvent{
				event: evt07,
				pdu: &pdu.AAssociate{
					Type:            pdu.TypeAAssociateAc,
					ProtocolVersion: pdu.CurrentProtocolVersion,
					CalledAETitle:   rq.CalledAETitle,
					CallingAETitle:  rq.CallingAETitle,
					Items:           items,
				},
			})
		}
		return sta03
	}}

var actionAe7 = &stateAction{"AE-7", "Send A-ASSOCIATE-AC PDU",
	func(sm *stateMachine, event stateEvent) *stateType {
		if sendPDU(sm, event.pdu.(*pdu.AAssociate)) {
			associationEstablished(sm)
		}
		return sta06
	}}

var actionAe8 = &stateAction{"AE-8", "Send A-ASSOCIATE-RJ PDU and start ARTIM timer",
	func(sm *stateMachine, event stateEvent) *stateType {
		rj := event.pdu.(*pdu.AAssociateRj)
		sm.closeErr = &AssociationRejectedError{Result: rj.Result, Source: rj.Source, Reason: rj.Reason}
		associationsTotal.WithLabelValues(roleLabel(sm.isUser), "rejected").Inc()
		sendPDU(sm, rj)
		startTimer(sm)
		return sta13
	}}

// Data transfer related actions
var actionDt1 = &stateAction{"DT-1", "Send P-DATA-TF PDU",
	func(sm *stateMachine, event stateEvent) *stateType {
		sendDIMSEMessage(sm, event.dimsePayload)
		return sta06
	}}

var actionDt2 = &stateAction{"DT-2", "Send P-DATA indication primitive",
	func(sm *stateMachine, event stateEvent) *stateType {
		if err := deliverData(sm, event.pdu.(*pdu.PDataTf)); err != nil {
			return abortOnProtocolViolation(sm, err)
		}
		return sta06
	}}

// Association release related actions
var actionAr1 = &stateAction{"AR-1", "Send A-RELEASE-RQ PDU",
	func(sm *stateMachine, event stateEvent) *stateType {
		sendPDU(sm, &pdu.AReleaseRq{})
		startTimer(sm)
		return sta07
	}}

var actionAr2 = &stateAction{"AR-2", "Issue A-RELEASE indication primitive",
	func(sm *stateMachine, event stateEvent) *stateType {
		// The local user always agrees to release.
		sm.pendingEvents = append(sm.pendingEvents, stateEvent{event: evt14})
		return sta08
	}}

var actionAr3 = &stateAction{"AR-3", "Issue A-RELEASE confirmation primitive and close transport connection",
	func(sm *stateMachine, event stateEvent) *stateType {
		stopTimer(sm)
		closeConnection(sm)
		return sta01
	}}

var actionAr4 = &stateAction{"AR-4", "Issue A-RELEASE-RP PDU and start ARTIM timer",
	func(sm *stateMachine, event stateEvent) *stateType {
		sendPDU(sm, &pdu.AReleaseRp{})
		startTimer(sm)
		return sta13
	}}

var actionAr5 = &stateAction{"AR-5", "Stop ARTIM timer",
	func(sm *stateMachine, event stateEvent) *stateType {
		stopTimer(sm)
		return sta01
	}}

var actionAr6 = &stateAction{"AR-6", "Issue P-DATA indication",
	func(sm *stateMachine, event stateEvent) *stateType {
		if err := deliverData(sm, event.pdu.(*pdu.PDataTf)); err != nil {
			return abortOnProtocolViolation(sm, err)
		}
		return sta07
	}}

var actionAr7 = &stateAction{"AR-7", "Issue P-DATA-TF PDU",
	func(sm *stateMachine, event stateEvent) *stateType {
		sendDIMSEMessage(sm, event.dimsePayload)
		return sta08
	}}

var actionAr8 = &stateAction{"AR-8", "Issue A-RELEASE indication (release collision): if association-requestor, next state is Sta09, if not next state is Sta10",
	func(sm *stateMachine, event stateEvent) *stateType {
		if sm.isUser {
			sm.pendingEvents = append(sm.pendingEvents, stateEvent{event: evt14})
			return sta09
		}
		return sta10
	}}

var actionAr9 = &stateAction{"AR-9", "Send A-RELEASE-RP PDU",
	func(sm *stateMachine, event stateEvent) *stateType {
		sendPDU(sm, &pdu.AReleaseRp{})
		return sta11
	}}

var actionAr10 = &stateAction{"AR-10", "Issue A-RELEASE confirmation primitive",
	func(sm *stateMachine, event stateEvent) *stateType {
		sm.pendingEvents = append(sm.pendingEvents, stateEvent{event: evt14})
		return sta12
	}}

// Association abort related actions
var actionAa1 = &stateAction{"AA-1", "Send A-ABORT PDU (service-user source) and start (or restart if already started) ARTIM timer",
	func(sm *stateMachine, event stateEvent) *stateType {
		abort := &pdu.AAbort{Source: pdu.AbortSourceServiceUser, Reason: pdu.AbortReasonNotSpecified}
		switch event.event {
		case evt15:
			sm.closeErr = ErrAborted
		case evt18:
			sm.closeErr = &TimeoutError{Op: "ARTIM"}
		case evt19:
			abort = &pdu.AAbort{Source: pdu.AbortSourceServiceProvider, Reason: invalidPDUReason(event.err)}
			sm.closeErr = &ProtocolViolationError{Source: abort.Source, Reason: abort.Reason, Err: event.err}
		default:
			// A PDU that can't arrive in this state.
			abort = &pdu.AAbort{Source: pdu.AbortSourceServiceProvider, Reason: pdu.AbortReasonUnexpectedPDU}
			sm.closeErr = &ProtocolViolationError{Source: abort.Source, Reason: abort.Reason,
				Err: fmt.Errorf("unexpected %v in state %v", event.event, sm.currentState)}
		}
		sendPDU(sm, abort)
		startTimer(sm)
		return sta13
	}}

var actionAa2 = &stateAction{"AA-2", "Stop ARTIM timer if running. Close transport connection",
	func(sm *stateMachine, event stateEvent) *stateType {
		stopTimer(sm)
		switch event.event {
		case evt15:
			if sm.closeErr == nil {
				sm.closeErr = ErrAborted
			}
		case evt16:
			if sm.closeErr == nil {
				a := event.pdu.(*pdu.AAbort)
				sm.closeErr = &AbortError{Source: a.Source, Reason: a.Reason}
			}
		case evt18:
			if sm.closeErr == nil {
				sm.closeErr = &TimeoutError{Op: "ARTIM"}
			}
		}
		closeConnection(sm)
		return sta01
	}}

var actionAa3 = &stateAction{"AA-3", "If (service-user initiated abort): issue A-ABORT indication and close transport connection, otherwise (service-dul initiated abort): issue A-P-ABORT indication and close transport connection",
	func(sm *stateMachine, event stateEvent) *stateType {
		a := event.pdu.(*pdu.AAbort)
		sm.closeErr = &AbortError{Source: a.Source, Reason: a.Reason}
		closeConnection(sm)
		return sta01
	}}

var actionAa4 = &stateAction{"AA-4", "Issue A-P-ABORT indication primitive",
	func(sm *stateMachine, event stateEvent) *stateType {
		stopTimer(sm)
		if sm.closeErr == nil {
			err := event.err
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			sm.closeErr = &TransportError{Err: err}
		}
		return sta01
	}}

var actionAa5 = &stateAction{"AA-5", "Stop ARTIM timer",
	func(sm *stateMachine, event stateEvent) *stateType {
		stopTimer(sm)
		return sta01
	}}

var actionAa6 = &stateAction{"AA-6", "Ignore PDU",
	func(sm *stateMachine, event stateEvent) *stateType {
		return sta13
	}}

var actionAa7 = &stateAction{"AA-7", "Send A-ABORT PDU",
	func(sm *stateMachine, event stateEvent) *stateType {
		sendPDU(sm, &pdu.AAbort{Source: pdu.AbortSourceServiceProvider, Reason: invalidPDUReason(event.err)})
		return sta13
	}}

var actionAa8 = &stateAction{"AA-8", "Send A-ABORT PDU (service-dul source), issue an A-P-ABORT indication and start ARTIM timer",
	func(sm *stateMachine, event stateEvent) *stateType {
		reason := pdu.AbortReasonUnexpectedPDU
		err := fmt.Errorf("unexpected %v in state %v", event.event, sm.currentState)
		if event.event == evt19 {
			reason = invalidPDUReason(event.err)
			err = event.err
		}
		return abortWithReason(sm, reason, err)
	}}

// invalidPDUReason extracts the A-ABORT reason from a decoding error.
func invalidPDUReason(err error) pdu.AbortReason {
	var perr *pdu.InvalidPDUError
	if errors.As(err, &perr) {
		return perr.Reason
	}
	return pdu.AbortReasonUnexpectedPDU
}

// abortOnProtocolViolation is AA-8 triggered by a DIMSE-level error in a
// P-DATA-TF PDU.
func abortOnProtocolViolation(sm *stateMachine, err error) *stateType {
	return abortWithReason(sm, pdu.AbortReasonInvalidPDUParameterValue, err)
}

func abortWithReason(sm *stateMachine, reason pdu.AbortReason, err error) *stateType {
	vlog.Errorf("%s: aborting association: %v", sm.label, err)
	if sm.closeErr == nil {
		sm.closeErr = &ProtocolViolationError{Source: pdu.AbortSourceServiceProvider, Reason: reason, Err: err}
	}
	sendPDU(sm, &pdu.AAbort{Source: pdu.AbortSourceServiceProvider, Reason: reason})
	startTimer(sm)
	return sta13
}

type stateEventDIMSEPayload struct {
	contextID byte
	command   dimse.Message
	data      []byte // nil if the command has no data set.
}

type stateEvent struct {
	event *eventType
	pdu   pdu.PDU
	err   error
	conn  net.Conn

	dimsePayload *stateEventDIMSEPayload // set iff event==evt09.
}

func (e *stateEvent) String() string {
	return fmt.Sprintf("stateEvent{event:%v pdu:%v err:%v}", e.event, e.pdu, e.err)
}

type stateTransition struct {
	current *stateType
	event   *eventType
	action  *stateAction
}

var stateTransitions = []stateTransition{
	{sta01, evt01, actionAe1},
	{sta04, evt02, actionAe2},
	{sta02, evt03, actionAa1},
	{sta03, evt03, actionAa8},
	{sta05, evt03, actionAe3},
	{sta06, evt03, actionAa8},
	{sta07, evt03, actionAa8},
	{sta08, evt03, actionAa8},
	{sta09, evt03, actionAa8},
	{sta10, evt03, actionAa8},
	{sta11, evt03, actionAa8},
	{sta12, evt03, actionAa8},
	{sta13, evt03, actionAa6},
	{sta02, evt04, actionAa1},
	{sta03, evt04, actionAa8},
	{sta05, evt04, actionAe4},
	{sta06, evt04, actionAa8},
	{sta07, evt04, actionAa8},
	{sta08, evt04, actionAa8},
	{sta09, evt04, actionAa8},
	{sta10, evt04, actionAa8},
	{sta11, evt04, actionAa8},
	{sta12, evt04, actionAa8},
	{sta13, evt04, actionAa6},
	{sta01, evt05, actionAe5},
	{sta02, evt06, actionAe6},
	{sta03, evt06, actionAa8},
	{sta05, evt06, actionAa8},
	{sta06, evt06, actionAa8},
	{sta07, evt06, actionAa8},
	{sta08, evt06, actionAa8},
	{sta09, evt06, actionAa8},
	{sta10, evt06, actionAa8},
	{sta11, evt06, actionAa8},
	{sta12, evt06, actionAa8},
	{sta13, evt06, actionAa7},
	{sta03, evt07, actionAe7},
	{sta03, evt08, actionAe8},
	{sta06, evt09, actionDt1},
	{sta08, evt09, actionAr7},
	{sta02, evt10, actionAa1},
	{sta03, evt10, actionAa8},
	{sta05, evt10, actionAa8},
	{sta06, evt10, actionDt2},
	{sta07, evt10, actionAr6},
	{sta08, evt10, actionAa8},
	{sta09, evt10, actionAa8},
	{sta10, evt10, actionAa8},
	{sta11, evt10, actionAa8},
	{sta12, evt10, actionAa8},
	{sta13, evt10, actionAa6},
	{sta06, evt11, actionAr1},
	{sta02, evt12, actionAa1},
	{sta03, evt12, actionAa8},
	{sta05, evt12, actionAa8},
	{sta06, evt12, actionAr2},
	{sta07, evt12, actionAr8},
	{sta08, evt12, actionAa8},
	{sta09, evt12, actionAa8},
	{sta10, evt12, actionAa8},
	{sta11, evt12, actionAa8},
	{sta12, evt12, actionAa8},
	{sta13, evt12, actionAa6},
	{sta02, evt13, actionAa1},
	{sta03, evt13, actionAa8},
	{sta05, evt13, actionAa8},
	{sta06, evt13, actionAa8},
	{sta07, evt13, actionAr3},
	{sta08, evt13, actionAa8},
	{sta09, evt13, actionAa8},
	{sta10, evt13, actionAr10},
	{sta11, evt13, actionAr3},
	{sta12, evt13, actionAa8},
	{sta13, evt13, actionAa6},
	{sta08, evt14, actionAr4},
	{sta09, evt14, actionAr9},
	{sta12, evt14, actionAr4},
	{sta02, evt15, actionAa2},
	{sta03, evt15, actionAa1},
	{sta04, evt15, actionAa2},
	{sta05, evt15, actionAa1},
	{sta06, evt15, actionAa1},
	{sta07, evt15, actionAa1},
	{sta08, evt15, actionAa1},
	{sta09, evt15, actionAa1},
	{sta10, evt15, actionAa1},
	{sta11, evt15, actionAa1},
	{sta12, evt15, actionAa1},
	{sta02, evt16, actionAa2},
	{sta03, evt16, actionAa3},
	{sta05, evt16, actionAa3},
	{sta06, evt16, actionAa3},
	{sta07, evt16, actionAa3},
	{sta08, evt16, actionAa3},
	{sta09, evt16, actionAa3},
	{sta10, evt16, actionAa3},
	{sta11, evt16, actionAa3},
	{sta12, evt16, actionAa3},
	{sta13, evt16, actionAa2},
	{sta02, evt17, actionAa5},
	{sta03, evt17, actionAa4},
	{sta04, evt17, actionAa4},
	{sta05, evt17, actionAa4},
	{sta06, evt17, actionAa4},
	{sta07, evt17, actionAa4},
	{sta08, evt17, actionAa4},
	{sta09, evt17, actionAa4},
	{sta10, evt17, actionAa4},
	{sta11, evt17, actionAa4},
	{sta12, evt17, actionAa4},
	{sta13, evt17, actionAr5},
	{sta02, evt18, actionAa2},
	{sta05, evt18, actionAa1},
	{sta07, evt18, actionAa1},
	{sta13, evt18, actionAa2},
	{sta02, evt19, actionAa1},
	{sta03, evt19, actionAa8},
	{sta05, evt19, actionAa8},
	{sta06, evt19, actionAa8},
	{sta07, evt19, actionAa8},
	{sta08, evt19, actionAa8},
	{sta09, evt19, actionAa8},
	{sta10, evt19, actionAa8},
	{sta11, evt19, actionAa8},
	{sta12, evt19, actionAa8},
	{sta13, evt19, actionAa7},
}

// DefaultARTIMTimeout bounds the time spent waiting for the peer during
// association setup and teardown.
const DefaultARTIMTimeout = 30 * time.Second

type stateMachine struct {
	label  string // For logging only
	isUser bool   // true if service user, false if provider

	// userParams is set only iff isUser=true
	userParams *ServiceUserParams
	// providerParams is set only iff isUser=false
	providerParams *ServiceProviderParams

	// Largest P-DATA-TF this side accepts. 0 means MaxPDUSizeCeiling.
	maxPDUSize   int
	artimTimeout time.Duration

	// For receiving PDU and network status events.
	// Owned by networkReaderThread.
	netCh chan stateEvent

	// For reporting errors and other events raised by the actions
	// themselves. Consumed before any other channel.
	pendingEvents []stateEvent

	// For receiving commands from the upper layer
	// Owned by the upper layer.
	downcallCh chan stateEvent

	// For sending indications to the the upper layer. Owned by the
	// statemachine.
	upcallCh chan upcallEvent

	// Closed when the state machine stops. Unblocks the network reader.
	done chan struct{}

	// For Timer expiration event. nil when the timer is stopped.
	timer   *time.Timer
	timerCh <-chan time.Time

	// The socket to the remote peer.
	conn             net.Conn
	currentState     *stateType
	contextManager   *contextManager
	commandAssembler dimse.CommandAssembler

	faults *FaultInjector

	// Why the association ended. nil after an orderly release.
	closeErr    error
	established bool
}

type upcallEventType int

const (
	upcallEventHandshakeCompleted = upcallEventType(100)
	upcallEventData               = upcallEventType(101)
	// The association is gone. err is nil iff it was released normally.
	upcallEventClosed = upcallEventType(102)
)

type upcallEvent struct {
	eventType upcallEventType

	// ContextManager is set only when the handshake completes. It is
	// read-only afterwards.
	cm *contextManager

	// The rest are set only for Data events.
	contextID byte
	command   dimse.Message
	data      []byte

	err error // set only for Closed events.
}

func associationEstablished(sm *stateMachine) {
	sm.established = true
	associationsTotal.WithLabelValues(roleLabel(sm.isUser), "established").Inc()
	associationsActive.WithLabelValues(roleLabel(sm.isUser)).Inc()
	vlog.Infof("%s: association established %s -> %s, %d contexts", sm.label,
		sm.contextManager.callingAETitle, sm.contextManager.calledAETitle,
		len(sm.contextManager.contextIDToAbstractSyntaxNameMap))
	sm.upcallCh <- upcallEvent{
		eventType: upcallEventHandshakeCompleted,
		cm:        sm.contextManager,
	}
}

func deliverData(sm *stateMachine, p *pdu.PDataTf) error {
	for _, item := range p.Items {
		if _, err := sm.contextManager.lookupByContextID(item.ContextID); err != nil {
			return err
		}
	}
	messages, err := sm.commandAssembler.AddDataPDU(p)
	for _, m := range messages {
		vlog.VI(1).Infof("%s: received DIMSE message: %v, %d bytes of data", sm.label, m.Command, len(m.Data))
		sm.upcallCh <- upcallEvent{
			eventType: upcallEventData,
			cm:        sm.contextManager,
			contextID: m.ContextID,
			command:   m.Command,
			data:      m.Data,
		}
	}
	return err
}

func sendDIMSEMessage(sm *stateMachine, payload *stateEventDIMSEPayload) {
	doassert(payload != nil)
	command, err := dimse.EncodeMessage(payload.command)
	if err != nil {
		vlog.Errorf("%s: dropping unencodable message %v: %v", sm.label, payload.command, err)
		return
	}
	vlog.VI(1).Infof("%s: sending DIMSE message: %v, %d bytes of data", sm.label, payload.command, len(payload.data))
	f := dimse.NewFragmenter(payload.contextID, command, payload.data, sm.contextManager.peerMaxPDUSize)
	for p := f.Next(); p != nil; p = f.Next() {
		if !sendPDU(sm, p) {
			return
		}
	}
}

func closeConnection(sm *stateMachine) {
	if sm.conn != nil {
		sm.conn.Close()
	}
}

func pduType(v pdu.PDU) pdu.Type {
	switch n := v.(type) {
	case *pdu.AAssociate:
		return n.Type
	case *pdu.AAssociateRj:
		return pdu.TypeAAssociateRj
	case *pdu.PDataTf:
		return pdu.TypePDataTf
	case *pdu.AReleaseRq:
		return pdu.TypeAReleaseRq
	case *pdu.AReleaseRp:
		return pdu.TypeAReleaseRp
	case *pdu.AAbort:
		return pdu.TypeAAbort
	}
	return 0
}

var errInjectedDisconnect = errors.New("fault injector: disconnect")

// sendPDU writes one PDU. On failure it closes the connection, queues evt17
// and returns false.
func sendPDU(sm *stateMachine, v pdu.PDU) bool {
	doassert(sm.conn != nil)
	data, err := pdu.EncodePDU(v)
	if err != nil {
		vlog.Errorf("%s: failed to encode: %v; closing connection %v", sm.label, err, sm.conn.RemoteAddr())
		return transportFailed(sm, err)
	}
	if sm.faults != nil {
		switch sm.faults.onSend(data) {
		case faultInjectorDisconnect:
			vlog.Infof("%s: fault injector: disconnect", sm.label)
			return transportFailed(sm, errInjectedDisconnect)
		case faultInjectorCorrupt:
			vlog.Infof("%s: fault injector: corrupted %v", sm.label, v)
		}
	}
	n, err := sm.conn.Write(data)
	if n != len(data) || err != nil {
		vlog.Errorf("%s: failed to write %d bytes. Actual %d bytes : %v", sm.label, len(data), n, err)
		if err == nil {
			err = io.ErrShortWrite
		}
		return transportFailed(sm, err)
	}
	pdusTotal.WithLabelValues("out", pduType(v).String()).Inc()
	vlog.VI(2).Infof("%s: sent PDU: %v", sm.label, v)
	return true
}

func transportFailed(sm *stateMachine, err error) bool {
	sm.conn.Close()
	sm.pendingEvents = append(sm.pendingEvents, stateEvent{event: evt17, err: err})
	return false
}

func startTimer(sm *stateMachine) {
	stopTimer(sm)
	sm.timer = time.NewTimer(sm.artimTimeout)
	sm.timerCh = sm.timer.C
}

func stopTimer(sm *stateMachine) {
	if sm.timer != nil {
		sm.timer.Stop()
		sm.timer = nil
	}
	sm.timerCh = nil
}

func networkReaderThread(ch chan<- stateEvent, done <-chan struct{}, conn net.Conn, maxPDUSize int, label string) {
	post := func(e stateEvent) bool {
		select {
		case ch <- e:
			return true
		case <-done:
			return false
		}
	}
	vlog.VI(2).Infof("%s: starting network reader, maxPDU %d", label, maxPDUSize)
	for {
		v, err := pdu.ReadPDU(conn, maxPDUSize)
		if err != nil {
			var perr *pdu.InvalidPDUError
			if errors.As(err, &perr) {
				vlog.Errorf("%s: failed to read PDU: %v", label, err)
				if !post(stateEvent{event: evt19, err: err}) {
					return
				}
				// The stream is out of sync. Wait for the peer to close it.
				_, err = io.Copy(io.Discard, conn)
			}
			if err == io.EOF {
				err = nil
			}
			if err != nil {
				vlog.VI(1).Infof("%s: network reader: %v", label, err)
			} else {
				vlog.VI(1).Infof("%s: the peer closed the connection", label)
			}
			post(stateEvent{event: evt17, err: err})
			return
		}
		pdusTotal.WithLabelValues("in", pduType(v).String()).Inc()
		vlog.VI(2).Infof("%s: read PDU: %v", label, v)
		var event stateEvent
		switch n := v.(type) {
		case *pdu.AAssociate:
			if n.Type == pdu.TypeAAssociateRq {
				event = stateEvent{event: evt06, pdu: n}
			} else {
				event = stateEvent{event: evt03, pdu: n}
			}
		case *pdu.AAssociateRj:
			event = stateEvent{event: evt04, pdu: n}
		case *pdu.PDataTf:
			event = stateEvent{event: evt10, pdu: n}
		case *pdu.AReleaseRq:
			event = stateEvent{event: evt12, pdu: n}
		case *pdu.AReleaseRp:
			event = stateEvent{event: evt13, pdu: n}
		case *pdu.AAbort:
			event = stateEvent{event: evt16, pdu: n}
		default:
			event = stateEvent{event: evt19, err: fmt.Errorf("unknown PDU type: %v", v)}
		}
		if !post(event) {
			return
		}
	}
}

func getNextEvent(sm *stateMachine) stateEvent {
	if len(sm.pendingEvents) > 0 {
		event := sm.pendingEvents[0]
		sm.pendingEvents = sm.pendingEvents[1:]
		return event
	}
	select {
	case event := <-sm.netCh:
		return event
	case <-sm.timerCh:
		sm.timer = nil
		sm.timerCh = nil
		return stateEvent{event: evt18}
	case event := <-sm.downcallCh:
		return event
	}
}

func findAction(currentState *stateType, event *stateEvent) *stateAction {
	for _, t := range stateTransitions {
		if t.current == currentState && t.event == event.event {
			return t.action
		}
	}
	return nil
}

var nextLabel int32

func newLabel(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, atomic.AddInt32(&nextLabel, 1))
}

func newStateMachine(label string, isUser bool, upcallCh chan upcallEvent, downcallCh chan stateEvent) *stateMachine {
	return &stateMachine{
		label:          label,
		isUser:         isUser,
		contextManager: newContextManager(label),
		netCh:          make(chan stateEvent, 128),
		downcallCh:     downcallCh,
		upcallCh:       upcallCh,
		done:           make(chan struct{}),
		currentState:   sta01,
	}
}

func runStateMachineForServiceUser(
	params *ServiceUserParams,
	upcallCh chan upcallEvent,
	downcallCh chan stateEvent,
	label string) {
	doassert(params.CallingAETitle != "")
	doassert(params.CalledAETitle != "")
	sm := newStateMachine(label, true, upcallCh, downcallCh)
	sm.userParams = params
	sm.maxPDUSize = params.MaxPDUSize
	sm.artimTimeout = params.ARTIMTimeout
	sm.faults = params.Faults
	runStateMachine(sm, stateEvent{event: evt01})
}

func runStateMachineForServiceProvider(
	conn net.Conn,
	params *ServiceProviderParams,
	upcallCh chan upcallEvent,
	downcallCh chan stateEvent,
	label string) {
	sm := newStateMachine(label, false, upcallCh, downcallCh)
	sm.providerParams = params
	sm.maxPDUSize = params.MaxPDUSize
	sm.artimTimeout = params.ARTIMTimeout
	sm.faults = params.Faults
	runStateMachine(sm, stateEvent{event: evt05, conn: conn})
}

func runStateMachine(sm *stateMachine, event stateEvent) {
	if sm.artimTimeout <= 0 {
		sm.artimTimeout = DefaultARTIMTimeout
	}
	for {
		action := findAction(sm.currentState, &event)
		if action == nil {
			vlog.Errorf("%s: no action found for state %v, event %v; ignoring",
				sm.label, sm.currentState, event.event)
		} else {
			vlog.VI(2).Infof("%s: running action %v for event %v in state %v",
				sm.label, action.Name, event.event, sm.currentState.Name)
			sm.currentState = action.Callback(sm, event)
			vlog.VI(2).Infof("%s: next state: %v", sm.label, sm.currentState.Name)
		}
		if sm.currentState == sta01 {
			break
		}
		event = getNextEvent(sm)
	}
	stopTimer(sm)
	closeConnection(sm)
	close(sm.done)
	outcome := "released"
	if sm.closeErr != nil {
		outcome = "aborted"
	}
	if sm.established {
		associationsActive.WithLabelValues(roleLabel(sm.isUser)).Dec()
		associationsTotal.WithLabelValues(roleLabel(sm.isUser), outcome).Inc()
	}
	if sm.closeErr != nil {
		vlog.Infof("%s: association closed: %v", sm.label, sm.closeErr)
	} else {
		vlog.VI(1).Infof("%s: association closed", sm.label)
	}
	sm.upcallCh <- upcallEvent{eventType: upcallEventClosed, err: sm.closeErr}
	close(sm.upcallCh)
}

func doassert(x bool) {
	if !x {
		panic("doassert")
	}
}
